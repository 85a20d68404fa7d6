package rag

import (
	"context"
	"time"
)

// EmbeddingClient turns text into a fixed-length vector.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Provider() EmbeddingProvider
	Dimension() int
}

// DocumentEmbedder is implemented by embedders that encode corpus passages
// differently from questions. Indexing uses it when available.
type DocumentEmbedder interface {
	EmbedDocument(ctx context.Context, text string) ([]float32, error)
}

// VectorStoreClient answers top-k queries against one collection. Results are
// ordered by non-increasing similarity and hold at most k entries.
type VectorStoreClient interface {
	SimilaritySearch(ctx context.Context, query []float32, k int) ([]Candidate, error)
	Metric() Metric
	Dimension() int
}

// RerankClient orders candidates by relevance to query, returning at most
// topN of them.
type RerankClient interface {
	Rerank(ctx context.Context, query string, candidates []Candidate, topN int) ([]RankedCandidate, error)
}

// GenerationClient produces the raw answer for an assembled context.
type GenerationClient interface {
	Generate(ctx context.Context, qctx QueryContext, question string) (string, error)
}

// QALogger is the best-effort question/answer sink.
type QALogger interface {
	LogQuestionAnswer(ctx context.Context, question, answer string) error
}

// AnswerCache memoizes answers for identical (collection, question) pairs.
type AnswerCache interface {
	Get(ctx context.Context, collection, question string) (*Answer, bool, error)
	Set(ctx context.Context, collection, question string, answer *Answer) error
}

// Observer receives per-stage and per-query measurements.
type Observer interface {
	ObserveStage(ctx context.Context, stage, collection string, d time.Duration, err error)
	ObserveQuery(ctx context.Context, collection, status string)
}
