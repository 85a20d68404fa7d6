// Package ragtest provides deterministic in-memory implementations of the
// pipeline's capability interfaces.
package ragtest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"llmpedia-backend/internal/rag"
)

// Embedder returns a fixed-dimension vector derived from the input bytes.
type Embedder struct {
	Dim      int
	Scheme   rag.EmbeddingProvider
	Err      error
	mu       sync.Mutex
	calls    int
	docCalls int
	lastText string
}

func NewEmbedder(provider rag.EmbeddingProvider, dim int) *Embedder {
	return &Embedder{Dim: dim, Scheme: provider}
}

func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.lastText = text
	e.mu.Unlock()
	return e.vector(text)
}

// EmbedDocument returns the same vector as Embed but is counted separately.
func (e *Embedder) EmbedDocument(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.docCalls++
	e.lastText = text
	e.mu.Unlock()
	return e.vector(text)
}

func (e *Embedder) vector(text string) ([]float32, error) {
	if e.Err != nil {
		return nil, e.Err
	}
	vec := make([]float32, e.Dim)
	for i := range vec {
		vec[i] = 1
	}
	for i, b := range []byte(text) {
		vec[i%e.Dim] += float32(b%7) / 10
	}
	return vec, nil
}

func (e *Embedder) Provider() rag.EmbeddingProvider { return e.Scheme }
func (e *Embedder) Dimension() int                  { return e.Dim }

func (e *Embedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func (e *Embedder) DocumentCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.docCalls
}

// Store returns its Results (or Err) for every query.
type Store struct {
	Dim     int
	Sim     rag.Metric
	Results []rag.Candidate
	Err     error
	mu      sync.Mutex
	calls   int
	lastK   int
}

func NewStore(metric rag.Metric, dim int, results ...rag.Candidate) *Store {
	return &Store{Dim: dim, Sim: metric, Results: results}
}

func (s *Store) SimilaritySearch(_ context.Context, _ []float32, k int) ([]rag.Candidate, error) {
	s.mu.Lock()
	s.calls++
	s.lastK = k
	s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]rag.Candidate, len(s.Results))
	copy(out, s.Results)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (s *Store) Metric() rag.Metric { return s.Sim }
func (s *Store) Dimension() int     { return s.Dim }

func (s *Store) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Reranker scores candidates by how many query words they contain, breaking
// ties by retrieval order.
type Reranker struct {
	Err error
}

func (r *Reranker) Rerank(_ context.Context, query string, candidates []rag.Candidate, topN int) ([]rag.RankedCandidate, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	words := strings.Fields(strings.ToLower(query))
	type scored struct {
		c     rag.Candidate
		score float64
	}
	all := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		text := strings.ToLower(c.Chunk.Text)
		var score float64
		for _, w := range words {
			if strings.Contains(text, strings.Trim(w, "?.,!")) {
				score++
			}
		}
		all = append(all, scored{c: c, score: score})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })
	if len(all) > topN {
		all = all[:topN]
	}
	out := make([]rag.RankedCandidate, len(all))
	for i, s := range all {
		out[i] = rag.RankedCandidate{Chunk: s.c.Chunk, Relevance: s.score, Rank: i + 1}
	}
	return out, nil
}

// Generator answers with the first segment's citation, or a not-found
// acknowledgement when the context is empty. Reply overrides both.
type Generator struct {
	Reply      string
	Err        error
	mu         sync.Mutex
	calls      int
	LastPrompt string
}

func (g *Generator) Generate(_ context.Context, qctx rag.QueryContext, question string) (string, error) {
	g.mu.Lock()
	g.calls++
	g.LastPrompt = rag.PromptV1.Render(qctx, question)
	g.mu.Unlock()

	if g.Err != nil {
		return "", g.Err
	}
	if g.Reply != "" {
		return g.Reply, nil
	}
	if qctx.Empty() {
		return "The answer cannot be found in the documents provided. Please ask a different question.", nil
	}
	first := qctx.Segments[0]
	return fmt.Sprintf("%s (arxiv:%s)", firstSentence(first.Text), first.ID), nil
}

func (g *Generator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func firstSentence(s string) string {
	if i := strings.IndexAny(s, ".!?"); i >= 0 {
		return s[:i+1]
	}
	return s
}

// QALog records every logged pair, or fails with Err.
type QALog struct {
	Err     error
	mu      sync.Mutex
	Entries [][2]string
}

func (l *QALog) LogQuestionAnswer(_ context.Context, question, answer string) error {
	if l.Err != nil {
		return l.Err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Entries = append(l.Entries, [2]string{question, answer})
	return nil
}

func (l *QALog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Entries)
}

// Cache is a map-backed AnswerCache.
type Cache struct {
	mu      sync.Mutex
	answers map[string]rag.Answer
}

func NewCache() *Cache {
	return &Cache{answers: make(map[string]rag.Answer)}
}

func (c *Cache) Get(_ context.Context, collection, question string) (*rag.Answer, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.answers[collection+"\x00"+question]
	if !ok {
		return nil, false, nil
	}
	return &a, true, nil
}

func (c *Cache) Set(_ context.Context, collection, question string, answer *rag.Answer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.answers[collection+"\x00"+question] = *answer
	return nil
}

// Chunk builds a candidate with the given paper id, text and similarity.
func Chunk(id, text string, similarity float64) rag.Candidate {
	return rag.Candidate{Chunk: rag.Chunk{ID: id, Text: text}, Similarity: similarity}
}
