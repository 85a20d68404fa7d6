// Package rerank orders retrieved candidates with a Cohere-compatible rerank
// endpoint.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"llmpedia-backend/internal/breaker"
	"llmpedia-backend/internal/rag"
)

const DefaultURL = "https://api.cohere.com/v1/rerank"

type Config struct {
	URL     string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// CohereReranker calls POST /v1/rerank. It never falls back to retrieval
// order: any failure is reported as rag.ErrRerankUnavailable.
type CohereReranker struct {
	url     string
	apiKey  string
	model   string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewCohereReranker(cfg Config, listener breaker.StateListener) (*CohereReranker, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing COHERE_API_KEY for reranking")
	}
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Model == "" {
		cfg.Model = "rerank-english-v3.0"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &CohereReranker{
		url:     cfg.URL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker.New("CohereRerank", listener),
	}, nil
}

type rerankRequest struct {
	Model           string   `json:"model"`
	Query           string   `json:"query"`
	Documents       []string `json:"documents"`
	TopN            int      `json:"top_n"`
	ReturnDocuments bool     `json:"return_documents"`
}

type rerankResult struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

type rerankResponse struct {
	Results []rerankResult `json:"results"`
}

// Rerank returns at most topN candidates ordered by relevance; equal scores
// keep retrieval order.
func (r *CohereReranker) Rerank(ctx context.Context, query string, candidates []rag.Candidate, topN int) ([]rag.RankedCandidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	if topN <= 0 {
		topN = rag.DefaultTopN
	}
	if topN > len(candidates) {
		topN = len(candidates)
	}

	ctx, span := otel.Tracer("cohere-client").Start(ctx, "cohere.rerank")
	defer span.End()
	span.SetAttributes(
		attribute.String("cohere.model", r.model),
		attribute.Int("cohere.documents", len(candidates)),
		attribute.Int("cohere.top_n", topN),
	)

	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.Chunk.Text
	}

	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.post(ctx, rerankRequest{
			Model:     r.model,
			Query:     query,
			Documents: docs,
			TopN:      topN,
		})
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("cohere.error", true))
		return nil, rag.Unavailable(rag.ErrRerankUnavailable, err)
	}

	ranked, err := mapResults(result.([]rerankResult), candidates, topN)
	if err != nil {
		span.SetAttributes(attribute.Bool("cohere.invalid_response", true))
		return nil, err
	}
	return ranked, nil
}

func (r *CohereReranker) post(ctx context.Context, body rerankRequest) ([]rerankResult, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rerank POST failed: %s: %s", resp.Status, bytes.TrimSpace(msg))
	}

	var out rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}
	return out.Results, nil
}

// mapResults turns provider indices back into candidates, refusing anything
// that is not a subset of the input.
func mapResults(results []rerankResult, candidates []rag.Candidate, topN int) ([]rag.RankedCandidate, error) {
	if len(results) > topN {
		return nil, fmt.Errorf("%w: %d results for top %d", rag.ErrRerankUnavailable, len(results), topN)
	}

	seen := make(map[int]struct{}, len(results))
	for _, res := range results {
		if res.Index < 0 || res.Index >= len(candidates) {
			return nil, fmt.Errorf("%w: index %d out of range", rag.ErrRerankUnavailable, res.Index)
		}
		if _, dup := seen[res.Index]; dup {
			return nil, fmt.Errorf("%w: duplicate index %d", rag.ErrRerankUnavailable, res.Index)
		}
		seen[res.Index] = struct{}{}
	}

	sorted := make([]rerankResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].RelevanceScore != sorted[j].RelevanceScore {
			return sorted[i].RelevanceScore > sorted[j].RelevanceScore
		}
		return sorted[i].Index < sorted[j].Index
	})

	ranked := make([]rag.RankedCandidate, len(sorted))
	for i, res := range sorted {
		ranked[i] = rag.RankedCandidate{
			Chunk:     candidates[res.Index].Chunk,
			Relevance: res.RelevanceScore,
			Rank:      i + 1,
		}
	}
	return ranked, nil
}
