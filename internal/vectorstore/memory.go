package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"llmpedia-backend/internal/rag"
)

// MemoryStore is an in-process collection searched by brute force.
type MemoryStore struct {
	mu     sync.RWMutex
	metric rag.Metric
	dim    int
	keys   map[string]int
	chunks []rag.Chunk
}

func NewMemoryStore(metric rag.Metric, dim int) (*MemoryStore, error) {
	if !metric.Valid() {
		return nil, fmt.Errorf("unsupported metric: %s", metric)
	}
	if dim <= 0 {
		return nil, fmt.Errorf("dimension must be > 0")
	}
	return &MemoryStore{metric: metric, dim: dim, keys: make(map[string]int)}, nil
}

// Upsert replaces chunks with the same ChunkKey.
func (s *MemoryStore) Upsert(_ context.Context, chunks []rag.Chunk) error {
	if err := validateChunks(chunks, s.dim); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		key := ChunkKey(c)
		if i, ok := s.keys[key]; ok {
			s.chunks[i] = c
			continue
		}
		s.keys[key] = len(s.chunks)
		s.chunks = append(s.chunks, c)
	}
	return nil
}

// SimilaritySearch returns up to k chunks by non-increasing similarity; equal
// scores keep insertion order.
func (s *MemoryStore) SimilaritySearch(ctx context.Context, vector []float32, k int) ([]rag.Candidate, error) {
	if err := checkDimension(vector, s.dim); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]rag.Candidate, 0, len(s.chunks))
	for _, c := range s.chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		score, err := Similarity(s.metric, vector, c.Vector)
		if err != nil {
			return nil, err
		}
		results = append(results, rag.Candidate{Chunk: c, Similarity: score})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (s *MemoryStore) Metric() rag.Metric { return s.metric }
func (s *MemoryStore) Dimension() int     { return s.dim }

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}
