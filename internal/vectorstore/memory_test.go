package vectorstore

import (
	"context"
	"errors"
	"math"
	"testing"

	"llmpedia-backend/internal/rag"
)

func chunk(id, text string, vec ...float32) rag.Chunk {
	return rag.Chunk{ID: id, Text: text, Vector: vec}
}

func TestMemoryStoreCosineOrdering(t *testing.T) {
	s, err := NewMemoryStore(rag.MetricCosine, 2)
	if err != nil {
		t.Fatal(err)
	}
	err = s.Upsert(context.Background(), []rag.Chunk{
		chunk("2305.00001", "orthogonal", 0, 1),
		chunk("2305.00002", "same direction", 2, 0),
		chunk("2305.00003", "diagonal", 1, 1),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := s.SimilaritySearch(context.Background(), []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("SimilaritySearch: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	if got[0].Chunk.ID != "2305.00002" || got[1].Chunk.ID != "2305.00003" {
		t.Fatalf("order = %s, %s", got[0].Chunk.ID, got[1].Chunk.ID)
	}
	if math.Abs(got[0].Similarity-1) > 1e-9 {
		t.Fatalf("similarity = %f, want 1", got[0].Similarity)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Similarity > got[i-1].Similarity {
			t.Fatal("results not in non-increasing similarity order")
		}
	}
}

func TestMemoryStoreInnerProduct(t *testing.T) {
	s, _ := NewMemoryStore(rag.MetricInnerProduct, 2)
	_ = s.Upsert(context.Background(), []rag.Chunk{
		chunk("2305.00001", "short", 1, 0),
		chunk("2305.00002", "long", 3, 0),
	})

	got, err := s.SimilaritySearch(context.Background(), []float32{1, 0}, 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Chunk.ID != "2305.00002" || got[0].Similarity != 3 {
		t.Fatalf("unexpected results %+v", got)
	}
}

func TestMemoryStoreUpsertReplaces(t *testing.T) {
	s, _ := NewMemoryStore(rag.MetricCosine, 2)
	c := chunk("2305.00001", "text", 1, 0)
	_ = s.Upsert(context.Background(), []rag.Chunk{c})
	c.Vector = []float32{0, 1}
	_ = s.Upsert(context.Background(), []rag.Chunk{c})

	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
	got, _ := s.SimilaritySearch(context.Background(), []float32{0, 1}, 1)
	if got[0].Similarity < 0.99 {
		t.Fatal("vector was not replaced")
	}
}

func TestMemoryStoreRejectsWrongDimension(t *testing.T) {
	s, _ := NewMemoryStore(rag.MetricCosine, 3)

	if _, err := s.SimilaritySearch(context.Background(), []float32{1, 0}, 5); !errors.Is(err, rag.ErrDimensionMismatch) {
		t.Fatalf("query: expected ErrDimensionMismatch, got %v", err)
	}
	if err := s.Upsert(context.Background(), []rag.Chunk{chunk("2305.00001", "x", 1)}); !errors.Is(err, rag.ErrDimensionMismatch) {
		t.Fatalf("upsert: expected ErrDimensionMismatch, got %v", err)
	}
}

func TestMemoryStoreEmptyAndZeroK(t *testing.T) {
	s, _ := NewMemoryStore(rag.MetricCosine, 2)
	got, err := s.SimilaritySearch(context.Background(), []float32{1, 0}, 20)
	if err != nil || len(got) != 0 {
		t.Fatalf("empty store: %v, %v", got, err)
	}
	_ = s.Upsert(context.Background(), []rag.Chunk{chunk("2305.00001", "x", 1, 0)})
	got, _ = s.SimilaritySearch(context.Background(), []float32{1, 0}, 0)
	if len(got) != 0 {
		t.Fatal("k=0 must return nothing")
	}
}

func TestNewMemoryStoreValidation(t *testing.T) {
	if _, err := NewMemoryStore("l2", 2); err == nil {
		t.Fatal("expected unsupported metric error")
	}
	if _, err := NewMemoryStore(rag.MetricCosine, 0); err == nil {
		t.Fatal("expected dimension error")
	}
}

func TestChunkKey(t *testing.T) {
	a := rag.Chunk{ID: "2305.00001", Text: "alpha"}
	b := rag.Chunk{ID: "2305.00001", Text: "beta"}
	if ChunkKey(a) == ChunkKey(b) {
		t.Fatal("different texts of one paper must get different keys")
	}
	if ChunkKey(a) != ChunkKey(a) {
		t.Fatal("keys must be stable")
	}
	a.Metadata = map[string]any{"chunk_id": "2305.00001-3"}
	if ChunkKey(a) != "2305.00001-3" {
		t.Fatalf("explicit chunk id ignored: %s", ChunkKey(a))
	}
}

func TestDistanceFunctions(t *testing.T) {
	if _, err := Cosine([]float32{1}, []float32{1, 2}); !errors.Is(err, rag.ErrDimensionMismatch) {
		t.Fatal("cosine should reject mismatched lengths")
	}
	if v, _ := Cosine([]float32{0, 0}, []float32{1, 0}); v != 0 {
		t.Fatalf("zero vector cosine = %f", v)
	}
	if v, _ := Dot([]float32{1, 2}, []float32{3, 4}); v != 11 {
		t.Fatalf("dot = %f, want 11", v)
	}
	if _, err := Similarity("l2", []float32{1}, []float32{1}); err == nil {
		t.Fatal("expected unsupported metric error")
	}
}
