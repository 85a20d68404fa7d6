package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"llmpedia-backend/internal/rag"
)

func TestVectorLiteral(t *testing.T) {
	got := vectorLiteral([]float32{1, 0.5, -0.25, 0})
	if got != "[1,0.5,-0.25,0]" {
		t.Fatalf("vectorLiteral = %q", got)
	}
	if vectorLiteral(nil) != "[]" {
		t.Fatal("empty vector literal")
	}
}

func TestDistanceToSimilarity(t *testing.T) {
	if got := distanceToSimilarity(0.25, rag.MetricCosine); got != 0.75 {
		t.Fatalf("cosine: %f", got)
	}
	if got := distanceToSimilarity(-3, rag.MetricInnerProduct); got != 3 {
		t.Fatalf("inner product: %f", got)
	}
}

func TestPGVectorOperators(t *testing.T) {
	cos := &PGVectorStore{table: "t", metric: rag.MetricCosine, dim: 3}
	ip := &PGVectorStore{table: "t", metric: rag.MetricInnerProduct, dim: 3}
	if cos.distanceOperator() != "<=>" || cos.indexOps() != "vector_cosine_ops" {
		t.Fatal("cosine operators")
	}
	if ip.distanceOperator() != "<#>" || ip.indexOps() != "vector_ip_ops" {
		t.Fatal("inner product operators")
	}
	if got := (&PGVectorStore{table: `we"ird`}).ident(); got != `"we""ird"` {
		t.Fatalf("ident = %s", got)
	}
}

func TestPGVectorStoreLive(t *testing.T) {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	table := fmt.Sprintf("test_vectors_%d", time.Now().UnixNano())
	s, err := NewPGVectorStore(pool, table, rag.MetricCosine, 3)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Exec(context.Background(), "DROP TABLE IF EXISTS "+s.ident())

	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if err := s.VerifySchema(ctx); err != nil {
		t.Fatalf("VerifySchema: %v", err)
	}

	err = s.Upsert(ctx, []rag.Chunk{
		{ID: "2305.00001", Text: "near", Vector: []float32{1, 0, 0}},
		{ID: "2305.00002", Text: "far", Vector: []float32{0, 1, 0}},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := s.SimilaritySearch(ctx, []float32{1, 0.1, 0}, 20)
	if err != nil {
		t.Fatalf("SimilaritySearch: %v", err)
	}
	if len(got) != 2 || got[0].Chunk.ID != "2305.00001" {
		t.Fatalf("unexpected results %+v", got)
	}

	wrong, _ := NewPGVectorStore(pool, table, rag.MetricCosine, 4)
	if err := wrong.VerifySchema(ctx); !errors.Is(err, rag.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}
