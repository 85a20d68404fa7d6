package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"llmpedia-backend/internal/rag"
)

// hnswMaxDims is the largest dimension pgvector can build an HNSW index for.
const hnswMaxDims = 2000

// PGVectorStore keeps one collection in its own pgvector table:
//
//	CREATE TABLE arxiv_vectors_gemini (
//	  chunk_id  TEXT PRIMARY KEY,
//	  paper_id  TEXT NOT NULL,
//	  content   TEXT NOT NULL,
//	  embedding VECTOR(768) NOT NULL,
//	  metadata  JSONB NOT NULL DEFAULT '{}'
//	);
type PGVectorStore struct {
	pool   *pgxpool.Pool
	table  string
	metric rag.Metric
	dim    int
}

func NewPGVectorStore(pool *pgxpool.Pool, table string, metric rag.Metric, dim int) (*PGVectorStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgvector: pool is required")
	}
	if table == "" {
		return nil, fmt.Errorf("pgvector: table is required")
	}
	if !metric.Valid() {
		return nil, fmt.Errorf("pgvector: unsupported metric: %s", metric)
	}
	if dim <= 0 {
		return nil, fmt.Errorf("pgvector: dimension must be > 0")
	}
	return &PGVectorStore{pool: pool, table: table, metric: metric, dim: dim}, nil
}

func (s *PGVectorStore) Metric() rag.Metric { return s.metric }
func (s *PGVectorStore) Dimension() int     { return s.dim }
func (s *PGVectorStore) Table() string      { return s.table }

func (s *PGVectorStore) ident() string {
	return pgx.Identifier{s.table}.Sanitize()
}

// distanceOperator is the pgvector operator whose ascending order is
// descending similarity under the store's metric.
func (s *PGVectorStore) distanceOperator() string {
	if s.metric == rag.MetricInnerProduct {
		return "<#>"
	}
	return "<=>"
}

func (s *PGVectorStore) indexOps() string {
	if s.metric == rag.MetricInnerProduct {
		return "vector_ip_ops"
	}
	return "vector_cosine_ops"
}

// EnsureSchema creates the extension, table and index when missing.
func (s *PGVectorStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  chunk_id  TEXT PRIMARY KEY,
  paper_id  TEXT NOT NULL,
  content   TEXT NOT NULL,
  embedding VECTOR(%d) NOT NULL,
  metadata  JSONB NOT NULL DEFAULT '{}'
)`, s.ident(), s.dim),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (paper_id)`,
			pgx.Identifier{s.table + "_paper_id_idx"}.Sanitize(), s.ident()),
	}
	if s.dim <= hnswMaxDims {
		stmts = append(stmts, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding %s)`,
			pgx.Identifier{s.table + "_embedding_idx"}.Sanitize(), s.ident(), s.indexOps()))
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("pgvector schema %s: %w", s.table, err)
		}
	}
	return nil
}

// VerifySchema checks that the table exists and that its embedding column
// has the store's dimension.
func (s *PGVectorStore) VerifySchema(ctx context.Context) error {
	const q = `
SELECT a.atttypmod
FROM pg_attribute a
WHERE a.attrelid = to_regclass($1)
  AND a.attname = 'embedding'
  AND NOT a.attisdropped`

	var typmod int
	err := s.pool.QueryRow(ctx, q, s.ident()).Scan(&typmod)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("pgvector: table %s has no embedding column", s.table)
	}
	if err != nil {
		return fmt.Errorf("pgvector: inspect %s: %w", s.table, err)
	}
	if typmod != s.dim {
		return fmt.Errorf("pgvector: table %s: %w: column has %d, collection expects %d",
			s.table, rag.ErrDimensionMismatch, typmod, s.dim)
	}
	return nil
}

// Upsert writes chunks in a single batch keyed by ChunkKey.
func (s *PGVectorStore) Upsert(ctx context.Context, chunks []rag.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := validateChunks(chunks, s.dim); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (chunk_id, paper_id, content, embedding, metadata)
VALUES ($1, $2, $3, $4::vector, $5)
ON CONFLICT (chunk_id) DO UPDATE
SET paper_id  = EXCLUDED.paper_id,
    content   = EXCLUDED.content,
    embedding = EXCLUDED.embedding,
    metadata  = EXCLUDED.metadata`, s.ident())

	batch := &pgx.Batch{}
	for _, c := range chunks {
		meta := c.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		batch.Queue(query, ChunkKey(c), c.ID, c.Text, vectorLiteral(c.Vector), meta)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range chunks {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert into %s: %w", s.table, err)
		}
	}
	return nil
}

// SimilaritySearch orders rows by pgvector distance and converts it back to
// a similarity: 1 - d for cosine distance, -d for negative inner product.
func (s *PGVectorStore) SimilaritySearch(ctx context.Context, vector []float32, k int) ([]rag.Candidate, error) {
	if err := checkDimension(vector, s.dim); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
SELECT paper_id, content, metadata, embedding %s $1::vector AS distance
FROM %s
ORDER BY distance ASC
LIMIT $2`, s.distanceOperator(), s.ident())

	rows, err := s.pool.Query(ctx, query, vectorLiteral(vector), k)
	if err != nil {
		return nil, fmt.Errorf("query vectors: %w", err)
	}
	defer rows.Close()

	var candidates []rag.Candidate
	for rows.Next() {
		var (
			chunk    rag.Chunk
			distance float64
		)
		if err := rows.Scan(&chunk.ID, &chunk.Text, &chunk.Metadata, &distance); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		candidates = append(candidates, rag.Candidate{
			Chunk:      chunk,
			Similarity: distanceToSimilarity(distance, s.metric),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return candidates, nil
}

// Count returns the number of stored chunks.
func (s *PGVectorStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, s.ident())).Scan(&n)
	return n, err
}

func distanceToSimilarity(distance float64, metric rag.Metric) float64 {
	if metric == rag.MetricInnerProduct {
		return -distance
	}
	return 1 - distance
}

// vectorLiteral renders v in pgvector's text input format, e.g. "[1,0.5]".
func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.Grow(len(v) * 8)
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
