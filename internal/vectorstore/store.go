// Package vectorstore implements rag.VectorStoreClient over pgvector, MongoDB
// Atlas and an in-process index.
package vectorstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"llmpedia-backend/internal/rag"
)

// Store is a collection that can be both queried and loaded.
type Store interface {
	rag.VectorStoreClient
	Upsert(ctx context.Context, chunks []rag.Chunk) error
}

// ChunkKey identifies a chunk for upserts: the "chunk_id" metadata value when
// present, otherwise the paper id plus a digest of the text.
func ChunkKey(c rag.Chunk) string {
	if id, ok := c.Metadata["chunk_id"].(string); ok && id != "" {
		return id
	}
	sum := sha256.Sum256([]byte(c.Text))
	return c.ID + ":" + hex.EncodeToString(sum[:8])
}

func checkDimension(vector []float32, dim int) error {
	if len(vector) != dim {
		return fmt.Errorf("%w: got %d, want %d", rag.ErrDimensionMismatch, len(vector), dim)
	}
	return nil
}

func validateChunks(chunks []rag.Chunk, dim int) error {
	for _, c := range chunks {
		if c.ID == "" {
			return fmt.Errorf("chunk without paper id")
		}
		if err := checkDimension(c.Vector, dim); err != nil {
			return fmt.Errorf("chunk %s: %w", c.ID, err)
		}
	}
	return nil
}
