package services

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"llmpedia-backend/internal/config"
	"llmpedia-backend/internal/rag"
	"llmpedia-backend/models"
)

var ErrPaperNotFound = errors.New("paper not found")

// PaperStore reads the paper catalog.
type PaperStore struct {
	col *mongo.Collection
}

func NewPaperStore(db *mongo.Database) *PaperStore {
	return &PaperStore{col: db.Collection(config.PapersCollection)}
}

// GetPaper looks a paper up by arxiv code; a versioned code finds the
// unversioned entry.
func (s *PaperStore) GetPaper(ctx context.Context, arxivCode string) (*models.Paper, error) {
	var paper models.Paper
	err := s.col.FindOne(ctx, bson.M{"arxiv_code": rag.CanonicalID(arxivCode)}).Decode(&paper)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrPaperNotFound
	}
	if err != nil {
		return nil, err
	}
	return &paper, nil
}
