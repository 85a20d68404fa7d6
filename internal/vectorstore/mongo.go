package vectorstore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"llmpedia-backend/internal/rag"
	"llmpedia-backend/models"
)

// DefaultVectorIndex is the Atlas vector index name expected on every chunk
// collection.
const DefaultVectorIndex = "vector_index"

// MongoVectorStore searches a chunk collection with Atlas $vectorSearch.
type MongoVectorStore struct {
	collection *mongo.Collection
	index      string
	metric     rag.Metric
	dim        int
}

func NewMongoVectorStore(db *mongo.Database, collection, index string, metric rag.Metric, dim int) (*MongoVectorStore, error) {
	if db == nil || collection == "" {
		return nil, fmt.Errorf("mongo vector store: database and collection are required")
	}
	if !metric.Valid() {
		return nil, fmt.Errorf("mongo vector store: unsupported metric: %s", metric)
	}
	if dim <= 0 {
		return nil, fmt.Errorf("mongo vector store: dimension must be > 0")
	}
	if index == "" {
		index = DefaultVectorIndex
	}
	return &MongoVectorStore{collection: db.Collection(collection), index: index, metric: metric, dim: dim}, nil
}

func (s *MongoVectorStore) Metric() rag.Metric { return s.metric }
func (s *MongoVectorStore) Dimension() int     { return s.dim }

// IndexDefinition is the Atlas vector index document this store expects.
func (s *MongoVectorStore) IndexDefinition() bson.D {
	similarity := "cosine"
	if s.metric == rag.MetricInnerProduct {
		similarity = "dotProduct"
	}
	return bson.D{{Key: "fields", Value: bson.A{
		bson.D{
			{Key: "type", Value: "vector"},
			{Key: "path", Value: "vector"},
			{Key: "numDimensions", Value: s.dim},
			{Key: "similarity", Value: similarity},
		},
	}}}
}

func (s *MongoVectorStore) SimilaritySearch(ctx context.Context, vector []float32, k int) ([]rag.Candidate, error) {
	if err := checkDimension(vector, s.dim); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	pipeline := mongo.Pipeline{
		{{Key: "$vectorSearch", Value: bson.D{
			{Key: "index", Value: s.index},
			{Key: "path", Value: "vector"},
			{Key: "queryVector", Value: vector},
			{Key: "numCandidates", Value: k * 10},
			{Key: "limit", Value: k},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "paper_id", Value: 1},
			{Key: "text", Value: 1},
			{Key: "metadata", Value: 1},
			{Key: "score", Value: bson.D{{Key: "$meta", Value: "vectorSearchScore"}}},
		}}},
	}

	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("vector search %s: %w", s.collection.Name(), err)
	}
	defer cursor.Close(ctx)

	var candidates []rag.Candidate
	for cursor.Next(ctx) {
		var hit struct {
			models.ChunkIndex `bson:",inline"`
			Score             float64 `bson:"score"`
		}
		if err := cursor.Decode(&hit); err != nil {
			return nil, fmt.Errorf("decode hit: %w", err)
		}
		candidates = append(candidates, rag.Candidate{
			Chunk: rag.Chunk{
				ID:       hit.PaperID,
				Text:     hit.Text,
				Metadata: hit.Metadata,
			},
			Similarity: scoreToSimilarity(hit.Score),
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("read hits: %w", err)
	}
	return candidates, nil
}

// scoreToSimilarity undoes Atlas' (1 + s) / 2 normalization of cosine and
// dotProduct scores.
func scoreToSimilarity(score float64) float64 {
	return 2*score - 1
}

// Upsert replaces chunk documents keyed by ChunkKey.
func (s *MongoVectorStore) Upsert(ctx context.Context, chunks []rag.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := validateChunks(chunks, s.dim); err != nil {
		return err
	}

	writes := make([]mongo.WriteModel, 0, len(chunks))
	for _, c := range chunks {
		doc := models.ChunkIndex{
			ChunkID:  ChunkKey(c),
			PaperID:  c.ID,
			Text:     c.Text,
			Vector:   c.Vector,
			Metadata: c.Metadata,
		}
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": doc.ChunkID}).
			SetReplacement(doc).
			SetUpsert(true))
	}

	_, err := s.collection.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("upsert into %s: %w", s.collection.Name(), err)
	}
	return nil
}
