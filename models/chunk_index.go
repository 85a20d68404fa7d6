package models

// ChunkIndex is one embedded paper chunk in a Mongo vector collection.
// Keeping a separate collection per embedding scheme enables $vectorSearch.
type ChunkIndex struct {
	ChunkID  string         `bson:"_id"`
	PaperID  string         `bson:"paper_id"`
	Text     string         `bson:"text"`
	Vector   []float32      `bson:"vector,omitempty"`
	Metadata map[string]any `bson:"metadata,omitempty"`
}
