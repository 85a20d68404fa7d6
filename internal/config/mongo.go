package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson" // Use bson for index keys
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names owned or read by this service.
const (
	PapersCollection        = "arxiv_details"
	QnALogCollection        = "qna_log"
	WeeklyReviewsCollection = "weekly_reviews"
)

func ConnectMongoDB(cfg *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	// Test connection
	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	return client, nil
}

// CreateIndexes creates the indexes the read paths rely on. vectorCollections
// are the chunk collections used when VECTOR_BACKEND=mongo; their Atlas vector
// index is managed in Atlas itself.
func CreateIndexes(ctx context.Context, client *mongo.Client, dbName string, vectorCollections []string) error {
	db := client.Database(dbName)

	_, err := db.Collection(PapersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "arxiv_code", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "published", Value: -1}},
		},
	})
	if err != nil {
		return err
	}

	_, err = db.Collection(QnALogCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "tstp", Value: -1}}},
		{Keys: bson.D{{Key: "request_id", Value: 1}}},
	})
	if err != nil {
		return err
	}

	_, err = db.Collection(WeeklyReviewsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "date", Value: -1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}

	for _, name := range vectorCollections {
		_, err = db.Collection(name).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: "paper_id", Value: 1}},
		})
		if err != nil {
			return fmt.Errorf("failed to index %s: %w", name, err)
		}
	}

	return nil
}
