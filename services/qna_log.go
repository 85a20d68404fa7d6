package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"llmpedia-backend/internal/config"
	"llmpedia-backend/models"
	"llmpedia-backend/utils"
)

// QnALog stores answered questions in the qna_log collection.
type QnALog struct {
	col *mongo.Collection
	now func() time.Time
}

func NewQnALog(db *mongo.Database) *QnALog {
	return &QnALog{col: db.Collection(config.QnALogCollection), now: time.Now}
}

// LogQuestionAnswer records one pair, tagged with the request id carried by ctx.
func (l *QnALog) LogQuestionAnswer(ctx context.Context, question, answer string) error {
	return l.Record(ctx, models.QnARecord{
		Question:  question,
		Answer:    answer,
		RequestID: utils.RequestID(ctx),
		Timestamp: l.now().UTC(),
	})
}

func (l *QnALog) Record(ctx context.Context, rec models.QnARecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = l.now().UTC()
	}
	_, err := l.col.InsertOne(ctx, rec)
	return err
}

// Recent returns the latest records, newest first.
func (l *QnALog) Recent(ctx context.Context, limit int64) ([]models.QnARecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "tstp", Value: -1}}).SetLimit(limit)
	cursor, err := l.col.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []models.QnARecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}
