package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// QnARecord is one answered question in the qna_log collection.
type QnARecord struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Question  string             `bson:"question" json:"question"`
	Answer    string             `bson:"answer" json:"answer"`
	RequestID string             `bson:"request_id,omitempty" json:"request_id,omitempty"`
	Timestamp time.Time          `bson:"tstp" json:"tstp"`
}

// QnALogPayload is the background task payload for an asynchronous log write.
type QnALogPayload struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"tstp"`
}
