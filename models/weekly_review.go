package models

import "time"

// WeeklyReview is a stored weekly report (weekly_reviews collection). Review
// holds either a JSON object of sections or a markdown document.
type WeeklyReview struct {
	Date   time.Time `bson:"date" json:"date"`
	Review string    `bson:"review" json:"review"`
}

// ReportSection is one titled block of a parsed report.
type ReportSection struct {
	Key   string `json:"key,omitempty"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// WeeklyReport is a parsed weekly review.
type WeeklyReport struct {
	WeekStart  time.Time       `json:"week_start"`
	Format     string          `json:"format"`
	Title      string          `json:"title"`
	Sections   []ReportSection `json:"sections"`
	References []string        `json:"references"`
}
