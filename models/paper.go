package models

import "time"

// Paper is the catalog entry of one arxiv paper (arxiv_details collection).
type Paper struct {
	ArxivCode                string    `bson:"arxiv_code" json:"arxiv_code"`
	Title                    string    `bson:"title" json:"title"`
	Authors                  string    `bson:"authors" json:"authors"`
	Summary                  string    `bson:"summary,omitempty" json:"summary,omitempty"`
	Category                 string    `bson:"category,omitempty" json:"category,omitempty"`
	Topic                    string    `bson:"topic,omitempty" json:"topic,omitempty"`
	TweetInsight             string    `bson:"tweet_insight,omitempty" json:"tweet_insight,omitempty"`
	Published                time.Time `bson:"published" json:"published"`
	Updated                  time.Time `bson:"updated" json:"updated"`
	CitationCount            int       `bson:"citation_count" json:"citation_count"`
	InfluentialCitationCount int       `bson:"influential_citation_count" json:"influential_citation_count"`
	SimilarDocs              []string  `bson:"similar_docs,omitempty" json:"similar_docs,omitempty"`
}

var categoryLabels = map[string]string{
	"TRAINING":      "🏋️ TRAINING",
	"FINE-TUNING":   "🔧 FINE-TUNING",
	"ARCHITECTURES": "⚗️ MODELS",
	"BEHAVIOR":      "🧠 BEHAVIOR",
	"PROMPTING":     "✍️ PROMPTING",
	"USE CASES":     "💰 USE CASES",
	"OTHER":         "🤷 OTHER",
}

// CategoryLabel is the display label of the paper's category; unknown
// categories fall under OTHER.
func (p Paper) CategoryLabel() string {
	if label, ok := categoryLabels[p.Category]; ok {
		return label
	}
	return categoryLabels["OTHER"]
}

// ArxivURL is the paper's abstract page.
func (p Paper) ArxivURL() string {
	return "https://arxiv.org/abs/" + p.ArxivCode
}

// PaperResponse is the GET /papers/:id body.
type PaperResponse struct {
	Paper
	CategoryLabel string `json:"category_label"`
	URL           string `json:"url"`
	ViewerURL     string `json:"viewer_url"`
}
