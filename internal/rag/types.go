package rag

import (
	"strings"
	"time"
)

// Chunk is a retrievable unit of paper text. ID is the paper identifier the
// chunk cites, possibly versioned ("2305.12345v2").
type Chunk struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Vector   []float32      `json:"vector,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Candidate is a vector-store hit.
type Candidate struct {
	Chunk      Chunk
	Similarity float64
}

// RankedCandidate is a reranked hit; Rank starts at 1.
type RankedCandidate struct {
	Chunk     Chunk
	Relevance float64
	Rank      int
}

// Segment is one tagged document inside a QueryContext.
type Segment struct {
	ID   string
	Rank int
	Text string
}

// QueryContext is the bounded prompt context for one query.
type QueryContext struct {
	Text     string
	Segments []Segment
	Budget   int
	// Dropped counts ranked candidates left out to honor Budget.
	Dropped int
}

// Empty reports whether no document made it into the context.
func (q QueryContext) Empty() bool {
	return len(q.Segments) == 0
}

// IDs returns the canonical source ids of the context, in rank order.
func (q QueryContext) IDs() []string {
	seen := make(map[string]struct{}, len(q.Segments))
	ids := make([]string, 0, len(q.Segments))
	for _, s := range q.Segments {
		id := CanonicalID(s.ID)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// Answer is the result of one query.
type Answer struct {
	ID            string    `json:"id"`
	Question      string    `json:"question"`
	Collection    string    `json:"collection"`
	Raw           string    `json:"raw"`
	Linked        string    `json:"linked"`
	References    []string  `json:"references"`
	ContextIDs    []string  `json:"context_ids"`
	PromptVersion string    `json:"prompt_version"`
	CreatedAt     time.Time `json:"created_at"`
	Cached        bool      `json:"-"`
}

// CanonicalID strips an arxiv version suffix: "2305.12345v2" -> "2305.12345".
func CanonicalID(id string) string {
	id = strings.TrimSpace(id)
	if i := strings.LastIndexByte(id, 'v'); i > 0 && i < len(id)-1 {
		for _, r := range id[i+1:] {
			if r < '0' || r > '9' {
				return id
			}
		}
		return id[:i]
	}
	return id
}
