package models

// AskRequest is the POST /chat/ask body.
type AskRequest struct {
	Question   string `json:"question" binding:"required,min=1,max=2000"`
	Collection string `json:"collection,omitempty"`
}

// AskResponse carries the linked answer and its grounded references.
type AskResponse struct {
	Answer        string   `json:"answer"`
	Raw           string   `json:"raw"`
	References    []string `json:"references"`
	Collection    string   `json:"collection"`
	PromptVersion string   `json:"prompt_version"`
	Cached        bool     `json:"cached"`
	RequestID     string   `json:"request_id,omitempty"`
}

// CollectionInfo describes one registered vector collection.
type CollectionInfo struct {
	Name       string `json:"name"`
	Collection string `json:"collection"`
	Provider   string `json:"provider"`
	Metric     string `json:"metric"`
	Dimension  int    `json:"dimension"`
	Default    bool   `json:"default"`
}
