package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"unset uses default", "", 5 * time.Second},
		{"go duration", "250ms", 250 * time.Millisecond},
		{"plain seconds", "30", 30 * time.Second},
		{"garbage uses default", "soon", 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MAESTRO_TEST_DURATION", tt.value)
			if got := getEnvDuration("MAESTRO_TEST_DURATION", 5*time.Second); got != tt.want {
				t.Fatalf("getEnvDuration = %v, want %v", got, tt.want)
			}
		})
	}
}

func validConfig() *Config {
	return &Config{
		GeminiAPIKey:       "key",
		GenerationProvider: "gemini",
		VectorBackend:      "memory",
		QnALogMode:         "direct",
		RetrievalK:         20,
		RerankTopN:         7,
		ContextMaxChars:    12000,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"no provider keys", func(c *Config) { c.GeminiAPIKey = "" }, true},
		{"openai generator without key", func(c *Config) { c.GenerationProvider = "openai" }, true},
		{"unknown generator", func(c *Config) { c.GenerationProvider = "claude" }, true},
		{"unknown backend", func(c *Config) { c.VectorBackend = "qdrant" }, true},
		{"unknown log mode", func(c *Config) { c.QnALogMode = "kafka" }, true},
		{"zero top n", func(c *Config) { c.RerankTopN = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultCollections(t *testing.T) {
	cfg := validConfig()
	cfg.GoogleEmbeddingsModel = "text-embedding-004"
	cfg.OpenAIEmbeddingsModel = "text-embedding-3-small"

	cols, err := cfg.Collections()
	if err != nil {
		t.Fatalf("Collections: %v", err)
	}
	if len(cols) != 2 {
		t.Fatalf("expected 2 default collections, got %d", len(cols))
	}
	if cols[0].Provider == cols[1].Provider || cols[0].Dimension == cols[1].Dimension {
		t.Fatalf("default collections must use distinct providers and dimensions: %+v", cols)
	}
}

func TestLoadCollections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "collections.yaml")
	content := `collections:
  - name: gemini
    collection: arxiv_vectors_gemini
    provider: gemini
    model: text-embedding-004
    metric: cosine
    dimension: 768
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cols, err := LoadCollections(path)
	if err != nil {
		t.Fatalf("LoadCollections: %v", err)
	}
	if len(cols) != 1 || cols[0].Collection != "arxiv_vectors_gemini" || cols[0].Dimension != 768 {
		t.Fatalf("unexpected collections: %+v", cols)
	}

	if _, err := LoadCollections(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(empty, []byte("collections: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCollections(empty); err == nil {
		t.Fatal("expected error for empty collections file")
	}
}
