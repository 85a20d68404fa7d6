package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CollectionConfig describes one entry of the collection registry.
type CollectionConfig struct {
	Name       string `yaml:"name"`
	Collection string `yaml:"collection"`
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Metric     string `yaml:"metric"`
	Dimension  int    `yaml:"dimension"`
}

type collectionsFile struct {
	Collections []CollectionConfig `yaml:"collections"`
}

// DefaultCollections returns the two built-in registry entries, one per
// embedding provider.
func (c *Config) DefaultCollections() []CollectionConfig {
	return []CollectionConfig{
		{
			Name:       "gemini",
			Collection: "arxiv_vectors_gemini",
			Provider:   "gemini",
			Model:      c.GoogleEmbeddingsModel,
			Metric:     "cosine",
			Dimension:  768,
		},
		{
			Name:       "openai",
			Collection: "arxiv_vectors_oai3",
			Provider:   "openai",
			Model:      c.OpenAIEmbeddingsModel,
			Metric:     "inner_product",
			Dimension:  1536,
		},
	}
}

// Collections returns the registry entries from CollectionsFile, or the
// defaults when no file is configured.
func (c *Config) Collections() ([]CollectionConfig, error) {
	if c.CollectionsFile == "" {
		return c.DefaultCollections(), nil
	}
	return LoadCollections(c.CollectionsFile)
}

// LoadCollections reads a yaml file of the form:
//
//	collections:
//	  - name: gemini
//	    collection: arxiv_vectors_gemini
//	    provider: gemini
//	    model: text-embedding-004
//	    metric: cosine
//	    dimension: 768
func LoadCollections(path string) ([]CollectionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("collections file %s does not exist", path)
		}
		return nil, err
	}

	var file collectionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse collections file: %w", err)
	}
	if len(file.Collections) == 0 {
		return nil, fmt.Errorf("collections file %s has no entries", path)
	}
	return file.Collections, nil
}
