package rag

import (
	"context"
	"errors"
	"testing"
)

type stubEmbedder struct {
	provider EmbeddingProvider
	dim      int
}

func (s stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return make([]float32, s.dim), nil
}
func (s stubEmbedder) Provider() EmbeddingProvider { return s.provider }
func (s stubEmbedder) Dimension() int              { return s.dim }

type stubStore struct {
	metric Metric
	dim    int
}

func (s stubStore) SimilaritySearch(context.Context, []float32, int) ([]Candidate, error) {
	return nil, nil
}
func (s stubStore) Metric() Metric { return s.metric }
func (s stubStore) Dimension() int { return s.dim }

func geminiSpec() CollectionSpec {
	return CollectionSpec{
		Name:       "gemini",
		Collection: "arxiv_vectors_gemini",
		Provider:   ProviderGemini,
		Metric:     MetricCosine,
		Dimension:  768,
	}
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(geminiSpec(), stubEmbedder{ProviderGemini, 768}, stubStore{MetricCosine, 768}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	openai := CollectionSpec{Name: "openai", Collection: "arxiv_vectors_oai3", Provider: ProviderOpenAI, Metric: MetricInnerProduct, Dimension: 1536}
	if err := r.Register(openai, stubEmbedder{ProviderOpenAI, 1536}, stubStore{MetricInnerProduct, 1536}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	b, err := r.Lookup("gemini")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if b.Spec.Collection != "arxiv_vectors_gemini" {
		t.Fatalf("unexpected binding %+v", b.Spec)
	}

	specs := r.Specs()
	if len(specs) != 2 || specs[0].Name != "gemini" || specs[1].Name != "openai" {
		t.Fatalf("Specs() = %+v", specs)
	}
	if r.Len() != 2 {
		t.Fatalf("Len() = %d", r.Len())
	}
}

func TestRegistryLookupUnknown(t *testing.T) {
	_, err := NewRegistry().Lookup("foo")
	if !errors.Is(err, ErrUnknownCollection) {
		t.Fatalf("expected ErrUnknownCollection, got %v", err)
	}
}

func TestRegistryRejectsMismatches(t *testing.T) {
	tests := []struct {
		name     string
		spec     CollectionSpec
		embedder EmbeddingClient
		store    VectorStoreClient
		wantDim  bool
	}{
		{
			name:     "embedder dimension",
			spec:     geminiSpec(),
			embedder: stubEmbedder{ProviderGemini, 1536},
			store:    stubStore{MetricCosine, 768},
			wantDim:  true,
		},
		{
			name:     "store dimension",
			spec:     geminiSpec(),
			embedder: stubEmbedder{ProviderGemini, 768},
			store:    stubStore{MetricCosine, 1024},
			wantDim:  true,
		},
		{
			name:     "provider",
			spec:     geminiSpec(),
			embedder: stubEmbedder{ProviderOpenAI, 768},
			store:    stubStore{MetricCosine, 768},
		},
		{
			name:     "metric",
			spec:     geminiSpec(),
			embedder: stubEmbedder{ProviderGemini, 768},
			store:    stubStore{MetricInnerProduct, 768},
		},
		{
			name:     "invalid provider",
			spec:     CollectionSpec{Name: "x", Collection: "c", Provider: "cohere", Metric: MetricCosine, Dimension: 8},
			embedder: stubEmbedder{"cohere", 8},
			store:    stubStore{MetricCosine, 8},
		},
		{
			name:     "zero dimension",
			spec:     CollectionSpec{Name: "x", Collection: "c", Provider: ProviderGemini, Metric: MetricCosine},
			embedder: stubEmbedder{ProviderGemini, 0},
			store:    stubStore{MetricCosine, 0},
		},
		{
			name:  "missing clients",
			spec:  geminiSpec(),
			store: stubStore{MetricCosine, 768},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			err := r.Register(tt.spec, tt.embedder, tt.store)
			if err == nil {
				t.Fatal("expected an error")
			}
			if got := errors.Is(err, ErrDimensionMismatch); got != tt.wantDim {
				t.Fatalf("errors.Is(err, ErrDimensionMismatch) = %v, want %v (%v)", got, tt.wantDim, err)
			}
			if r.Len() != 0 {
				t.Fatal("failed registration must not leave a binding")
			}
		})
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	emb, store := stubEmbedder{ProviderGemini, 768}, stubStore{MetricCosine, 768}
	if err := r.Register(geminiSpec(), emb, store); err != nil {
		t.Fatal(err)
	}

	if err := r.Register(geminiSpec(), emb, store); err == nil {
		t.Fatal("expected duplicate name to be rejected")
	}

	sameCollection := geminiSpec()
	sameCollection.Name = "gemini-2"
	if err := r.Register(sameCollection, emb, store); err == nil {
		t.Fatal("expected a collection bound twice to be rejected")
	}
}
