package rag

import (
	"fmt"
	"sort"
)

// EmbeddingProvider is the closed set of embedding schemes a collection can
// be built with.
type EmbeddingProvider string

const (
	ProviderGemini EmbeddingProvider = "gemini"
	ProviderOpenAI EmbeddingProvider = "openai"
)

func (p EmbeddingProvider) Valid() bool {
	return p == ProviderGemini || p == ProviderOpenAI
}

// Metric is the similarity a collection was indexed with.
type Metric string

const (
	MetricCosine       Metric = "cosine"
	MetricInnerProduct Metric = "inner_product"
)

func (m Metric) Valid() bool {
	return m == MetricCosine || m == MetricInnerProduct
}

// CollectionSpec binds a human-readable scheme name to one vector collection,
// one embedding provider, one metric and one dimension.
type CollectionSpec struct {
	Name       string            `json:"name"`
	Collection string            `json:"collection"`
	Provider   EmbeddingProvider `json:"provider"`
	Metric     Metric            `json:"metric"`
	Dimension  int               `json:"dimension"`
}

func (s CollectionSpec) Validate() error {
	switch {
	case s.Name == "":
		return fmt.Errorf("collection spec: name is required")
	case s.Collection == "":
		return fmt.Errorf("collection spec %q: collection id is required", s.Name)
	case !s.Provider.Valid():
		return fmt.Errorf("collection spec %q: unknown embedding provider %q", s.Name, s.Provider)
	case !s.Metric.Valid():
		return fmt.Errorf("collection spec %q: unknown metric %q", s.Name, s.Metric)
	case s.Dimension <= 0:
		return fmt.Errorf("collection spec %q: dimension must be > 0", s.Name)
	}
	return nil
}

// Binding is a registered collection with its clients.
type Binding struct {
	Spec     CollectionSpec
	Embedder EmbeddingClient
	Store    VectorStoreClient
}

// Registry maps scheme names to bindings. It is built once at startup and is
// read-only afterwards.
type Registry struct {
	bindings    map[string]*Binding
	collections map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		bindings:    make(map[string]*Binding),
		collections: make(map[string]string),
	}
}

// Register validates spec against the clients it is bound to. Any mismatch is
// a configuration error.
func (r *Registry) Register(spec CollectionSpec, embedder EmbeddingClient, store VectorStoreClient) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	if embedder == nil || store == nil {
		return fmt.Errorf("collection %q: embedder and store are required", spec.Name)
	}
	if _, ok := r.bindings[spec.Name]; ok {
		return fmt.Errorf("collection %q already registered", spec.Name)
	}
	if owner, ok := r.collections[spec.Collection]; ok {
		return fmt.Errorf("collection id %q already bound to %q", spec.Collection, owner)
	}
	if embedder.Provider() != spec.Provider {
		return fmt.Errorf("collection %q: embedder provider %q, want %q", spec.Name, embedder.Provider(), spec.Provider)
	}
	if embedder.Dimension() != spec.Dimension {
		return fmt.Errorf("collection %q: %w: embedder %d vs spec %d", spec.Name, ErrDimensionMismatch, embedder.Dimension(), spec.Dimension)
	}
	if store.Dimension() != spec.Dimension {
		return fmt.Errorf("collection %q: %w: store %d vs spec %d", spec.Name, ErrDimensionMismatch, store.Dimension(), spec.Dimension)
	}
	if store.Metric() != spec.Metric {
		return fmt.Errorf("collection %q: store metric %q, want %q", spec.Name, store.Metric(), spec.Metric)
	}

	r.bindings[spec.Name] = &Binding{Spec: spec, Embedder: embedder, Store: store}
	r.collections[spec.Collection] = spec.Name
	return nil
}

// Lookup returns the binding for name or an error matching ErrUnknownCollection.
func (r *Registry) Lookup(name string) (*Binding, error) {
	b, ok := r.bindings[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, name)
	}
	return b, nil
}

// Specs lists registered collections sorted by name.
func (r *Registry) Specs() []CollectionSpec {
	specs := make([]CollectionSpec, 0, len(r.bindings))
	for _, b := range r.bindings {
		specs = append(specs, b.Spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

func (r *Registry) Len() int {
	return len(r.bindings)
}
