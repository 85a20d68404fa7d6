// Package app wires configuration into the clients the server, the worker and
// the migrate tool share.
package app

import (
	"context"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"

	"llmpedia-backend/internal/ai"
	"llmpedia-backend/internal/breaker"
	"llmpedia-backend/internal/config"
	"llmpedia-backend/internal/logger"
	"llmpedia-backend/internal/rag"
	"llmpedia-backend/internal/rerank"
	"llmpedia-backend/internal/vectorstore"
)

// Backends are the database connections a process holds.
type Backends struct {
	Mongo    *mongo.Client
	DB       *mongo.Database
	Postgres *pgxpool.Pool
}

// Connect opens MongoDB, and Postgres when it backs the vector collections.
func Connect(cfg *config.Config) (*Backends, error) {
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		return nil, err
	}
	b := &Backends{Mongo: mongoClient, DB: mongoClient.Database(cfg.DBName)}

	if cfg.VectorBackend == "pgvector" {
		pool, err := config.ConnectPostgres(cfg)
		if err != nil {
			b.Close(context.Background())
			return nil, err
		}
		b.Postgres = pool
	}
	return b, nil
}

func (b *Backends) Close(ctx context.Context) {
	if b.Postgres != nil {
		b.Postgres.Close()
	}
	if b.Mongo != nil {
		if err := b.Mongo.Disconnect(ctx); err != nil {
			logger.Warn("MongoDB disconnect failed", "error", err)
		}
	}
}

// Collections is the built registry plus the writable stores behind it.
type Collections struct {
	Registry *rag.Registry
	Stores   map[string]vectorstore.Store
	closers  []io.Closer
}

func (c *Collections) Close() {
	for _, cl := range c.closers {
		_ = cl.Close()
	}
}

// BuildCollections registers every configured collection whose provider has
// an API key. Entries without a key are skipped with a warning; a registry
// with no entries is an error.
func BuildCollections(ctx context.Context, cfg *config.Config, b *Backends, listener breaker.StateListener) (*Collections, error) {
	entries, err := cfg.Collections()
	if err != nil {
		return nil, err
	}

	out := &Collections{Registry: rag.NewRegistry(), Stores: make(map[string]vectorstore.Store)}
	for _, entry := range entries {
		embedder, closer, err := newEmbedder(ctx, cfg, entry, listener)
		if err != nil {
			out.Close()
			return nil, fmt.Errorf("collection %q: %w", entry.Name, err)
		}
		if embedder == nil {
			logger.Warn("Skipping collection without provider credentials",
				"collection", entry.Name, "provider", entry.Provider)
			continue
		}
		if closer != nil {
			out.closers = append(out.closers, closer)
		}

		store, err := newStore(cfg, b, entry)
		if err != nil {
			out.Close()
			return nil, fmt.Errorf("collection %q: %w", entry.Name, err)
		}

		spec := rag.CollectionSpec{
			Name:       entry.Name,
			Collection: entry.Collection,
			Provider:   rag.EmbeddingProvider(entry.Provider),
			Metric:     rag.Metric(entry.Metric),
			Dimension:  entry.Dimension,
		}
		if err := out.Registry.Register(spec, embedder, store); err != nil {
			out.Close()
			return nil, err
		}
		out.Stores[entry.Name] = store
		logger.Info("Collection registered", "name", spec.Name, "collection", spec.Collection,
			"provider", spec.Provider, "metric", spec.Metric, "dimension", spec.Dimension,
			"backend", cfg.VectorBackend)
	}

	if out.Registry.Len() == 0 {
		return nil, fmt.Errorf("no collection could be registered")
	}
	if _, err := out.Registry.Lookup(cfg.DefaultCollection); err != nil {
		out.Close()
		return nil, fmt.Errorf("DEFAULT_COLLECTION: %w", err)
	}
	return out, nil
}

func newEmbedder(ctx context.Context, cfg *config.Config, entry config.CollectionConfig, listener breaker.StateListener) (rag.EmbeddingClient, io.Closer, error) {
	switch rag.EmbeddingProvider(entry.Provider) {
	case rag.ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, nil, nil
		}
		e, err := ai.NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, entry.Model, entry.Dimension, cfg.EmbedMaxChars, listener)
		if err != nil {
			return nil, nil, err
		}
		return e, e, nil
	case rag.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, nil, nil
		}
		e, err := ai.NewOpenAIEmbedder(cfg.OpenAIAPIKey, entry.Model, entry.Dimension, cfg.EmbedMaxChars, listener)
		if err != nil {
			return nil, nil, err
		}
		return e, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown embedding provider %q", entry.Provider)
	}
}

func newStore(cfg *config.Config, b *Backends, entry config.CollectionConfig) (vectorstore.Store, error) {
	metric := rag.Metric(entry.Metric)
	switch cfg.VectorBackend {
	case "pgvector":
		return vectorstore.NewPGVectorStore(b.Postgres, entry.Collection, metric, entry.Dimension)
	case "mongo":
		return vectorstore.NewMongoVectorStore(b.DB, entry.Collection, vectorstore.DefaultVectorIndex, metric, entry.Dimension)
	case "memory":
		return vectorstore.NewMemoryStore(metric, entry.Dimension)
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
}

// Telemetry is what the generator and breakers report to.
type Telemetry interface {
	ai.UsageRecorder
	RecordCircuitBreakerState(service, state string)
}

// NewGenerator builds the configured answer generator. The returned closer
// may be nil.
func NewGenerator(ctx context.Context, cfg *config.Config, tel Telemetry) (rag.GenerationClient, io.Closer, error) {
	switch cfg.GenerationProvider {
	case "openai":
		g, err := ai.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIChatModel, tel.RecordCircuitBreakerState, tel)
		if err != nil {
			return nil, nil, err
		}
		return g, nil, nil
	default:
		g, err := ai.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiTier,
			tel.RecordCircuitBreakerState, ai.WithGeminiUsage(tel), ai.WithGeminiPrompt(rag.PromptV1))
		if err != nil {
			return nil, nil, err
		}
		return g, g, nil
	}
}

func NewReranker(cfg *config.Config, listener breaker.StateListener) (rag.RerankClient, error) {
	r, err := rerank.NewCohereReranker(rerank.Config{
		URL:     cfg.RerankURL,
		APIKey:  cfg.CohereAPIKey,
		Model:   cfg.RerankModel,
		Timeout: cfg.RerankTimeout,
	}, listener)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// PipelineOptions turns config into orchestrator options.
func PipelineOptions(cfg *config.Config) []rag.Option {
	return []rag.Option{
		rag.WithLimits(rag.Limits{K: cfg.RetrievalK, TopN: cfg.RerankTopN}),
		rag.WithTimeouts(rag.Timeouts{
			Embed:    cfg.EmbedTimeout,
			Search:   cfg.SearchTimeout,
			Rerank:   cfg.RerankTimeout,
			Generate: cfg.GenerateTimeout,
			Log:      rag.DefaultTimeouts.Log,
		}),
		rag.WithPrompt(rag.PromptV1),
	}
}
