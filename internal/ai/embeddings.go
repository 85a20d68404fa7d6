package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/generative-ai-go/genai"
	"github.com/openai/openai-go"
	oaoption "github.com/openai/openai-go/option"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/option"

	"llmpedia-backend/internal/breaker"
	"llmpedia-backend/internal/rag"
)

// ErrEmptyEmbedding is returned when a provider answers without a vector.
var ErrEmptyEmbedding = errors.New("no embedding returned")

var modelDimensions = map[string]int{
	"text-embedding-004":     768,
	"embedding-001":          768,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// ModelDimension returns the native output size of a known embedding model.
func ModelDimension(model string) (int, bool) {
	d, ok := modelDimensions[strings.TrimPrefix(model, "models/")]
	return d, ok
}

func shortenable(model string) bool {
	return strings.HasPrefix(model, "text-embedding-3")
}

// TruncateForEmbedding cuts text to at most maxChars characters, backing off
// to the last whitespace so words are not split.
func TruncateForEmbedding(text string, maxChars int) string {
	text = strings.TrimSpace(text)
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	runes := []rune(text)[:maxChars]
	cut := string(runes)
	if i := strings.LastIndexAny(cut, " \n\t"); i > len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}

// GeminiEmbedder embeds questions and corpus passages with a Google
// embedding model, using the matching retrieval task type for each.
type GeminiEmbedder struct {
	client   *genai.Client
	model    string
	dim      int
	maxChars int
	breaker  *gobreaker.CircuitBreaker
}

func NewGeminiEmbedder(ctx context.Context, apiKey, model string, dim, maxChars int, listener breaker.StateListener) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
	}
	if native, ok := ModelDimension(model); ok && native != dim {
		return nil, fmt.Errorf("embedding model %s produces %d dims, collection expects %d: %w",
			model, native, dim, rag.ErrDimensionMismatch)
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &GeminiEmbedder{
		client:   client,
		model:    model,
		dim:      dim,
		maxChars: maxChars,
		breaker:  breaker.New("GeminiEmbeddings", listener),
	}, nil
}

func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, text, genai.TaskTypeRetrievalQuery)
}

func (e *GeminiEmbedder) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, text, genai.TaskTypeRetrievalDocument)
}

func (e *GeminiEmbedder) embed(ctx context.Context, text string, task genai.TaskType) ([]float32, error) {
	ctx, span := otel.Tracer("gemini-client").Start(ctx, "gemini.embed_content")
	defer span.End()
	span.SetAttributes(
		attribute.String("gemini.embedding_model", e.model),
		attribute.Int("gemini.task_type", int(task)),
	)

	text = TruncateForEmbedding(text, e.maxChars)
	result, err := e.breaker.Execute(func() (interface{}, error) {
		em := e.client.EmbeddingModel(e.model)
		em.TaskType = task
		resp, err := em.EmbedContent(ctx, genai.Text(text))
		if err != nil {
			return nil, err
		}
		if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
			return nil, ErrEmptyEmbedding
		}
		return resp.Embedding.Values, nil
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return nil, rag.Unavailable(rag.ErrEmbeddingUnavailable, err)
	}
	return result.([]float32), nil
}

func (e *GeminiEmbedder) Provider() rag.EmbeddingProvider { return rag.ProviderGemini }
func (e *GeminiEmbedder) Dimension() int                  { return e.dim }

func (e *GeminiEmbedder) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// OpenAIEmbedder embeds text with an OpenAI embedding model.
type OpenAIEmbedder struct {
	client   openai.Client
	model    string
	dim      int
	maxChars int
	breaker  *gobreaker.CircuitBreaker
}

// NewOpenAIEmbedder accepts extra client options (e.g. a base URL for tests).
// Retries are disabled; a failing call fails the query.
func NewOpenAIEmbedder(apiKey, model string, dim, maxChars int, listener breaker.StateListener, opts ...oaoption.RequestOption) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY for embeddings")
	}
	if native, ok := ModelDimension(model); ok {
		// Only text-embedding-3 models can be shortened with the dimensions
		// parameter.
		if dim > native || (dim != native && !shortenable(model)) {
			return nil, fmt.Errorf("embedding model %s cannot produce %d dims (native %d): %w",
				model, dim, native, rag.ErrDimensionMismatch)
		}
	}
	opts = append([]oaoption.RequestOption{oaoption.WithAPIKey(apiKey), oaoption.WithMaxRetries(0)}, opts...)
	return &OpenAIEmbedder{
		client:   openai.NewClient(opts...),
		model:    model,
		dim:      dim,
		maxChars: maxChars,
		breaker:  breaker.New("OpenAIEmbeddings", listener),
	}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, span := otel.Tracer("openai-client").Start(ctx, "openai.embeddings")
	defer span.End()
	span.SetAttributes(attribute.String("openai.embedding_model", e.model))

	params := openai.EmbeddingNewParams{
		Input:          openai.EmbeddingNewParamsInputUnion{OfString: openai.String(TruncateForEmbedding(text, e.maxChars))},
		Model:          openai.EmbeddingModel(e.model),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}
	if shortenable(e.model) {
		params.Dimensions = openai.Int(int64(e.dim))
	}

	result, err := e.breaker.Execute(func() (interface{}, error) {
		resp, err := e.client.Embeddings.New(ctx, params)
		if err != nil {
			return nil, err
		}
		if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
			return nil, ErrEmptyEmbedding
		}
		values := resp.Data[0].Embedding
		vec := make([]float32, len(values))
		for i, v := range values {
			vec[i] = float32(v)
		}
		return vec, nil
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("openai.error", true))
		return nil, rag.Unavailable(rag.ErrEmbeddingUnavailable, err)
	}
	return result.([]float32), nil
}

// EmbedDocument is Embed: OpenAI embeddings are the same for questions and
// passages.
func (e *OpenAIEmbedder) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return e.Embed(ctx, text)
}

func (e *OpenAIEmbedder) Provider() rag.EmbeddingProvider { return rag.ProviderOpenAI }
func (e *OpenAIEmbedder) Dimension() int                  { return e.dim }
