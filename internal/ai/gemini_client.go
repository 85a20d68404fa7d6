package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"

	"llmpedia-backend/internal/breaker"
	"llmpedia-backend/internal/rag"
)

var (
	// ErrRateLimited is returned when the tier's token or request budget is spent.
	ErrRateLimited = errors.New("rate limit exceeded: wait before retry")
	// ErrBlocked is returned when the provider refused to answer.
	ErrBlocked = errors.New("response blocked by provider")
	// ErrEmptyResponse is returned when the provider answered without text.
	ErrEmptyResponse = errors.New("provider returned no text")
)

// UsageRecorder receives the token count of every successful generation.
type UsageRecorder interface {
	RecordTokensUsed(tokens int64, model string)
}

// GeminiGenerator renders the maestro prompt and sends it to a Gemini model.
type GeminiGenerator struct {
	client       *genai.Client
	model        string
	prompt       rag.PromptTemplate
	breaker      *gobreaker.CircuitBreaker
	rateLimiter  *rate.Limiter
	tokenCounter *TokenCounter
	usage        UsageRecorder
}

type GeminiOption func(*GeminiGenerator)

func WithGeminiUsage(u UsageRecorder) GeminiOption {
	return func(g *GeminiGenerator) { g.usage = u }
}

func WithGeminiPrompt(p rag.PromptTemplate) GeminiOption {
	return func(g *GeminiGenerator) { g.prompt = p }
}

func NewGeminiGenerator(ctx context.Context, apiKey, model, tier string, listener breaker.StateListener, opts ...GeminiOption) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for generation")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	limits := getRateLimits(tier)
	burst := limits.RPM / 10
	if burst < 1 {
		burst = 1
	}

	g := &GeminiGenerator{
		client:       client,
		model:        model,
		prompt:       rag.PromptV1,
		breaker:      breaker.New("GeminiAPI", listener),
		rateLimiter:  rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), burst),
		tokenCounter: NewTokenCounter(limits),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate answers question from qctx. There is no canned fallback: an open
// breaker, a spent budget or a blocked answer all fail the call.
func (g *GeminiGenerator) Generate(ctx context.Context, qctx rag.QueryContext, question string) (string, error) {
	ctx, span := otel.Tracer("gemini-client").Start(ctx, "gemini.generate_content")
	defer span.End()

	prompt := g.prompt.Render(qctx, question)
	estimatedTokens := EstimateTokens(prompt)
	span.SetAttributes(
		attribute.Int("gemini.estimated_tokens", estimatedTokens),
		attribute.Int("gemini.context_segments", len(qctx.Segments)),
		attribute.String("gemini.model", g.model),
	)

	if !g.tokenCounter.CanConsume(estimatedTokens, 1) {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return "", ErrRateLimited
	}
	if err := g.rateLimiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return "", err
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		model := configureGeminiModel(g.client, g.model)
		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return nil, err
		}
		return resp, nil
	})
	if err != nil {
		if breaker.IsOpen(err) {
			span.SetAttributes(attribute.Bool("gemini.circuit_breaker_open", true))
		}
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return "", err
	}

	resp := result.(*genai.GenerateContentResponse)
	actualTokens := extractTokenUsage(resp)
	g.tokenCounter.RecordUsage(actualTokens, 1)
	if g.usage != nil {
		g.usage.RecordTokensUsed(int64(actualTokens), g.model)
	}
	span.SetAttributes(attribute.Int("gemini.actual_tokens", actualTokens))

	return extractResponseText(resp)
}

func (g *GeminiGenerator) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func configureGeminiModel(client *genai.Client, name string) *genai.GenerativeModel {
	model := client.GenerativeModel(name)
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockMediumAndAbove},
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockMediumAndAbove},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockMediumAndAbove},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockMediumAndAbove},
	}
	model.SetTemperature(0.2)
	model.SetTopP(0.8)
	model.SetMaxOutputTokens(2048)
	return model
}

// extractResponseText joins the text parts of the first candidate.
func extractResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", ErrEmptyResponse
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		return "", fmt.Errorf("%w: %s", ErrBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}
	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: %s", ErrBlocked, resp.Candidates[0].FinishReason)
	}

	var reply strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			reply.WriteString(string(txt))
		}
	}
	text := strings.TrimSpace(reply.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// extractTokenUsage prefers the usage metadata and falls back to estimating
// from the response text.
func extractTokenUsage(resp *genai.GenerateContentResponse) int {
	if resp.UsageMetadata != nil {
		return int(resp.UsageMetadata.TotalTokenCount)
	}

	var total strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				total.WriteString(string(text))
			}
		}
	}
	return EstimateTokens(total.String())
}
