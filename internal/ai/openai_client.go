package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	oaoption "github.com/openai/openai-go/option"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"llmpedia-backend/internal/breaker"
	"llmpedia-backend/internal/rag"
)

// OpenAIGenerator sends the maestro prompt to an OpenAI chat model.
type OpenAIGenerator struct {
	client  openai.Client
	model   string
	prompt  rag.PromptTemplate
	breaker *gobreaker.CircuitBreaker
	usage   UsageRecorder
}

func NewOpenAIGenerator(apiKey, model string, listener breaker.StateListener, usage UsageRecorder, opts ...oaoption.RequestOption) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY for generation")
	}
	opts = append([]oaoption.RequestOption{oaoption.WithAPIKey(apiKey), oaoption.WithMaxRetries(0)}, opts...)
	return &OpenAIGenerator{
		client:  openai.NewClient(opts...),
		model:   model,
		prompt:  rag.PromptV1,
		breaker: breaker.New("OpenAIAPI", listener),
		usage:   usage,
	}, nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, qctx rag.QueryContext, question string) (string, error) {
	ctx, span := otel.Tracer("openai-client").Start(ctx, "openai.chat_completion")
	defer span.End()
	span.SetAttributes(
		attribute.String("openai.model", g.model),
		attribute.Int("openai.context_segments", len(qctx.Segments)),
	)

	prompt := g.prompt.Render(qctx, question)
	result, err := g.breaker.Execute(func() (interface{}, error) {
		return g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:       openai.ChatModel(g.model),
			Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
			Temperature: openai.Float(0.2),
		})
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("openai.error", true))
		return "", err
	}

	completion := result.(*openai.ChatCompletion)
	if g.usage != nil && completion.Usage.TotalTokens > 0 {
		g.usage.RecordTokensUsed(completion.Usage.TotalTokens, g.model)
	}
	span.SetAttributes(attribute.Int64("openai.total_tokens", completion.Usage.TotalTokens))

	if len(completion.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	choice := completion.Choices[0]
	if choice.FinishReason == "content_filter" {
		return "", fmt.Errorf("%w: content_filter", ErrBlocked)
	}
	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
