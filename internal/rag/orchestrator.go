package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"llmpedia-backend/internal/logger"
)

const ungroundedNotice = "\n\n_I could not find supporting LLMpedia references for this answer; please verify it independently._"

// Limits bounds the pipeline.
type Limits struct {
	K    int
	TopN int
}

// Timeouts bounds each remote call. Zero disables the stage's own deadline.
type Timeouts struct {
	Embed    time.Duration
	Search   time.Duration
	Rerank   time.Duration
	Generate time.Duration
	Log      time.Duration
}

// DefaultTimeouts mirrors the config defaults.
var DefaultTimeouts = Timeouts{
	Embed:    15 * time.Second,
	Search:   10 * time.Second,
	Rerank:   15 * time.Second,
	Generate: 60 * time.Second,
	Log:      5 * time.Second,
}

// Orchestrator runs question -> embed -> search -> rerank -> assemble ->
// generate -> link as a strictly linear pipeline.
type Orchestrator struct {
	registry  *Registry
	reranker  RerankClient
	generator GenerationClient
	assembler *Assembler
	linker    *Linker
	prompt    PromptTemplate

	qaLog    QALogger
	cache    AnswerCache
	observer Observer

	limits   Limits
	timeouts Timeouts
	now      func() time.Time
}

type Option func(*Orchestrator)

func WithQALogger(l QALogger) Option { return func(o *Orchestrator) { o.qaLog = l } }

func WithAnswerCache(c AnswerCache) Option { return func(o *Orchestrator) { o.cache = c } }

func WithObserver(obs Observer) Option { return func(o *Orchestrator) { o.observer = obs } }

func WithLimits(l Limits) Option { return func(o *Orchestrator) { o.limits = l } }

func WithTimeouts(t Timeouts) Option { return func(o *Orchestrator) { o.timeouts = t } }

// WithPrompt records which template the generator renders, so answers carry
// its version.
func WithPrompt(p PromptTemplate) Option { return func(o *Orchestrator) { o.prompt = p } }

func WithClock(now func() time.Time) Option { return func(o *Orchestrator) { o.now = now } }

func NewOrchestrator(registry *Registry, reranker RerankClient, generator GenerationClient, assembler *Assembler, linker *Linker, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:  registry,
		reranker:  reranker,
		generator: generator,
		assembler: assembler,
		linker:    linker,
		prompt:    PromptV1,
		limits:    Limits{K: DefaultK, TopN: DefaultTopN},
		timeouts:  DefaultTimeouts,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.limits.K <= 0 {
		o.limits.K = DefaultK
	}
	if o.limits.TopN <= 0 {
		o.limits.TopN = DefaultTopN
	}
	return o
}

func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// Answer runs the pipeline for question against the named collection. Every
// stage failure comes back as a *QueryError; no stage is retried and no
// partial answer is returned.
func (o *Orchestrator) Answer(ctx context.Context, question, collection string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	binding, err := o.registry.Lookup(collection)
	if err != nil {
		o.observeQuery(ctx, collection, "unknown_collection")
		return nil, err
	}

	ctx, span := otel.Tracer("maestro-pipeline").Start(ctx, "maestro.answer")
	defer span.End()
	span.SetAttributes(
		attribute.String("maestro.collection", collection),
		attribute.String("maestro.prompt_version", o.prompt.Version),
	)

	if cached := o.cachedAnswer(ctx, collection, question); cached != nil {
		span.SetAttributes(attribute.Bool("maestro.cache_hit", true))
		o.observeQuery(ctx, collection, "cached")
		o.logQA(ctx, question, cached.Linked)
		return cached, nil
	}

	answer, err := o.run(ctx, binding, question)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.observeQuery(ctx, collection, "failed")
		return nil, err
	}

	o.observeQuery(ctx, collection, "ok")
	o.storeAnswer(ctx, collection, question, answer)
	o.logQA(ctx, question, answer.Linked)
	return answer, nil
}

func (o *Orchestrator) run(ctx context.Context, binding *Binding, question string) (*Answer, error) {
	collection := binding.Spec.Name

	var vector []float32
	err := o.stage(ctx, StageEmbed, collection, o.timeouts.Embed, func(ctx context.Context) error {
		v, err := binding.Embedder.Embed(ctx, question)
		if err != nil {
			return err
		}
		if len(v) != binding.Spec.Dimension {
			return fmt.Errorf("%w: embedder returned %d dims, collection %q expects %d",
				ErrEmbeddingUnavailable, len(v), binding.Spec.Collection, binding.Spec.Dimension)
		}
		vector = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	err = o.stage(ctx, StageSearch, collection, o.timeouts.Search, func(ctx context.Context) error {
		c, err := binding.Store.SimilaritySearch(ctx, vector, o.limits.K)
		if err != nil {
			return err
		}
		if len(c) > o.limits.K {
			c = c[:o.limits.K]
		}
		candidates = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	var ranked []RankedCandidate
	err = o.stage(ctx, StageRerank, collection, o.timeouts.Rerank, func(ctx context.Context) error {
		if len(candidates) == 0 {
			return nil
		}
		r, err := o.reranker.Rerank(ctx, question, candidates, o.limits.TopN)
		if err != nil {
			return err
		}
		if err := ValidateRanking(candidates, r, o.limits.TopN); err != nil {
			return err
		}
		ranked = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	var qctx QueryContext
	o.localStage(ctx, StageAssemble, collection, func() {
		qctx = o.assembler.Assemble(ranked)
	})
	if qctx.Dropped > 0 {
		logger.Debug("Context budget reached", "collection", collection,
			"dropped", qctx.Dropped, "budget", qctx.Budget)
	}

	var raw string
	err = o.stage(ctx, StageGenerate, collection, o.timeouts.Generate, func(ctx context.Context) error {
		text, err := o.generator.Generate(ctx, qctx, question)
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("%w: empty response", ErrGenerationUnavailable)
		}
		raw = strings.TrimSpace(text)
		return nil
	})
	if err != nil {
		return nil, err
	}

	answer := &Answer{
		ID:            uuid.NewString(),
		Question:      question,
		Collection:    collection,
		Raw:           raw,
		ContextIDs:    qctx.IDs(),
		PromptVersion: o.prompt.Version,
		CreatedAt:     o.now().UTC(),
	}

	o.localStage(ctx, StageLink, collection, func() {
		answer.Linked, answer.References = o.linker.LinkCitationsAllowed(raw, answer.ContextIDs)
		o.ground(answer, qctx)
	})

	return answer, nil
}

// ground makes sure no answer leaves the pipeline unqualified and without a
// single surviving citation.
func (o *Orchestrator) ground(answer *Answer, qctx QueryContext) {
	if len(answer.References) > 0 || StatesNotFound(answer.Raw) {
		return
	}
	if qctx.Empty() {
		answer.Linked = NotFoundAnswer
		return
	}
	answer.Linked += ungroundedNotice
}

// stage runs fn under its own span and deadline. A stage that returns after
// its deadline expired is failed even if fn reported success.
func (o *Orchestrator) stage(ctx context.Context, stage Stage, collection string, timeout time.Duration, fn func(context.Context) error) error {
	ctx, span := otel.Tracer("maestro-pipeline").Start(ctx, "maestro."+string(stage))
	defer span.End()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(ctx)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	elapsed := time.Since(start)

	if o.observer != nil {
		o.observer.ObserveStage(ctx, string(stage), collection, elapsed, err)
	}

	if err != nil {
		qerr := wrapStage(stage, err)
		span.RecordError(qerr)
		span.SetStatus(codes.Error, qerr.Error())
		logger.Error("Pipeline stage failed", "stage", stage, "collection", collection,
			"duration_ms", elapsed.Milliseconds(), "error", err)
		return qerr
	}

	logger.Debug("Pipeline stage completed", "stage", stage, "collection", collection,
		"duration_ms", elapsed.Milliseconds())
	return nil
}

// localStage runs an in-process stage that cannot fail. It ignores the
// caller's context state: once generation succeeded the answer is complete.
func (o *Orchestrator) localStage(ctx context.Context, stage Stage, collection string, fn func()) {
	ctx, span := otel.Tracer("maestro-pipeline").Start(ctx, "maestro."+string(stage))
	defer span.End()

	start := time.Now()
	fn()
	elapsed := time.Since(start)

	if o.observer != nil {
		o.observer.ObserveStage(ctx, string(stage), collection, elapsed, nil)
	}
	logger.Debug("Pipeline stage completed", "stage", stage, "collection", collection,
		"duration_ms", elapsed.Milliseconds())
}

func (o *Orchestrator) cachedAnswer(ctx context.Context, collection, question string) *Answer {
	if o.cache == nil {
		return nil
	}
	answer, ok, err := o.cache.Get(ctx, collection, question)
	if err != nil {
		logger.Warn("Answer cache lookup failed", "collection", collection, "error", err)
		return nil
	}
	if !ok || answer == nil {
		return nil
	}
	answer.Cached = true
	return answer
}

func (o *Orchestrator) storeAnswer(ctx context.Context, collection, question string, answer *Answer) {
	if o.cache == nil {
		return
	}
	if err := o.cache.Set(ctx, collection, question, answer); err != nil {
		logger.Warn("Answer cache store failed", "collection", collection, "error", err)
	}
}

// logQA is best-effort: a failing sink never fails the query.
func (o *Orchestrator) logQA(ctx context.Context, question, answer string) {
	if o.qaLog == nil {
		return
	}
	logCtx := context.WithoutCancel(ctx)
	if o.timeouts.Log > 0 {
		var cancel context.CancelFunc
		logCtx, cancel = context.WithTimeout(logCtx, o.timeouts.Log)
		defer cancel()
	}
	if err := o.qaLog.LogQuestionAnswer(logCtx, question, answer); err != nil {
		if o.observer != nil {
			o.observer.ObserveStage(ctx, "qna_log", "", 0, err)
		}
		logger.Warn("Failed to log question/answer", "error", err)
	}
}

func (o *Orchestrator) observeQuery(ctx context.Context, collection, status string) {
	if o.observer != nil {
		o.observer.ObserveQuery(ctx, collection, status)
	}
}

// IsValidationError reports errors the caller caused (as opposed to stage
// failures).
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptyQuestion) || errors.Is(err, ErrUnknownCollection)
}
