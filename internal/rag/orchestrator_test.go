package rag_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"llmpedia-backend/internal/rag"
	"llmpedia-backend/internal/rag/ragtest"
)

const (
	rlhfID   = "2305.12345"
	rlhfText = "RLHF is reinforcement learning from human feedback used to align language models."
	moeText  = "Mixture of experts routing scales transformer capacity."
)

type pipeline struct {
	orch      *rag.Orchestrator
	embedder  *ragtest.Embedder
	store     *ragtest.Store
	reranker  *ragtest.Reranker
	generator *ragtest.Generator
	qaLog     *ragtest.QALog
}

func newPipeline(t *testing.T, opts ...rag.Option) *pipeline {
	t.Helper()

	p := &pipeline{
		embedder: ragtest.NewEmbedder(rag.ProviderGemini, 8),
		store: ragtest.NewStore(rag.MetricCosine, 8,
			ragtest.Chunk("2401.00001", moeText, 0.71),
			ragtest.Chunk(rlhfID, rlhfText, 0.83),
		),
		reranker:  &ragtest.Reranker{},
		generator: &ragtest.Generator{},
		qaLog:     &ragtest.QALog{},
	}

	registry := rag.NewRegistry()
	spec := rag.CollectionSpec{Name: "gemini", Collection: "arxiv_vectors_gemini", Provider: rag.ProviderGemini, Metric: rag.MetricCosine, Dimension: 8}
	if err := registry.Register(spec, p.embedder, p.store); err != nil {
		t.Fatalf("Register: %v", err)
	}

	opts = append([]rag.Option{rag.WithQALogger(p.qaLog)}, opts...)
	p.orch = rag.NewOrchestrator(registry, p.reranker, p.generator,
		rag.NewAssembler(2000), rag.NewLinker("llmpedia.example"), opts...)
	return p
}

func TestAnswerLinksGroundedCitation(t *testing.T) {
	p := newPipeline(t)

	answer, err := p.orch.Answer(context.Background(), "What is RLHF?", "gemini")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	link := "[arxiv:2305.12345](https://llmpedia.example/?paper_id=2305.12345)"
	if !strings.Contains(answer.Linked, link) {
		t.Fatalf("expected %q in %q", link, answer.Linked)
	}
	if len(answer.References) != 1 || answer.References[0] != rlhfID {
		t.Fatalf("References = %v", answer.References)
	}
	if answer.ContextIDs[0] != rlhfID {
		t.Fatalf("expected RLHF paper ranked first, got %v", answer.ContextIDs)
	}
	if answer.PromptVersion != rag.PromptV1.Version {
		t.Fatalf("PromptVersion = %q", answer.PromptVersion)
	}
	if !strings.Contains(p.generator.LastPrompt, "[arxiv:2305.12345]\n"+rlhfText) {
		t.Fatal("context was not passed to the generator")
	}

	if p.qaLog.Len() != 1 {
		t.Fatalf("expected one logged pair, got %d", p.qaLog.Len())
	}
	if p.qaLog.Entries[0][0] != "What is RLHF?" || p.qaLog.Entries[0][1] != answer.Linked {
		t.Fatalf("logged %v", p.qaLog.Entries[0])
	}
}

func TestAnswerRejectsEmptyQuestion(t *testing.T) {
	p := newPipeline(t)

	for _, q := range []string{"", "   \n\t"} {
		_, err := p.orch.Answer(context.Background(), q, "gemini")
		if !errors.Is(err, rag.ErrEmptyQuestion) {
			t.Fatalf("Answer(%q) err = %v, want ErrEmptyQuestion", q, err)
		}
		if !rag.IsValidationError(err) {
			t.Fatal("empty question should be a validation error")
		}
	}
	if p.embedder.Calls() != 0 || p.store.Calls() != 0 || p.generator.Calls() != 0 {
		t.Fatal("no provider may be called for an empty question")
	}
}

func TestAnswerUnknownCollection(t *testing.T) {
	p := newPipeline(t)

	_, err := p.orch.Answer(context.Background(), "What is RLHF?", "foo")
	if !errors.Is(err, rag.ErrUnknownCollection) {
		t.Fatalf("err = %v, want ErrUnknownCollection", err)
	}
	if errors.Is(err, rag.ErrQueryFailed) {
		t.Fatal("unknown collection is not a stage failure")
	}
	if p.embedder.Calls() != 0 {
		t.Fatal("embedder must not be called for an unknown collection")
	}
}

func TestAnswerStageFailures(t *testing.T) {
	boom := errors.New("connection refused")

	tests := []struct {
		name  string
		fail  func(p *pipeline)
		stage rag.Stage
		kind  error
	}{
		{name: "embed", fail: func(p *pipeline) { p.embedder.Err = boom }, stage: rag.StageEmbed, kind: rag.ErrEmbeddingUnavailable},
		{name: "search", fail: func(p *pipeline) { p.store.Err = boom }, stage: rag.StageSearch, kind: rag.ErrStoreUnavailable},
		{name: "rerank", fail: func(p *pipeline) { p.reranker.Err = boom }, stage: rag.StageRerank, kind: rag.ErrRerankUnavailable},
		{name: "generate", fail: func(p *pipeline) { p.generator.Err = boom }, stage: rag.StageGenerate, kind: rag.ErrGenerationUnavailable},
		{name: "blank generation", fail: func(p *pipeline) { p.generator.Reply = "  \n " }, stage: rag.StageGenerate, kind: rag.ErrGenerationUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline(t)
			tt.fail(p)

			answer, err := p.orch.Answer(context.Background(), "What is RLHF?", "gemini")
			if answer != nil {
				t.Fatal("no partial answer may be returned")
			}
			if !errors.Is(err, rag.ErrQueryFailed) || !errors.Is(err, tt.kind) {
				t.Fatalf("err = %v, want QueryFailed and %v", err, tt.kind)
			}
			var qerr *rag.QueryError
			if !errors.As(err, &qerr) || qerr.Stage != tt.stage {
				t.Fatalf("expected failure at %s, got %v", tt.stage, err)
			}
			if p.qaLog.Len() != 0 {
				t.Fatal("failed queries must not be logged")
			}
		})
	}
}

func TestAnswerSearchFailureStopsPipeline(t *testing.T) {
	p := newPipeline(t)
	p.store.Err = errors.New("connection refused")

	if _, err := p.orch.Answer(context.Background(), "What is RLHF?", "gemini"); err == nil {
		t.Fatal("expected an error")
	}
	if p.generator.Calls() != 0 {
		t.Fatal("generator must not run after a failed search")
	}
}

func TestAnswerLogFailureIsSwallowed(t *testing.T) {
	p := newPipeline(t)
	p.qaLog.Err = errors.New("mongo down")

	answer, err := p.orch.Answer(context.Background(), "What is RLHF?", "gemini")
	if err != nil {
		t.Fatalf("log failure leaked into the query: %v", err)
	}
	if answer == nil || answer.Linked == "" {
		t.Fatal("expected an answer")
	}
}

func TestAnswerEmptyContext(t *testing.T) {
	t.Run("model acknowledges", func(t *testing.T) {
		p := newPipeline(t)
		p.store.Results = nil

		answer, err := p.orch.Answer(context.Background(), "What is RLHF?", "gemini")
		if err != nil {
			t.Fatalf("Answer: %v", err)
		}
		if !rag.StatesNotFound(answer.Linked) {
			t.Fatalf("expected a not-found answer, got %q", answer.Linked)
		}
		if len(answer.References) != 0 {
			t.Fatalf("References = %v", answer.References)
		}
		if !strings.Contains(p.generator.LastPrompt, "Question: What is RLHF?") {
			t.Fatal("generator should still receive the question")
		}
	})

	t.Run("ungrounded reply is replaced", func(t *testing.T) {
		p := newPipeline(t)
		p.store.Results = nil
		p.generator.Reply = "RLHF trains a reward model."

		answer, err := p.orch.Answer(context.Background(), "What is RLHF?", "gemini")
		if err != nil {
			t.Fatalf("Answer: %v", err)
		}
		if answer.Linked != rag.NotFoundAnswer {
			t.Fatalf("Linked = %q, want NotFoundAnswer", answer.Linked)
		}
		if answer.Raw != "RLHF trains a reward model." {
			t.Fatalf("Raw = %q", answer.Raw)
		}
	})
}

func TestAnswerDropsInventedCitations(t *testing.T) {
	p := newPipeline(t)
	p.generator.Reply = "RLHF uses preferences (arxiv:2305.12345) and more (arxiv:9999.99999)."

	answer, err := p.orch.Answer(context.Background(), "What is RLHF?", "gemini")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if len(answer.References) != 1 || answer.References[0] != rlhfID {
		t.Fatalf("References = %v", answer.References)
	}
	if strings.Contains(answer.Linked, "paper_id=9999.99999") {
		t.Fatalf("invented citation was linked: %q", answer.Linked)
	}
}

func TestAnswerRewritesModelWrittenLinks(t *testing.T) {
	p := newPipeline(t)
	p.generator.Reply = "RLHF is covered in [arxiv:9999.99999](https://evil.example/phish) and [arxiv:2305.12345](https://arxiv.org/abs/2305.12345)."

	answer, err := p.orch.Answer(context.Background(), "What is RLHF?", "gemini")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	want := "RLHF is covered in arxiv:9999.99999 and [arxiv:2305.12345](https://llmpedia.example/?paper_id=2305.12345)."
	if answer.Linked != want {
		t.Fatalf("Linked\n got %q\nwant %q", answer.Linked, want)
	}
	if len(answer.References) != 1 || answer.References[0] != rlhfID {
		t.Fatalf("References = %v", answer.References)
	}
}

func TestAnswerUngroundedReplyIsFlagged(t *testing.T) {
	replies := []string{
		"RLHF aligns models with human preferences.",
		"RLHF tunes the policy with no information loss from pretraining.",
	}
	for _, reply := range replies {
		p := newPipeline(t)
		p.generator.Reply = reply

		answer, err := p.orch.Answer(context.Background(), "What is RLHF?", "gemini")
		if err != nil {
			t.Fatalf("Answer: %v", err)
		}
		if !strings.HasPrefix(answer.Linked, reply) || answer.Linked == reply {
			t.Fatalf("expected a notice appended to %q, got %q", reply, answer.Linked)
		}
	}
}

type blockingGenerator struct{}

func (blockingGenerator) Generate(ctx context.Context, _ rag.QueryContext, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestAnswerGenerationTimeout(t *testing.T) {
	p := newPipeline(t)
	timeouts := rag.DefaultTimeouts
	timeouts.Generate = 20 * time.Millisecond

	orch := rag.NewOrchestrator(p.orch.Registry(), p.reranker, blockingGenerator{},
		rag.NewAssembler(2000), rag.NewLinker("llmpedia.example"),
		rag.WithQALogger(p.qaLog), rag.WithTimeouts(timeouts))

	_, err := orch.Answer(context.Background(), "What is RLHF?", "gemini")
	if !errors.Is(err, rag.ErrGenerationUnavailable) {
		t.Fatalf("err = %v, want ErrGenerationUnavailable", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("timeout cause lost: %v", err)
	}
	if p.qaLog.Len() != 0 {
		t.Fatal("timed out query must not be logged")
	}
}

type greedyReranker struct{}

func (greedyReranker) Rerank(_ context.Context, _ string, candidates []rag.Candidate, _ int) ([]rag.RankedCandidate, error) {
	out := make([]rag.RankedCandidate, len(candidates))
	for i, c := range candidates {
		out[i] = rag.RankedCandidate{Chunk: c.Chunk, Rank: i + 1}
	}
	return out, nil
}

func TestAnswerRejectsOversizedRanking(t *testing.T) {
	p := newPipeline(t)
	orch := rag.NewOrchestrator(p.orch.Registry(), greedyReranker{}, p.generator,
		rag.NewAssembler(2000), rag.NewLinker("llmpedia.example"),
		rag.WithLimits(rag.Limits{K: 20, TopN: 1}))

	_, err := orch.Answer(context.Background(), "What is RLHF?", "gemini")
	if !errors.Is(err, rag.ErrRerankUnavailable) {
		t.Fatalf("err = %v, want ErrRerankUnavailable", err)
	}
	if p.generator.Calls() != 0 {
		t.Fatal("generator must not run on an invalid ranking")
	}
}

func TestAnswerUsesCache(t *testing.T) {
	cache := ragtest.NewCache()
	p := newPipeline(t, rag.WithAnswerCache(cache))

	first, err := p.orch.Answer(context.Background(), "What is RLHF?", "gemini")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	second, err := p.orch.Answer(context.Background(), "What is RLHF?", "gemini")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}

	if !second.Cached || first.Cached {
		t.Fatalf("Cached flags = %v, %v", first.Cached, second.Cached)
	}
	if second.Linked != first.Linked {
		t.Fatal("cached answer differs")
	}
	if p.embedder.Calls() != 1 || p.generator.Calls() != 1 {
		t.Fatalf("pipeline ran twice: embed=%d generate=%d", p.embedder.Calls(), p.generator.Calls())
	}
	if p.qaLog.Len() != 2 {
		t.Fatalf("expected both answers logged, got %d", p.qaLog.Len())
	}
}

func TestAnswerLimitsRetrieval(t *testing.T) {
	p := newPipeline(t, rag.WithLimits(rag.Limits{K: 1, TopN: 7}))

	answer, err := p.orch.Answer(context.Background(), "mixture of experts", "gemini")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if len(answer.ContextIDs) != 1 || answer.ContextIDs[0] != rlhfID {
		t.Fatalf("expected only the most similar chunk, got %v", answer.ContextIDs)
	}
}

type stageObserver struct {
	mu       sync.Mutex
	failed   []string
	stages   []string
	statuses []string
}

func (o *stageObserver) ObserveStage(_ context.Context, stage, _ string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stages = append(o.stages, stage)
	if err != nil {
		o.failed = append(o.failed, stage)
	}
}

func (o *stageObserver) ObserveQuery(_ context.Context, _, status string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses = append(o.statuses, status)
}

func TestAnswerCompletesWhenCallerLeavesAfterGeneration(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	obs := &stageObserver{}
	// The clock is read between generation and linking.
	clock := func() time.Time {
		cancel()
		return time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)
	}
	p := newPipeline(t, rag.WithObserver(obs), rag.WithClock(clock))

	answer, err := p.orch.Answer(ctx, "What is RLHF?", "gemini")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if len(answer.References) != 1 || answer.References[0] != rlhfID {
		t.Fatalf("References = %v", answer.References)
	}
	if len(obs.failed) != 0 {
		t.Fatalf("stages reported as failed: %v", obs.failed)
	}
	want := []string{"embed", "search", "rerank", "assemble", "generate", "link"}
	if strings.Join(obs.stages, ",") != strings.Join(want, ",") {
		t.Fatalf("stages = %v, want %v", obs.stages, want)
	}
	if len(obs.statuses) != 1 || obs.statuses[0] != "ok" {
		t.Fatalf("query statuses = %v", obs.statuses)
	}
	if p.qaLog.Len() != 1 {
		t.Fatalf("logged %d pairs, want 1", p.qaLog.Len())
	}
}
