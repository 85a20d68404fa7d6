package telemetry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"llmpedia-backend/internal/rag"
)

var _ rag.Observer = (*Metrics)(nil)

func TestStageStatus(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{fmt.Errorf("embed: %w", context.DeadlineExceeded), "timeout"},
		{context.Canceled, "canceled"},
		{fmt.Errorf("x: %w", rag.ErrDimensionMismatch), "dimension_mismatch"},
		{errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		if got := stageStatus(tt.err); got != tt.want {
			t.Errorf("stageStatus(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestMetricsRecordWithoutProvider(t *testing.T) {
	m, err := InitMetrics()
	if err != nil {
		t.Fatalf("InitMetrics: %v", err)
	}
	ctx := context.Background()
	m.ObserveStage(ctx, "embed", "gemini", 20*time.Millisecond, nil)
	m.ObserveStage(ctx, "qna_log", "", 0, errors.New("mongo down"))
	m.ObserveQuery(ctx, "gemini", "cached")
	m.RecordTokensUsed(120, "gemini-2.0-flash")
	m.RecordCircuitBreakerState("cohere-rerank", "open")
	m.RecordRequest("POST", "/chat/ask", "200", 0.4)
}
