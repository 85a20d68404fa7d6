package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"llmpedia-backend/internal/rag"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter      metric.Int64Counter
	RequestDuration     metric.Float64Histogram
	QueryCounter        metric.Int64Counter
	StageDuration       metric.Float64Histogram
	CacheHits           metric.Int64Counter
	QnALogFailures      metric.Int64Counter
	TokensUsed          metric.Int64Counter
	CircuitBreakerState metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(ServiceName)
	m := &Metrics{}
	var err error

	if m.RequestCounter, err = meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	); err != nil {
		return nil, err
	}

	if m.RequestDuration, err = meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.QueryCounter, err = meter.Int64Counter(
		"maestro.queries.total",
		metric.WithDescription("Maestro queries by collection and outcome"),
	); err != nil {
		return nil, err
	}

	if m.StageDuration, err = meter.Float64Histogram(
		"maestro.stage.duration",
		metric.WithDescription("Pipeline stage duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.CacheHits, err = meter.Int64Counter(
		"maestro.cache.hits",
		metric.WithDescription("Answers served from the answer memo"),
	); err != nil {
		return nil, err
	}

	if m.QnALogFailures, err = meter.Int64Counter(
		"maestro.qna_log.failures",
		metric.WithDescription("Question/answer log writes that failed"),
	); err != nil {
		return nil, err
	}

	if m.TokensUsed, err = meter.Int64Counter(
		"gemini.tokens.used",
		metric.WithDescription("Total generation tokens used"),
	); err != nil {
		return nil, err
	}

	if m.CircuitBreakerState, err = meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state changes"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	)
	m.RequestCounter.Add(context.Background(), 1, attrs)
	m.RequestDuration.Record(context.Background(), duration, attrs)
}

// ObserveStage records one pipeline stage. A failed Q&A log write only
// counts as a failure.
func (m *Metrics) ObserveStage(ctx context.Context, stage, collection string, d time.Duration, err error) {
	if stage == "qna_log" {
		if err != nil {
			m.QnALogFailures.Add(ctx, 1)
		}
		return
	}
	m.StageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("collection", collection),
		attribute.String("status", stageStatus(err)),
	))
}

func (m *Metrics) ObserveQuery(ctx context.Context, collection, status string) {
	m.QueryCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("collection", collection),
		attribute.String("status", status),
	))
	if status == "cached" {
		m.CacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("collection", collection)))
	}
}

// RecordTokensUsed records generation token usage
func (m *Metrics) RecordTokensUsed(tokens int64, model string) {
	m.TokensUsed.Add(context.Background(), tokens, metric.WithAttributes(
		attribute.String("model", model),
	))
}

// RecordCircuitBreakerState records circuit breaker state changes
func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("state", state),
	))
}

func stageStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, rag.ErrDimensionMismatch):
		return "dimension_mismatch"
	default:
		return "error"
	}
}
