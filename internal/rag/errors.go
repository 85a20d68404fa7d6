package rag

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyQuestion     = errors.New("question must not be empty")
	ErrUnknownCollection = errors.New("unknown collection")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	ErrEmbeddingUnavailable  = errors.New("embedding provider unavailable")
	ErrStoreUnavailable      = errors.New("vector store unavailable")
	ErrRerankUnavailable     = errors.New("reranker unavailable")
	ErrGenerationUnavailable = errors.New("generation provider unavailable")

	// ErrQueryFailed is matched by every *QueryError.
	ErrQueryFailed = errors.New("query failed")
)

// Stage names one step of the pipeline.
type Stage string

const (
	StageEmbed    Stage = "embed"
	StageSearch   Stage = "search"
	StageRerank   Stage = "rerank"
	StageAssemble Stage = "assemble"
	StageGenerate Stage = "generate"
	StageLink     Stage = "link"
)

// stageKind is the unavailability error a failing stage is reported as.
func (s Stage) stageKind() error {
	switch s {
	case StageEmbed:
		return ErrEmbeddingUnavailable
	case StageSearch:
		return ErrStoreUnavailable
	case StageRerank:
		return ErrRerankUnavailable
	case StageGenerate:
		return ErrGenerationUnavailable
	default:
		return nil
	}
}

// QueryError is the single consolidated failure returned by Orchestrator.Answer.
// errors.Is matches both ErrQueryFailed and the stage's own error.
type QueryError struct {
	Stage Stage
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed at %s stage: %v", e.Stage, e.Err)
}

func (e *QueryError) Unwrap() []error {
	return []error{ErrQueryFailed, e.Err}
}

// Unavailable tags cause with one of the Err*Unavailable kinds, keeping the
// cause (e.g. context.DeadlineExceeded) reachable through errors.Is.
func Unavailable(kind, cause error) error {
	if cause == nil {
		return kind
	}
	if errors.Is(cause, kind) {
		return cause
	}
	return fmt.Errorf("%w: %w", kind, cause)
}

// wrapStage builds the QueryError for a failing stage, tagging causes that
// do not already carry the stage kind.
func wrapStage(stage Stage, err error) error {
	if kind := stage.stageKind(); kind != nil && !errors.Is(err, ErrDimensionMismatch) {
		err = Unavailable(kind, err)
	}
	return &QueryError{Stage: stage, Err: err}
}
