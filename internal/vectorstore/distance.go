package vectorstore

import (
	"fmt"
	"math"

	"llmpedia-backend/internal/rag"
)

// Cosine is the cosine similarity of a and b, 0 when either is all zeros.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", rag.ErrDimensionMismatch, len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

// Dot is the inner product of a and b.
func Dot(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", rag.ErrDimensionMismatch, len(a), len(b))
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot, nil
}

// Similarity scores a against b under metric.
func Similarity(metric rag.Metric, a, b []float32) (float64, error) {
	switch metric {
	case rag.MetricCosine:
		return Cosine(a, b)
	case rag.MetricInnerProduct:
		return Dot(a, b)
	default:
		return 0, fmt.Errorf("unsupported metric: %s", metric)
	}
}
