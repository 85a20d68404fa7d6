// Package breaker builds the circuit breakers that guard every remote
// provider call.
package breaker

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"llmpedia-backend/internal/logger"
)

// StateListener is told about every state transition, e.g. to feed a metric.
type StateListener func(service, state string)

// New returns a breaker that opens once at least 3 requests in a 10s window
// failed at a 60% ratio, and half-opens again after 60s.
func New(name string, listener StateListener) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 3 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				logger.Error("Circuit breaker opened", "breaker", name, "from", from.String())
			} else {
				logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			}
			if listener != nil {
				listener(name, to.String())
			}
		},
	})
}

// IsOpen reports whether err was produced by a breaker refusing the call.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
