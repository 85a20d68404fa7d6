package breaker

import (
	"errors"
	"sync"
	"testing"

	"github.com/sony/gobreaker"
)

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	var (
		mu     sync.Mutex
		states []string
	)
	cb := New("test", func(_, state string) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, state)
	})

	boom := errors.New("boom")
	for i := 0; i < 3; i++ {
		_, _ = cb.Execute(func() (interface{}, error) { return nil, boom })
	}

	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("state = %s, want open", cb.State())
	}

	_, err := cb.Execute(func() (interface{}, error) { return "ok", nil })
	if !IsOpen(err) {
		t.Fatalf("expected an open-state error, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(states) != 1 || states[0] != "open" {
		t.Fatalf("listener saw %v", states)
	}
}

func TestBreakerStaysClosedBelowThreshold(t *testing.T) {
	cb := New("test", nil)
	boom := errors.New("boom")

	_, _ = cb.Execute(func() (interface{}, error) { return nil, boom })
	_, _ = cb.Execute(func() (interface{}, error) { return nil, boom })

	if cb.State() != gobreaker.StateClosed {
		t.Fatalf("state = %s, want closed", cb.State())
	}
	if IsOpen(boom) {
		t.Fatal("ordinary errors are not breaker errors")
	}
}
