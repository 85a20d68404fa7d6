// Package scheduler runs the periodic backend health probe that feeds the
// readiness endpoint.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"llmpedia-backend/internal/logger"
)

// Check pings one backend.
type Check func(ctx context.Context) error

// CheckResult is the last outcome of one check.
type CheckResult struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// HealthProbe runs registered checks on an interval and keeps their latest
// results.
type HealthProbe struct {
	scheduler *gocron.Scheduler
	interval  time.Duration
	timeout   time.Duration

	mu      sync.RWMutex
	checks  map[string]Check
	results map[string]CheckResult
}

func NewHealthProbe(interval time.Duration) *HealthProbe {
	if interval <= 0 {
		interval = time.Minute
	}
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	return &HealthProbe{
		scheduler: s,
		interval:  interval,
		timeout:   5 * time.Second,
		checks:    make(map[string]Check),
		results:   make(map[string]CheckResult),
	}
}

// Register adds a named check. It must be called before Start.
func (p *HealthProbe) Register(name string, check Check) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checks[name] = check
}

// Start runs the checks immediately and then every interval.
func (p *HealthProbe) Start() error {
	_, err := p.scheduler.Every(p.interval).Tag("health-probe").Do(func() {
		p.RunOnce(context.Background())
	})
	if err != nil {
		return err
	}
	p.scheduler.StartAsync()
	return nil
}

func (p *HealthProbe) Stop() {
	p.scheduler.Stop()
}

// RunOnce executes every check once, each under its own timeout.
func (p *HealthProbe) RunOnce(ctx context.Context) {
	p.mu.RLock()
	checks := make(map[string]Check, len(p.checks))
	for name, c := range p.checks {
		checks[name] = c
	}
	p.mu.RUnlock()

	for name, check := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
		err := check(checkCtx)
		cancel()

		result := CheckResult{Name: name, Healthy: err == nil, CheckedAt: time.Now().UTC()}
		if err != nil {
			result.Error = err.Error()
			logger.Warn("Health check failed", "check", name, "error", err)
		}

		p.mu.Lock()
		prev, seen := p.results[name]
		p.results[name] = result
		p.mu.Unlock()

		if seen && !prev.Healthy && result.Healthy {
			logger.Info("Health check recovered", "check", name)
		}
	}
}

// Ready reports whether every registered check has run and passed.
func (p *HealthProbe) Ready() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for name := range p.checks {
		r, ok := p.results[name]
		if !ok || !r.Healthy {
			return false
		}
	}
	return true
}

// Results returns the latest result of each check, sorted by name.
func (p *HealthProbe) Results() []CheckResult {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]CheckResult, 0, len(p.results))
	for _, r := range p.results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
