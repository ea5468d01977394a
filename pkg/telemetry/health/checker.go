package health

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"
)

// Status values reported by checks and probes.
const (
	StatusOK        = "ok"
	StatusReady     = "ready"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// ErrCheckTimeout is reported when a health check does not finish in time.
var ErrCheckTimeout = errors.New("health check timeout")

// CheckFunc returns nil while the component it checks is healthy.
type CheckFunc func(ctx context.Context) error

// Prober is implemented by components that report their own health, such
// as the ratelimit engine.
type Prober interface {
	HealthCheck(ctx context.Context) error
}

// CheckResult is the outcome of one check.
type CheckResult struct {
	Status   string  `json:"status"`
	Message  string  `json:"message,omitempty"`
	Critical bool    `json:"critical"`
	Duration float64 `json:"duration_ms"`
}

// HealthStatus is the aggregated answer of a probe.
type HealthStatus struct {
	// Status is "ok" for liveness. Readiness reports "ready", "degraded"
	// when only optional checks fail, or "unhealthy" when a critical one does.
	Status    string                 `json:"status"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

type check struct {
	fn       CheckFunc
	critical bool
}

// Checker runs the registered checks for the readiness probe.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]check
	timeout time.Duration
}

// New creates a checker that gives each check timeout to finish, 5s when
// timeout is not positive.
func New(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		checks:  make(map[string]check),
		timeout: timeout,
	}
}

// RegisterCheck adds a critical check, replacing any check of the same name.
// A failing critical check makes the process unhealthy.
func (c *Checker) RegisterCheck(name string, fn CheckFunc) {
	c.register(name, check{fn: fn, critical: true})
}

// RegisterOptionalCheck adds a check whose failure only degrades readiness.
func (c *Checker) RegisterOptionalCheck(name string, fn CheckFunc) {
	c.register(name, check{fn: fn})
}

// RegisterProber registers p.HealthCheck as a critical check.
func (c *Checker) RegisterProber(name string, p Prober) {
	c.RegisterCheck(name, p.HealthCheck)
}

func (c *Checker) register(name string, ch check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = ch
}

// UnregisterCheck removes the named check.
func (c *Checker) UnregisterCheck(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.checks, name)
}

// ListChecks returns the registered check names in order.
func (c *Checker) ListChecks() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.checks))
}

// CheckCount returns the number of registered checks.
func (c *Checker) CheckCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.checks)
}

// CheckLiveness reports that the process is alive. It runs no checks.
func (c *Checker) CheckLiveness(ctx context.Context) HealthStatus {
	return HealthStatus{Status: StatusOK, Timestamp: time.Now()}
}

// CheckReadiness runs every registered check concurrently.
func (c *Checker) CheckReadiness(ctx context.Context) HealthStatus {
	c.mu.RLock()
	checks := maps.Clone(c.checks)
	c.mu.RUnlock()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]CheckResult, len(checks))
	)
	for name, ch := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := c.run(ctx, ch)
			mu.Lock()
			results[name] = res
			mu.Unlock()
		}()
	}
	wg.Wait()

	return HealthStatus{
		Status:    aggregate(results),
		Checks:    results,
		Timestamp: time.Now(),
	}
}

func aggregate(results map[string]CheckResult) string {
	status := StatusReady
	for _, res := range results {
		if res.Status != StatusUnhealthy {
			continue
		}
		if res.Critical {
			return StatusUnhealthy
		}
		status = StatusDegraded
	}
	return status
}

// run executes ch, giving up after the checker's timeout even when the
// check ignores its context.
func (c *Checker) run(ctx context.Context, ch check) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	errc := make(chan error, 1)
	go func() { errc <- ch.fn(ctx) }()

	var err error
	select {
	case err = <-errc:
	case <-ctx.Done():
		err = ErrCheckTimeout
	}

	res := CheckResult{
		Status:   StatusOK,
		Critical: ch.critical,
		Duration: float64(time.Since(start).Microseconds()) / 1000,
	}
	if err != nil {
		res.Status = StatusUnhealthy
		res.Message = err.Error()
	}
	return res
}
