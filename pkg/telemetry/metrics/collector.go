package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mercator-hq/ratecontrol/pkg/config"
)

// DefaultMaxLimiters bounds the number of distinct limiter label values.
const DefaultMaxLimiters = 1000

// otherLimiter is the label used once the limiter cardinality is exhausted.
const otherLimiter = "other"

// Collector owns the Prometheus registry of a ratecontrol process.
//
// The ratelimit engine registers its scheduler metrics on Registerer; the
// collector adds the Go runtime and process collectors plus per-limiter
// admission metrics recorded by the daemon and the bench command.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	limiterMetrics *LimiterMetrics

	// Cardinality tracking
	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a collector for cfg. If registry is nil, a fresh
// registry is created.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Collector{
		config:             cfg,
		registry:           registry,
		limiterMetrics:     NewLimiterMetrics(registry),
		cardinalityLimiter: NewCardinalityLimiter(DefaultMaxLimiters),
	}
}

// Registerer returns the registerer to hand to ratelimit.WithRegisterer.
// It is nil while metrics are disabled, which keeps the engine's
// collectors unregistered.
func (c *Collector) Registerer() prometheus.Registerer {
	if !c.config.Enabled {
		return nil
	}
	return c.registry
}

// limiterLabel folds limiters beyond the cardinality limit into "other".
func (c *Collector) limiterLabel(limiter string) string {
	if !c.cardinalityLimiter.Allow(limiter) {
		return otherLimiter
	}
	return limiter
}

// RecordAdmission records the outcome of one acquire call.
//
// Parameters:
//   - limiter: configured limiter name
//   - kind: "bucket" or "window"
//   - outcome: "admitted", "rejected" or "closed"
//   - units: units requested
func (c *Collector) RecordAdmission(limiter, kind, outcome string, units uint32) {
	if !c.config.Enabled {
		return
	}

	c.limiterMetrics.RecordAdmission(c.limiterLabel(limiter), kind, outcome, units)
}

// RecordWait records how long a blocking acquire waited for tokens.
func (c *Collector) RecordWait(limiter string, wait time.Duration) {
	if !c.config.Enabled {
		return
	}

	c.limiterMetrics.RecordWait(c.limiterLabel(limiter), wait)
}

// UpdateTokens records the banked tokens of a bucket.
func (c *Collector) UpdateTokens(limiter string, tokens uint32) {
	if !c.config.Enabled {
		return
	}

	c.limiterMetrics.UpdateTokens(c.limiterLabel(limiter), tokens)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow checks if a label value is allowed. Returns true if the value
// already exists or if we haven't reached the cardinality limit yet.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[labelSet]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
