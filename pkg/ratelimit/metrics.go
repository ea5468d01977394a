package ratelimit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for a rate limit engine.
type Metrics struct {
	// Scheduler
	cycles        prometheus.Counter
	behindCycles  prometheus.Counter
	cycleDuration prometheus.Histogram
	rhythm        prometheus.Gauge
	refilled      prometheus.Counter

	// Buckets
	activeBuckets  prometheus.Gauge
	pooledBuckets  prometheus.Gauge
	bucketsCreated *prometheus.CounterVec
	bucketsEvicted prometheus.Counter
}

// NewMetrics creates the engine collectors and registers them with reg.
// A nil registerer leaves the collectors unregistered, which lets several
// engines live in one process (tests, benchmarks).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		cycles: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ratecontrol_scheduler_cycles_total",
				Help: "Total number of refill cycles completed",
			},
		),

		behindCycles: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ratecontrol_scheduler_behind_cycles_total",
				Help: "Total number of refill cycles that took longer than the rhythm",
			},
		),

		cycleDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ratecontrol_scheduler_cycle_duration_seconds",
				Help:    "Duration of refill cycles in seconds",
				Buckets: prometheus.ExponentialBuckets(0.000001, 2, 20), // 1µs to ~0.5s
			},
		),

		rhythm: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ratecontrol_scheduler_rhythm_seconds",
				Help: "Current refill cycle length in seconds",
			},
		),

		refilled: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ratecontrol_tokens_refilled_total",
				Help: "Total number of tokens credited to buckets",
			},
		),

		activeBuckets: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ratecontrol_buckets_active",
				Help: "Number of buckets visited by the last refill cycle",
			},
		),

		pooledBuckets: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ratecontrol_buckets_pooled",
				Help: "Number of bucket storages waiting for reuse",
			},
		),

		bucketsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratecontrol_buckets_created_total",
				Help: "Total number of buckets created, by storage source",
			},
			[]string{"source"},
		),

		bucketsEvicted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ratecontrol_buckets_evicted_total",
				Help: "Total number of invalidated buckets moved to the pool",
			},
		),
	}
}

// RecordCycle records one completed refill cycle.
func (m *Metrics) RecordCycle(duration time.Duration, active, pooled int, refilled uint64, evicted int, behind bool) {
	m.cycles.Inc()
	m.cycleDuration.Observe(duration.Seconds())
	m.activeBuckets.Set(float64(active))
	m.pooledBuckets.Set(float64(pooled))
	if refilled > 0 {
		m.refilled.Add(float64(refilled))
	}
	if evicted > 0 {
		m.bucketsEvicted.Add(float64(evicted))
	}
	if behind {
		m.behindCycles.Inc()
	}
}

// RecordDrained resets the bucket gauges after the engine stopped.
func (m *Metrics) RecordDrained() {
	m.activeBuckets.Set(0)
	m.pooledBuckets.Set(0)
}

// RecordRhythm records the current rhythm.
func (m *Metrics) RecordRhythm(rhythm time.Duration) {
	m.rhythm.Set(rhythm.Seconds())
}

// RecordBucketCreated records a bucket handed out by Create.
func (m *Metrics) RecordBucketCreated(reused bool) {
	source := "fresh"
	if reused {
		source = "pooled"
	}
	m.bucketsCreated.WithLabelValues(source).Inc()
}
