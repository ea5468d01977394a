package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LimiterMetrics tracks admissions made through configured limiters.
//
// Metrics:
//   - ratecontrol_limiter_requests_total: acquire calls by limiter, kind, outcome
//   - ratecontrol_limiter_units_total: units admitted by limiter and kind
//   - ratecontrol_limiter_wait_seconds: time spent in blocking acquires
//   - ratecontrol_limiter_tokens: banked tokens per bucket
type LimiterMetrics struct {
	requestsTotal *prometheus.CounterVec
	unitsTotal    *prometheus.CounterVec
	waitSeconds   *prometheus.HistogramVec
	tokens        *prometheus.GaugeVec
}

// NewLimiterMetrics creates and registers limiter metrics with registry.
func NewLimiterMetrics(registry prometheus.Registerer) *LimiterMetrics {
	lm := &LimiterMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ratecontrol",
				Subsystem: "limiter",
				Name:      "requests_total",
				Help:      "Acquire calls by limiter, kind and outcome",
			},
			[]string{"limiter", "kind", "outcome"},
		),

		unitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ratecontrol",
				Subsystem: "limiter",
				Name:      "units_total",
				Help:      "Units admitted by limiter and kind",
			},
			[]string{"limiter", "kind"},
		),

		waitSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "ratecontrol",
				Subsystem: "limiter",
				Name:      "wait_seconds",
				Help:      "Time spent waiting for tokens in blocking acquires",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs to ~2.6s
			},
			[]string{"limiter"},
		),

		tokens: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "ratecontrol",
				Subsystem: "limiter",
				Name:      "tokens",
				Help:      "Banked tokens of a bucket limiter",
			},
			[]string{"limiter"},
		),
	}

	registry.MustRegister(
		lm.requestsTotal,
		lm.unitsTotal,
		lm.waitSeconds,
		lm.tokens,
	)

	return lm
}

// RecordAdmission records one acquire call.
func (lm *LimiterMetrics) RecordAdmission(limiter, kind, outcome string, units uint32) {
	lm.requestsTotal.WithLabelValues(limiter, kind, outcome).Inc()
	if outcome == OutcomeAdmitted {
		lm.unitsTotal.WithLabelValues(limiter, kind).Add(float64(units))
	}
}

// RecordWait observes a blocking acquire's wait.
func (lm *LimiterMetrics) RecordWait(limiter string, wait time.Duration) {
	lm.waitSeconds.WithLabelValues(limiter).Observe(wait.Seconds())
}

// UpdateTokens sets the banked token gauge.
func (lm *LimiterMetrics) UpdateTokens(limiter string, tokens uint32) {
	lm.tokens.WithLabelValues(limiter).Set(float64(tokens))
}

// Outcomes recorded by RecordAdmission.
const (
	OutcomeAdmitted = "admitted"
	OutcomeRejected = "rejected"
	OutcomeClosed   = "closed"
)

// Limiter kinds recorded by RecordAdmission.
const (
	KindBucket = "bucket"
	KindWindow = "window"
)
