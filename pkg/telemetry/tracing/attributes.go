package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys. Custom keys live in the "ratecontrol.*" namespace.
const (
	AttrLimiter      = "ratecontrol.limiter"
	AttrRate         = "ratecontrol.rate"
	AttrUnit         = "ratecontrol.unit"
	AttrCapacity     = "ratecontrol.capacity"
	AttrGoroutines   = "ratecontrol.goroutines"
	AttrAdmitted     = "ratecontrol.admitted"
	AttrConfigPath   = "ratecontrol.config.path"
	AttrRunID        = "ratecontrol.run_id"
	AttrHTTPRoute    = "http.route"
	AttrHTTPMethod   = "http.method"
	AttrHTTPStatus   = "http.status_code"
	AttrErrorMessage = "error.message"
)

// SetLimiterAttributes describes a token bucket on span.
func SetLimiterAttributes(span trace.Span, name string, rate float64, unit string, capacity uint32) {
	span.SetAttributes(
		attribute.String(AttrLimiter, name),
		attribute.Float64(AttrRate, rate),
		attribute.String(AttrUnit, unit),
		attribute.Int64(AttrCapacity, int64(capacity)),
	)
}
