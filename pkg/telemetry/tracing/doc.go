// Package tracing exports OpenTelemetry spans for ratecontrol.
//
// Spans cover the outer surfaces of the daemon: telemetry HTTP requests,
// configuration reloads and bench runs. The token bucket hot path is never
// traced.
//
// # Configuration
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    sampler: ratio
//	    sample_ratio: 0.1
//	    endpoint: localhost:4317
//	    insecure: true
//
// When tracing is disabled New returns a tracer backed by a no-op provider,
// so callers start spans unconditionally.
//
// # Propagation
//
// HTTPMiddleware extracts W3C traceparent headers, starts a server span per
// request and echoes the trace ID in the X-Trace-ID response header. The
// trace ID is also stored in the request context for the logging package.
package tracing
