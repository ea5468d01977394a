package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"

	"mercator-hq/ratecontrol/pkg/config"
	"mercator-hq/ratecontrol/pkg/ratelimit"
)

// VersionInfo contains build and version information.
type VersionInfo struct {
	// Version is the semantic version (e.g., "1.0.0")
	Version string `json:"version"`

	// Commit is the git commit hash
	Commit string `json:"commit"`

	// BuildTime is when the binary was built
	BuildTime string `json:"build_time"`

	// GoVersion is the Go version used to build
	GoVersion string `json:"go_version"`
}

// Limiter admits or rejects n units without blocking. Both *ratelimit.Bucket
// and *ratelimit.SyncSlidingWindow satisfy it.
type Limiter interface {
	TryAcquire(n uint32) error
}

// readOnly rejects anything but GET and HEAD. It reports whether the
// request may continue.
func readOnly(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if r.Method != http.MethodHead {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// LivenessHandler returns an HTTP handler for the liveness probe endpoint.
//
// Example response:
//
//	{
//	    "status": "ok",
//	    "timestamp": "2026-01-20T10:30:00Z"
//	}
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !readOnly(w, r) {
			return
		}
		writeJSON(w, r, http.StatusOK, c.CheckLiveness(r.Context()))
	}
}

// ReadinessHandler returns an HTTP handler for the readiness probe endpoint.
// It performs all registered component health checks.
//
// Returns:
//   - 200 OK: ready, or degraded by a failing optional check
//   - 503 Service Unavailable: a critical check failed
//
// Example response:
//
//	{
//	    "status": "unhealthy",
//	    "checks": {
//	        "engine": {"status": "unhealthy", "message": "engine is not running", "critical": true, "duration_ms": 0.01}
//	    },
//	    "timestamp": "2026-01-20T10:30:00Z"
//	}
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !readOnly(w, r) {
			return
		}

		status := c.CheckReadiness(r.Context())

		code := http.StatusOK
		if status.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, r, code, status)
	}
}

// VersionHandler returns an HTTP handler for the version information endpoint.
func VersionHandler(version, commit, buildTime string) http.HandlerFunc {
	info := VersionInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !readOnly(w, r) {
			return
		}
		writeJSON(w, r, http.StatusOK, info)
	}
}

// StatsHandler returns an HTTP handler that reports a snapshot of the
// engine's scheduler counters.
//
// Example response:
//
//	{
//	    "running": true,
//	    "rhythm": 500000,
//	    "active": 12,
//	    ...
//	}
func StatsHandler(stats func() ratelimit.Stats) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !readOnly(w, r) {
			return
		}
		writeJSON(w, r, http.StatusOK, stats())
	}
}

// Register adds the liveness, readiness, version and stats endpoints to mux.
// The probe paths come from cfg; version and stats are served at /version
// and /stats. A nil stats function leaves /stats unregistered.
func Register(mux *http.ServeMux, checker *Checker, cfg config.HealthConfig, info VersionInfo, stats func() ratelimit.Stats) {
	mux.HandleFunc(cfg.LivenessPath, checker.LivenessHandler())
	mux.HandleFunc(cfg.ReadinessPath, checker.ReadinessHandler())
	mux.HandleFunc("/version", VersionHandler(info.Version, info.Commit, info.BuildTime))
	if stats != nil {
		mux.HandleFunc("/stats", StatsHandler(stats))
	}
}

// RateLimitedHandler wraps a handler so that each request must take one
// unit from limiter. Rejected requests get 429. A limiter that can no longer
// admit anything, such as a released bucket, yields 503.
//
// Usage:
//
//	bucket, _ := engine.Create(10, ratelimit.Seconds)
//	mux.HandleFunc("/readyz", health.RateLimitedHandler(checker.ReadinessHandler(), bucket))
func RateLimitedHandler(handler http.HandlerFunc, limiter Limiter) http.HandlerFunc {
	if limiter == nil {
		return handler
	}

	return func(w http.ResponseWriter, r *http.Request) {
		err := limiter.TryAcquire(1)
		switch {
		case err == nil:
			handler(w, r)
		case errors.Is(err, ratelimit.ErrReleased):
			http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		default:
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
		}
	}
}
