// Package health provides health check endpoints for ratecontrol.
//
// # Overview
//
// The health package implements liveness and readiness probes for
// orchestration systems, along with version and engine stats endpoints.
//
// # Endpoints
//
//   - /healthz: Liveness probe, 200 while the process runs
//   - /readyz: Readiness probe, runs every registered check
//   - /version: Build information
//   - /stats: Scheduler counters of the ratelimit engine
//
// The probe paths are configurable through telemetry.health.
//
// # Usage
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterProber("engine", engine)
//
//	mux := http.NewServeMux()
//	health.Register(mux, checker, cfg.Telemetry.Health, info, engine.Stats)
//
// # Critical and Optional Checks
//
// Checks added with RegisterCheck or RegisterProber are critical: one failing
// turns readiness "unhealthy" and the probe answers 503. A failing check added
// with RegisterOptionalCheck, such as the history store, only marks the
// process "degraded" and the probe still answers 200.
//
// # Engine Readiness
//
// The engine reports unhealthy once it is stopped or when its refill
// scheduler has not completed a cycle for well over one rhythm interval.
package health
