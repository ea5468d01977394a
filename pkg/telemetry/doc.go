// Package telemetry groups the observability packages of ratecontrol.
//
// # Components
//
//   - logging: slog setup with a runtime level and context fields
//   - metrics: Prometheus registry, engine collectors and the /metrics handler
//   - tracing: OpenTelemetry spans for HTTP requests, reloads and benchmarks
//   - health: liveness, readiness and engine stats endpoints
//   - report: cron-scheduled engine stats records and history snapshots
//
// # Usage
//
//	logger, _ := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//
//	engine, _ := ratelimit.New(
//		ratelimit.WithConfig(cfg.Engine),
//		ratelimit.WithLogger(logger.Slog()),
//		ratelimit.WithRegisterer(collector.Registerer()),
//	)
//
//	reporter := report.NewScheduler(engine, cfg.Telemetry.Report.Schedule, logger.Slog())
//	reporter.Start(ctx)
//
// Nothing in these packages runs on the token acquisition path. The engine
// exposes its counters through Stats, and collectors read them at scrape
// time.
package telemetry
