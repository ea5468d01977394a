// Package metrics provides the Prometheus registry and endpoint for
// ratecontrol.
//
// # Overview
//
// The Collector owns one prometheus.Registry. The ratelimit engine
// registers its scheduler metrics there through Registerer, the Go
// runtime and process collectors are added by NewCollector, and the
// daemon records per-limiter admissions through RecordAdmission.
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	engine, err := ratelimit.New(ratelimit.WithRegisterer(collector.Registerer()))
//
//	collector.RecordAdmission("uploads", metrics.KindBucket, metrics.OutcomeAdmitted, 1)
//
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// # Cardinality
//
// Limiter names come from configuration, but the collector still caps the
// number of distinct limiter labels at DefaultMaxLimiters and folds the
// rest into "other".
package metrics
