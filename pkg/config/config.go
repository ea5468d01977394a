package config

import "time"

// Config is the root configuration structure for ratecontrol.
// It contains the refill engine settings, the limiters the daemon drives,
// the sliding window defaults, and telemetry.
type Config struct {
	// Engine contains refill scheduler and bucket defaults.
	Engine EngineConfig `yaml:"engine"`

	// Limiters lists the token buckets created by "ratecontrol run".
	Limiters []LimiterConfig `yaml:"limiters"`

	// SlidingWindow contains the defaults for sliding window limiters.
	SlidingWindow SlidingWindowConfig `yaml:"sliding_window"`

	// Telemetry contains configuration for logging, metrics, health
	// endpoints and the periodic stats report.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// History configures where reported engine stats are kept.
	History HistoryConfig `yaml:"history"`
}

// EngineConfig contains configuration for the token bucket engine.
type EngineConfig struct {
	// MinRhythm is the shortest refill cycle. Fast buckets lower the cycle
	// length, but never below this floor. Can be changed by a reload.
	// Default: 500µs
	MinRhythm time.Duration `yaml:"min_rhythm"`

	// MaxRhythm is the refill cycle of an engine without fast buckets.
	// Default: 1s
	MaxRhythm time.Duration `yaml:"max_rhythm"`

	// MinCapacity is the smallest default bucket capacity.
	// Default: 4
	MinCapacity int `yaml:"min_capacity"`
}

// LimiterConfig describes one token bucket.
type LimiterConfig struct {
	// Name identifies the limiter in logs.
	Name string `yaml:"name"`

	// Rate is the number of units admitted per Unit.
	Rate float64 `yaml:"rate"`

	// Unit is the time unit of Rate.
	// Options: "s", "ms", "us"
	// Default: "s"
	Unit string `yaml:"unit"`

	// Capacity overrides the derived bucket capacity (0 = derived).
	// Default: 0
	Capacity int `yaml:"capacity"`
}

// SlidingWindowConfig contains sliding window limiter defaults.
type SlidingWindowConfig struct {
	// Capacity is the maximum number of units admitted per window.
	// Default: 10
	Capacity int `yaml:"capacity"`

	// Window is the trailing time span units are counted over.
	// Default: 1s
	Window time.Duration `yaml:"window"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Health contains health check configuration.
	Health HealthConfig `yaml:"health"`

	// Report contains the periodic engine stats report configuration.
	Report ReportConfig `yaml:"report"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit. Can be changed by a reload.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether the engine registers Prometheus collectors
	// and the metrics endpoint is served.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// ListenAddress is where the telemetry HTTP server listens.
	// Default: "127.0.0.1:9090"
	ListenAddress string `yaml:"listen_address"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`
}

// HealthConfig contains health check endpoint configuration.
type HealthConfig struct {
	// LivenessPath is the HTTP path for the liveness probe.
	// Default: "/healthz"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the HTTP path for the readiness probe.
	// Default: "/readyz"
	ReadinessPath string `yaml:"readiness_path"`
}

// ReportConfig contains the periodic stats report configuration.
type ReportConfig struct {
	// Enabled controls whether engine stats are logged on a schedule.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Schedule is a standard cron expression or descriptor.
	// Default: "@every 1m"
	Schedule string `yaml:"schedule"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Only used when Sampler is "ratio".
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is reported as the service.name resource attribute.
	// Default: "ratecontrol"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS towards the collector.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// HistoryConfig configures the stats snapshot store fed by the report
// scheduler.
type HistoryConfig struct {
	// Backend selects the store.
	// Options: "none", "memory", "sqlite"
	// Default: "none"
	Backend string `yaml:"backend"`

	// Driver is the database/sql driver for the sqlite backend.
	// Options: "sqlite" (pure Go), "sqlite3" (cgo)
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// Path is the sqlite database file.
	// Default: "ratecontrol-history.db"
	Path string `yaml:"path"`

	// Retention is how long snapshots are kept.
	// Default: 24h
	Retention time.Duration `yaml:"retention"`

	// MaxEntries bounds the memory backend.
	// Default: 10000
	MaxEntries int `yaml:"max_entries"`

	// CleanupSchedule is the cron schedule of the retention prune.
	// Default: "@every 10m"
	CleanupSchedule string `yaml:"cleanup_schedule"`
}
