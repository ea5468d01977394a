package config

import "time"

// Default values for configuration fields.
const (
	// Engine defaults
	DefaultEngineMinRhythm   = 500 * time.Microsecond
	DefaultEngineMaxRhythm   = time.Second
	DefaultEngineMinCapacity = 4

	// Limiter defaults
	DefaultLimiterUnit = "s"

	// Sliding window defaults
	DefaultSlidingWindowCapacity = 10
	DefaultSlidingWindowWindow   = time.Second

	// Telemetry defaults
	DefaultLoggingLevel         = "info"
	DefaultLoggingFormat        = "json"
	DefaultMetricsListenAddress = "127.0.0.1:9090"
	DefaultMetricsPath          = "/metrics"
	DefaultLivenessPath         = "/healthz"
	DefaultReadinessPath        = "/readyz"
	DefaultReportSchedule       = "@every 1m"
	DefaultTracingSampler       = "ratio"
	DefaultTracingSampleRatio   = 0.1
	DefaultTracingEndpoint      = "localhost:4317"
	DefaultTracingServiceName   = "ratecontrol"
	DefaultTracingTimeout       = 10 * time.Second

	// History defaults
	DefaultHistoryBackend         = "none"
	DefaultHistoryDriver          = "sqlite"
	DefaultHistoryPath            = "ratecontrol-history.db"
	DefaultHistoryRetention       = 24 * time.Hour
	DefaultHistoryMaxEntries      = 10000
	DefaultHistoryCleanupSchedule = "@every 10m"
)

// ApplyDefaults fills every zero-valued field with its default. Fields
// already set are left alone.
func ApplyDefaults(cfg *Config) {
	// Engine defaults
	if cfg.Engine.MinRhythm == 0 {
		cfg.Engine.MinRhythm = DefaultEngineMinRhythm
	}
	if cfg.Engine.MaxRhythm == 0 {
		cfg.Engine.MaxRhythm = DefaultEngineMaxRhythm
	}
	if cfg.Engine.MinCapacity == 0 {
		cfg.Engine.MinCapacity = DefaultEngineMinCapacity
	}

	// Limiter defaults
	for i := range cfg.Limiters {
		if cfg.Limiters[i].Unit == "" {
			cfg.Limiters[i].Unit = DefaultLimiterUnit
		}
	}

	// Sliding window defaults
	if cfg.SlidingWindow.Capacity == 0 {
		cfg.SlidingWindow.Capacity = DefaultSlidingWindowCapacity
	}
	if cfg.SlidingWindow.Window == 0 {
		cfg.SlidingWindow.Window = DefaultSlidingWindowWindow
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.ListenAddress == "" {
		cfg.Telemetry.Metrics.ListenAddress = DefaultMetricsListenAddress
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Health.LivenessPath == "" {
		cfg.Telemetry.Health.LivenessPath = DefaultLivenessPath
	}
	if cfg.Telemetry.Health.ReadinessPath == "" {
		cfg.Telemetry.Health.ReadinessPath = DefaultReadinessPath
	}
	if cfg.Telemetry.Report.Schedule == "" {
		cfg.Telemetry.Report.Schedule = DefaultReportSchedule
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
		if cfg.Telemetry.Tracing.SampleRatio == 0 {
			cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
		}
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}

	// History defaults
	if cfg.History.Backend == "" {
		cfg.History.Backend = DefaultHistoryBackend
	}
	if cfg.History.Driver == "" {
		cfg.History.Driver = DefaultHistoryDriver
	}
	if cfg.History.Path == "" {
		cfg.History.Path = DefaultHistoryPath
	}
	if cfg.History.Retention == 0 {
		cfg.History.Retention = DefaultHistoryRetention
	}
	if cfg.History.MaxEntries == 0 {
		cfg.History.MaxEntries = DefaultHistoryMaxEntries
	}
	if cfg.History.CleanupSchedule == "" {
		cfg.History.CleanupSchedule = DefaultHistoryCleanupSchedule
	}
}

// NewDefaultConfig returns a configuration with every default applied.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
