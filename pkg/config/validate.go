package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "engine.min_rhythm").
	Field string `json:"field"`

	// Message is a human-readable error message.
	Message string `json:"message"`
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateEngine(&cfg.Engine)...)
	errs = append(errs, validateLimiters(cfg.Limiters)...)
	errs = append(errs, validateSlidingWindow(&cfg.SlidingWindow)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)
	errs = append(errs, validateHistory(&cfg.History)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateEngine validates engine configuration.
func validateEngine(cfg *EngineConfig) []FieldError {
	var errs []FieldError

	if cfg.MinRhythm < time.Microsecond {
		errs = append(errs, FieldError{
			Field:   "engine.min_rhythm",
			Message: fmt.Sprintf("min rhythm must be at least 1µs, got %v", cfg.MinRhythm),
		})
	}
	if cfg.MaxRhythm < cfg.MinRhythm {
		errs = append(errs, FieldError{
			Field:   "engine.max_rhythm",
			Message: fmt.Sprintf("max rhythm %v must not be below min rhythm %v", cfg.MaxRhythm, cfg.MinRhythm),
		})
	}
	if cfg.MinCapacity <= 0 || cfg.MinCapacity > math.MaxUint32 {
		errs = append(errs, FieldError{
			Field:   "engine.min_capacity",
			Message: fmt.Sprintf("min capacity must be between 1 and %d", uint32(math.MaxUint32)),
		})
	}

	return errs
}

// validUnits lists the accepted limiter unit names.
var validUnits = map[string]bool{
	"s": true, "sec": true, "second": true, "seconds": true,
	"ms": true, "millisecond": true, "milliseconds": true,
	"us": true, "µs": true, "microsecond": true, "microseconds": true,
}

// validateLimiters validates the configured token buckets.
func validateLimiters(limiters []LimiterConfig) []FieldError {
	var errs []FieldError
	seen := make(map[string]bool, len(limiters))

	for i, l := range limiters {
		prefix := fmt.Sprintf("limiters[%d]", i)

		if l.Name == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".name",
				Message: "limiter name is required",
			})
		} else if seen[l.Name] {
			errs = append(errs, FieldError{
				Field:   prefix + ".name",
				Message: fmt.Sprintf("duplicate limiter name %q", l.Name),
			})
		}
		seen[l.Name] = true

		if math.IsNaN(l.Rate) || math.IsInf(l.Rate, 0) || l.Rate <= 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".rate",
				Message: "rate must be a positive number",
			})
		}

		if !validUnits[strings.ToLower(strings.TrimSpace(l.Unit))] {
			errs = append(errs, FieldError{
				Field:   prefix + ".unit",
				Message: fmt.Sprintf("invalid unit %q: must be 's', 'ms', or 'us'", l.Unit),
			})
		}

		if l.Capacity < 0 || l.Capacity > math.MaxUint32 {
			errs = append(errs, FieldError{
				Field:   prefix + ".capacity",
				Message: "capacity must be between 0 (derived) and 4294967295",
			})
		}
	}

	return errs
}

// validateSlidingWindow validates sliding window defaults.
func validateSlidingWindow(cfg *SlidingWindowConfig) []FieldError {
	var errs []FieldError

	if cfg.Capacity <= 0 || cfg.Capacity > math.MaxUint32 {
		errs = append(errs, FieldError{
			Field:   "sliding_window.capacity",
			Message: "capacity must be positive",
		})
	}
	if cfg.Window <= 0 {
		errs = append(errs, FieldError{
			Field:   "sliding_window.window",
			Message: "window must be positive",
		})
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	// Validate logging level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if cfg.Logging.Level == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: "logging level is required",
		})
	} else if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	// Validate logging format
	validFormats := map[string]bool{"json": true, "text": true}
	if cfg.Logging.Format == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: "logging format is required",
		})
	} else if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	// Validate metrics endpoint
	if cfg.Metrics.Enabled {
		if cfg.Metrics.ListenAddress == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.listen_address",
				Message: "listen address is required when metrics are enabled",
			})
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.path",
				Message: "metrics path must start with '/'",
			})
		}
	}

	// Validate health paths
	if !strings.HasPrefix(cfg.Health.LivenessPath, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.health.liveness_path",
			Message: "liveness path must start with '/'",
		})
	}
	if !strings.HasPrefix(cfg.Health.ReadinessPath, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.health.readiness_path",
			Message: "readiness path must start with '/'",
		})
	}

	// Validate report schedule
	if cfg.Report.Enabled {
		if _, err := cron.ParseStandard(cfg.Report.Schedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "telemetry.report.schedule",
				Message: fmt.Sprintf("invalid cron schedule %q: %v", cfg.Report.Schedule, err),
			})
		}
	}

	// Validate tracing
	if cfg.Tracing.Enabled {
		switch cfg.Tracing.Sampler {
		case "always", "never":
		case "ratio":
			if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
				errs = append(errs, FieldError{
					Field:   "telemetry.tracing.sample_ratio",
					Message: fmt.Sprintf("sample ratio must be between 0.0 and 1.0, got %v", cfg.Tracing.SampleRatio),
				})
			}
		default:
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sampler",
				Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Tracing.Sampler),
			})
		}
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.endpoint",
				Message: "endpoint is required when tracing is enabled",
			})
		}
	}

	return errs
}

// validateHistory validates the snapshot store configuration.
func validateHistory(cfg *HistoryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "none":
		return nil
	case "memory":
		if cfg.MaxEntries <= 0 {
			errs = append(errs, FieldError{
				Field:   "history.max_entries",
				Message: "max entries must be positive",
			})
		}
	case "sqlite":
		if cfg.Driver != "sqlite" && cfg.Driver != "sqlite3" {
			errs = append(errs, FieldError{
				Field:   "history.driver",
				Message: fmt.Sprintf("invalid driver %q: must be 'sqlite' or 'sqlite3'", cfg.Driver),
			})
		}
		if cfg.Path == "" {
			errs = append(errs, FieldError{
				Field:   "history.path",
				Message: "path is required for the sqlite backend",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "history.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'none', 'memory', or 'sqlite'", cfg.Backend),
		})
		return errs
	}

	if cfg.Retention <= 0 {
		errs = append(errs, FieldError{
			Field:   "history.retention",
			Message: "retention must be positive",
		})
	}
	if _, err := cron.ParseStandard(cfg.CleanupSchedule); err != nil {
		errs = append(errs, FieldError{
			Field:   "history.cleanup_schedule",
			Message: fmt.Sprintf("invalid cron schedule %q: %v", cfg.CleanupSchedule, err),
		})
	}

	return errs
}
