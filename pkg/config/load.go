package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	// Read the file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	// Parse YAML
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	// Apply defaults
	ApplyDefaults(&cfg)

	// Validate
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention RATECONTROL_SECTION_FIELD (e.g., RATECONTROL_ENGINE_MIN_RHYTHM).
// Environment variables always take precedence over file-based configuration.
//
// An empty path starts from the defaults instead of a file.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = NewDefaultConfig()
	} else {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Re-validate after overrides
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables use the format RATECONTROL_SECTION_FIELD. Values that
// do not parse are ignored.
func applyEnvOverrides(cfg *Config) {
	// Engine overrides
	if val := os.Getenv("RATECONTROL_ENGINE_MIN_RHYTHM"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Engine.MinRhythm = d
		}
	}
	if val := os.Getenv("RATECONTROL_ENGINE_MAX_RHYTHM"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Engine.MaxRhythm = d
		}
	}
	if val := os.Getenv("RATECONTROL_ENGINE_MIN_CAPACITY"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Engine.MinCapacity = i
		}
	}

	// Sliding window overrides
	if val := os.Getenv("RATECONTROL_SLIDING_WINDOW_CAPACITY"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.SlidingWindow.Capacity = i
		}
	}
	if val := os.Getenv("RATECONTROL_SLIDING_WINDOW_WINDOW"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.SlidingWindow.Window = d
		}
	}

	// Telemetry overrides
	if val := os.Getenv("RATECONTROL_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("RATECONTROL_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("RATECONTROL_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("RATECONTROL_TELEMETRY_METRICS_LISTEN_ADDRESS"); val != "" {
		cfg.Telemetry.Metrics.ListenAddress = val
	}
	if val := os.Getenv("RATECONTROL_TELEMETRY_METRICS_PATH"); val != "" {
		cfg.Telemetry.Metrics.Path = val
	}
	if val := os.Getenv("RATECONTROL_TELEMETRY_REPORT_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Report.Enabled = b
		}
	}
	if val := os.Getenv("RATECONTROL_TELEMETRY_REPORT_SCHEDULE"); val != "" {
		cfg.Telemetry.Report.Schedule = val
	}
	if val := os.Getenv("RATECONTROL_TELEMETRY_TRACING_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Tracing.Enabled = b
		}
	}
	if val := os.Getenv("RATECONTROL_TELEMETRY_TRACING_ENDPOINT"); val != "" {
		cfg.Telemetry.Tracing.Endpoint = val
	}
	if val := os.Getenv("RATECONTROL_TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}

	// History overrides
	if val := os.Getenv("RATECONTROL_HISTORY_BACKEND"); val != "" {
		cfg.History.Backend = val
	}
	if val := os.Getenv("RATECONTROL_HISTORY_PATH"); val != "" {
		cfg.History.Path = val
	}
	if val := os.Getenv("RATECONTROL_HISTORY_RETENTION"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.History.Retention = d
		}
	}
}
