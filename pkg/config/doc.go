// Package config provides configuration management for ratecontrol.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides. It provides a type-safe
// configuration system with validation and sensible defaults.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("ratecontrol.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("ratecontrol.yaml")
//
// Passing an empty path to LoadConfigWithEnvOverrides starts from the
// defaults.
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention RATECONTROL_SECTION_FIELD.
// For example:
//
//   - RATECONTROL_ENGINE_MIN_RHYTHM overrides engine.min_rhythm
//   - RATECONTROL_SLIDING_WINDOW_CAPACITY overrides sliding_window.capacity
//   - RATECONTROL_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Hot Reload
//
// FileWatcher watches the configuration file with fsnotify and calls back
// once writes settle. ReloadConfig installs the new file and returns the one
// it replaced; Diff then tells the settings a running process applies
// (telemetry.logging.level, engine.min_rhythm, sliding_window) from those
// that need a restart.
//
// # Example Configuration
//
//	engine:
//	  min_rhythm: 500us
//	  max_rhythm: 1s
//	  min_capacity: 4
//
//	limiters:
//	  - name: uploads
//	    rate: 100
//	    unit: s
//
//	sliding_window:
//	  capacity: 10
//	  window: 1s
//
//	telemetry:
//	  logging:
//	    level: "info"
//	    format: "json"
//	  metrics:
//	    enabled: true
//	    listen_address: "127.0.0.1:9090"
//	  report:
//	    enabled: true
//	    schedule: "@every 1m"
//
//	history:
//	  backend: sqlite
//	  path: /var/lib/ratecontrol/history.db
//	  retention: 24h
//
// # Thread Safety
//
// GetConfig, SetConfig and ReloadConfig are safe for concurrent use. The
// installed *Config is swapped atomically and never modified in place.
package config
