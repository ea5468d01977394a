package config

import (
	"fmt"
	"slices"
	"sync/atomic"
)

var (
	// current is the configuration the running process was started or last
	// reloaded with.
	current atomic.Pointer[Config]

	// generation counts SetConfig and successful ReloadConfig calls.
	generation atomic.Uint64
)

// GetConfig returns the process-wide configuration, or nil before SetConfig
// or ReloadConfig succeeded. The returned value must be treated as
// read-only.
func GetConfig() *Config {
	return current.Load()
}

// SetConfig installs cfg as the process-wide configuration.
func SetConfig(cfg *Config) {
	current.Store(cfg)
	generation.Add(1)
}

// Generation returns how many times the process-wide configuration was
// replaced. Zero means none was ever installed.
func Generation() uint64 {
	return generation.Load()
}

// ReloadConfig loads path with environment overrides and, if it is valid,
// installs it. It returns the new configuration and the one it replaced
// (nil on first install). On error the installed configuration is kept.
func ReloadConfig(path string) (next, prev *Config, err error) {
	next, err = LoadConfigWithEnvOverrides(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to reload configuration: %w", err)
	}

	prev = current.Swap(next)
	generation.Add(1)
	return next, prev, nil
}

// Diff compares two configurations and returns the dotted names of changed
// settings, split into those a running daemon applies on reload and those
// that only take effect after a restart. A nil prev reports every live
// setting as changed.
func Diff(prev, next *Config) (live, restart []string) {
	if next == nil {
		return nil, nil
	}
	if prev == nil {
		return []string{
			"telemetry.logging.level",
			"engine.min_rhythm",
			"sliding_window.capacity",
			"sliding_window.window",
		}, nil
	}

	if prev.Telemetry.Logging.Level != next.Telemetry.Logging.Level {
		live = append(live, "telemetry.logging.level")
	}
	if prev.Engine.MinRhythm != next.Engine.MinRhythm {
		live = append(live, "engine.min_rhythm")
	}
	if prev.SlidingWindow.Capacity != next.SlidingWindow.Capacity {
		live = append(live, "sliding_window.capacity")
	}
	if prev.SlidingWindow.Window != next.SlidingWindow.Window {
		live = append(live, "sliding_window.window")
	}

	if prev.Engine.MaxRhythm != next.Engine.MaxRhythm {
		restart = append(restart, "engine.max_rhythm")
	}
	if prev.Engine.MinCapacity != next.Engine.MinCapacity {
		restart = append(restart, "engine.min_capacity")
	}
	if !slices.Equal(prev.Limiters, next.Limiters) {
		restart = append(restart, "limiters")
	}
	if prev.Telemetry.Logging.Format != next.Telemetry.Logging.Format ||
		prev.Telemetry.Logging.AddSource != next.Telemetry.Logging.AddSource {
		restart = append(restart, "telemetry.logging.format")
	}
	if prev.Telemetry.Metrics != next.Telemetry.Metrics {
		restart = append(restart, "telemetry.metrics")
	}
	if prev.Telemetry.Health != next.Telemetry.Health {
		restart = append(restart, "telemetry.health")
	}
	if prev.Telemetry.Report != next.Telemetry.Report {
		restart = append(restart, "telemetry.report")
	}
	if prev.Telemetry.Tracing != next.Telemetry.Tracing {
		restart = append(restart, "telemetry.tracing")
	}
	if prev.History != next.History {
		restart = append(restart, "history")
	}

	return live, restart
}
