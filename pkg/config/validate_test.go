package config

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		modify     func(*Config)
		wantFields []string
	}{
		{
			name:   "defaults are valid",
			modify: func(*Config) {},
		},
		{
			name:       "min rhythm below a microsecond",
			modify:     func(c *Config) { c.Engine.MinRhythm = time.Nanosecond },
			wantFields: []string{"engine.min_rhythm"},
		},
		{
			name:       "max rhythm below min rhythm",
			modify:     func(c *Config) { c.Engine.MaxRhythm = 100 * time.Microsecond },
			wantFields: []string{"engine.max_rhythm"},
		},
		{
			name:       "negative min capacity",
			modify:     func(c *Config) { c.Engine.MinCapacity = -1 },
			wantFields: []string{"engine.min_capacity"},
		},
		{
			name: "limiter problems are all reported",
			modify: func(c *Config) {
				c.Limiters = []LimiterConfig{
					{Name: "a", Rate: 1, Unit: "s"},
					{Name: "a", Rate: math.NaN(), Unit: "minutes", Capacity: -3},
					{Rate: 1, Unit: "ms"},
				}
			},
			wantFields: []string{
				"limiters[1].name",
				"limiters[1].rate",
				"limiters[1].unit",
				"limiters[1].capacity",
				"limiters[2].name",
			},
		},
		{
			name:       "sliding window without capacity",
			modify:     func(c *Config) { c.SlidingWindow.Capacity = 0; c.SlidingWindow.Window = -time.Second },
			wantFields: []string{"sliding_window.capacity", "sliding_window.window"},
		},
		{
			name:       "invalid logging level and format",
			modify:     func(c *Config) { c.Telemetry.Logging.Level = "trace"; c.Telemetry.Logging.Format = "xml" },
			wantFields: []string{"telemetry.logging.level", "telemetry.logging.format"},
		},
		{
			name: "metrics enabled without address",
			modify: func(c *Config) {
				c.Telemetry.Metrics.Enabled = true
				c.Telemetry.Metrics.ListenAddress = ""
				c.Telemetry.Metrics.Path = "metrics"
			},
			wantFields: []string{"telemetry.metrics.listen_address", "telemetry.metrics.path"},
		},
		{
			name:       "relative health path",
			modify:     func(c *Config) { c.Telemetry.Health.ReadinessPath = "ready" },
			wantFields: []string{"telemetry.health.readiness_path"},
		},
		{
			name: "invalid report schedule",
			modify: func(c *Config) {
				c.Telemetry.Report.Enabled = true
				c.Telemetry.Report.Schedule = "every now and then"
			},
			wantFields: []string{"telemetry.report.schedule"},
		},
		{
			name:   "invalid schedule ignored while report disabled",
			modify: func(c *Config) { c.Telemetry.Report.Schedule = "every now and then" },
		},
		{
			name: "invalid tracing sampler",
			modify: func(c *Config) {
				c.Telemetry.Tracing.Enabled = true
				c.Telemetry.Tracing.Sampler = "sometimes"
				c.Telemetry.Tracing.Endpoint = ""
			},
			wantFields: []string{"telemetry.tracing.sampler", "telemetry.tracing.endpoint"},
		},
		{
			name: "tracing ratio out of range",
			modify: func(c *Config) {
				c.Telemetry.Tracing.Enabled = true
				c.Telemetry.Tracing.SampleRatio = 1.5
			},
			wantFields: []string{"telemetry.tracing.sample_ratio"},
		},
		{
			name:       "unknown history backend",
			modify:     func(c *Config) { c.History.Backend = "redis" },
			wantFields: []string{"history.backend"},
		},
		{
			name: "history fields ignored while disabled",
			modify: func(c *Config) {
				c.History.Retention = -time.Hour
				c.History.CleanupSchedule = "whenever"
			},
		},
		{
			name: "invalid sqlite history",
			modify: func(c *Config) {
				c.History.Backend = "sqlite"
				c.History.Driver = "postgres"
				c.History.Path = ""
				c.History.CleanupSchedule = "whenever"
			},
			wantFields: []string{"history.driver", "history.path", "history.cleanup_schedule"},
		},
		{
			name: "invalid memory history",
			modify: func(c *Config) {
				c.History.Backend = "memory"
				c.History.MaxEntries = -1
				c.History.Retention = 0
			},
			wantFields: []string{"history.max_entries", "history.retention"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.modify(cfg)

			err := Validate(cfg)
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("expected valid config, got %v", err)
				}
				return
			}

			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}

			got := make([]string, 0, len(verr.Errors))
			for _, fe := range verr.Errors {
				got = append(got, fe.Field)
			}
			if strings.Join(got, ",") != strings.Join(tt.wantFields, ",") {
				t.Errorf("error fields = %v, want %v", got, tt.wantFields)
			}
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	single := ValidationError{Errors: []FieldError{{Field: "engine.min_rhythm", Message: "too small"}}}
	if got := single.Error(); got != "configuration validation failed: engine.min_rhythm: too small" {
		t.Errorf("unexpected single error message: %q", got)
	}

	multi := ValidationError{Errors: []FieldError{
		{Field: "a", Message: "x"},
		{Field: "b", Message: "y"},
	}}
	if got := multi.Error(); !strings.Contains(got, "with 2 errors") || !strings.Contains(got, "  - b: y") {
		t.Errorf("unexpected multi error message: %q", got)
	}

	if got := (ValidationError{}).Error(); got != "configuration validation failed" {
		t.Errorf("unexpected empty error message: %q", got)
	}
}
