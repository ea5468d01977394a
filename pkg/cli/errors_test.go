package cli

import (
	"errors"
	"fmt"
	"testing"

	"mercator-hq/ratecontrol/pkg/config"
)

func TestConfigError(t *testing.T) {
	err := NewConfigError("engine.min_rhythm", "must be at least 1µs")

	expected := "config error in engine.min_rhythm: must be at least 1µs"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestCommandError(t *testing.T) {
	underlyingErr := errors.New("underlying error")
	err := NewCommandError("bench", underlyingErr)

	expected := "command bench failed: underlying error"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
	if !errors.Is(err, underlyingErr) {
		t.Error("CommandError should unwrap to the underlying error")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: ExitOK},
		{name: "plain error", err: errors.New("boom"), want: ExitFailure},
		{name: "config error", err: NewConfigError("rate", "must be positive"), want: ExitConfigError},
		{
			name: "wrapped config error",
			err:  NewCommandError("run", NewConfigError("unit", "unknown")),
			want: ExitConfigError,
		},
		{
			name: "validation error",
			err:  fmt.Errorf("load: %w", config.ValidationError{Errors: []config.FieldError{{Field: "a", Message: "b"}}}),
			want: ExitConfigError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
