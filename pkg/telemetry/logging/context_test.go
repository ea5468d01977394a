package logging

import (
	"context"
	"testing"
)

func TestContextKeys(t *testing.T) {
	ctx := context.Background()

	ctx = WithRunID(ctx, "run-1")
	if got := GetRunID(ctx); got != "run-1" {
		t.Errorf("GetRunID() = %q, want %q", got, "run-1")
	}

	ctx = WithLimiter(ctx, "uploads")
	if got := GetLimiter(ctx); got != "uploads" {
		t.Errorf("GetLimiter() = %q, want %q", got, "uploads")
	}

	ctx = WithCommand(ctx, "run")
	if got := GetCommand(ctx); got != "run" {
		t.Errorf("GetCommand() = %q, want %q", got, "run")
	}

	ctx = WithTraceID(ctx, "4bf92f3577b34da6a3ce929d0e0e4736")
	if got := GetTraceID(ctx); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("GetTraceID() = %q", got)
	}
}

func TestContextKeys_Empty(t *testing.T) {
	ctx := context.Background()

	if got := GetRunID(ctx); got != "" {
		t.Errorf("GetRunID() = %q, want empty", got)
	}
	if got := GetLimiter(ctx); got != "" {
		t.Errorf("GetLimiter() = %q, want empty", got)
	}
	if got := GetCommand(ctx); got != "" {
		t.Errorf("GetCommand() = %q, want empty", got)
	}
}

func TestExtractContextFields(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		want []string
	}{
		{
			name: "empty context",
			ctx:  context.Background(),
			want: nil,
		},
		{
			name: "limiter only",
			ctx:  WithLimiter(context.Background(), "events"),
			want: []string{"limiter=events"},
		},
		{
			name: "all fields in fixed order",
			ctx:  WithLimiter(WithCommand(WithRunID(context.Background(), "r"), "run"), "l"),
			want: []string{"run_id=r", "command=run", "limiter=l"},
		},
		{
			name: "trace id last",
			ctx:  WithTraceID(WithRunID(context.Background(), "r"), "abc"),
			want: []string{"run_id=r", "trace_id=abc"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := extractContextFields(tt.ctx)
			if len(fields) != len(tt.want) {
				t.Fatalf("got %d fields, want %d", len(fields), len(tt.want))
			}
			for i, f := range fields {
				if got := f.String(); got != tt.want[i] {
					t.Errorf("field %d = %q, want %q", i, got, tt.want[i])
				}
			}
		})
	}
}

func TestContextOverwrite(t *testing.T) {
	ctx := WithLimiter(context.Background(), "first")
	ctx = WithLimiter(ctx, "second")

	if got := GetLimiter(ctx); got != "second" {
		t.Errorf("GetLimiter() = %q, want %q", got, "second")
	}
}
