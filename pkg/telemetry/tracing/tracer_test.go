package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mercator-hq/ratecontrol/pkg/config"
)

// newTestTracer returns an always-sampling tracer recording into memory.
func newTestTracer(t *testing.T) (*Tracer, *tracetest.InMemoryExporter) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tracer, err := NewWithExporter(&config.TracingConfig{
		Sampler:     SamplerAlways,
		ServiceName: "ratecontrol-test",
	}, "test", exporter)
	if err != nil {
		t.Fatalf("NewWithExporter() failed: %v", err)
	}
	t.Cleanup(func() { _ = tracer.Shutdown(context.Background()) })
	return tracer, exporter
}

func flushed(t *testing.T, tracer *Tracer, exporter *tracetest.InMemoryExporter) tracetest.SpanStubs {
	t.Helper()
	if err := tracer.ForceFlush(context.Background()); err != nil {
		t.Fatalf("ForceFlush() failed: %v", err)
	}
	return exporter.GetSpans()
}

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		config      *config.TracingConfig
		wantErr     bool
		wantEnabled bool
	}{
		{
			name:    "nil config",
			wantErr: true,
		},
		{
			name:   "disabled tracing",
			config: &config.TracingConfig{Enabled: false},
		},
		{
			name: "enabled with ratio sampler",
			config: &config.TracingConfig{
				Enabled:     true,
				Sampler:     SamplerRatio,
				SampleRatio: 0.5,
				Endpoint:    "localhost:4317",
				ServiceName: "ratecontrol",
				Insecure:    true,
				Timeout:     time.Second,
			},
			wantEnabled: true,
		},
		{
			name: "enabled with unknown sampler",
			config: &config.TracingConfig{
				Enabled:  true,
				Sampler:  "sometimes",
				Endpoint: "localhost:4317",
				Insecure: true,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracer, err := New(tt.config, "test")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() failed: %v", err)
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer cancel()
				_ = tracer.Shutdown(ctx)
			}()

			if tracer.Enabled() != tt.wantEnabled {
				t.Errorf("Enabled() = %v, want %v", tracer.Enabled(), tt.wantEnabled)
			}
		})
	}
}

func TestTracer_Disabled(t *testing.T) {
	tracer, err := New(&config.TracingConfig{}, "test")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx, span := tracer.Start(context.Background(), "noop")
	defer span.End()

	if span.SpanContext().IsValid() {
		t.Error("disabled tracer should hand out invalid span contexts")
	}
	if got := TraceID(ctx); got != "" {
		t.Errorf("TraceID() = %q, want empty", got)
	}
	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() = %v", err)
	}
}

func TestTracer_Start(t *testing.T) {
	tracer, exporter := newTestTracer(t)

	ctx, parent := tracer.Start(context.Background(), "parent")
	_, child := tracer.Start(ctx, "child")
	SetLimiterAttributes(child, "api", 100, "s", 8)
	child.End()
	parent.End()

	if TraceID(ctx) == "" {
		t.Fatal("TraceID() should be set inside a sampled span")
	}

	spans := flushed(t, tracer, exporter)
	if len(spans) != 2 {
		t.Fatalf("exported %d spans, want 2", len(spans))
	}

	childStub := spans[0]
	if childStub.Name != "child" {
		t.Fatalf("first exported span = %q, want child", childStub.Name)
	}
	if childStub.Parent.SpanID() != spans[1].SpanContext.SpanID() {
		t.Error("child should be parented to parent span")
	}

	attrs := map[string]bool{}
	for _, kv := range childStub.Attributes {
		attrs[string(kv.Key)] = true
	}
	for _, key := range []string{AttrLimiter, AttrRate, AttrUnit, AttrCapacity} {
		if !attrs[key] {
			t.Errorf("child span missing attribute %s", key)
		}
	}
}

func TestSetStatus(t *testing.T) {
	tracer, exporter := newTestTracer(t)

	_, ok := tracer.Start(context.Background(), "ok")
	SetStatus(ok, nil)
	ok.End()

	_, failed := tracer.Start(context.Background(), "failed")
	SetStatus(failed, errors.New("boom"))
	failed.End()

	spans := flushed(t, tracer, exporter)
	if len(spans) != 2 {
		t.Fatalf("exported %d spans, want 2", len(spans))
	}
	if spans[0].Status.Code != codes.Ok {
		t.Errorf("ok span status = %v", spans[0].Status.Code)
	}
	if spans[1].Status.Code != codes.Error || spans[1].Status.Description != "boom" {
		t.Errorf("failed span status = %+v", spans[1].Status)
	}
	if len(spans[1].Events) == 0 {
		t.Error("failed span should record the error event")
	}
}

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		strategy string
		ratio    float64
		wantErr  bool
	}{
		{SamplerAlways, 0, false},
		{SamplerNever, 0, false},
		{SamplerRatio, 0.25, false},
		{SamplerRatio, -0.1, true},
		{SamplerRatio, 1.1, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			sampler, err := createSampler(tt.strategy, tt.ratio)
			if (err != nil) != tt.wantErr {
				t.Fatalf("createSampler() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && sampler == nil {
				t.Error("sampler is nil")
			}
		})
	}
}
