package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime"
	"time"

	"mercator-hq/ratecontrol/pkg/config"
	"mercator-hq/ratecontrol/pkg/ratelimit"
	"mercator-hq/ratecontrol/pkg/telemetry/health"
	"mercator-hq/ratecontrol/pkg/telemetry/metrics"
	"mercator-hq/ratecontrol/pkg/telemetry/tracing"
)

// telemetryServer serves metrics, probes and engine stats.
type telemetryServer struct {
	checker  *health.Checker
	srv      *http.Server
	listener net.Listener
	logger   *slog.Logger
	done     chan error
}

// newTelemetryServer binds the telemetry listener. The stats endpoint is
// guarded by limiter so scrapers cannot hammer the engine snapshot.
func newTelemetryServer(cfg *config.Config, collector *metrics.Collector, engine *ratelimit.Engine, limiter health.Limiter, tracer *tracing.Tracer, logger *slog.Logger) (*telemetryServer, error) {
	checker := health.New(2 * time.Second)
	checker.RegisterProber("engine", engine)
	checker.RegisterCheck("config", func(ctx context.Context) error {
		if config.GetConfig() == nil {
			return errors.New("configuration not loaded")
		}
		return nil
	})

	mux := http.NewServeMux()
	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
	health.Register(mux, checker, cfg.Telemetry.Health, health.VersionInfo{
		Version:   Version,
		Commit:    GitCommit,
		BuildTime: BuildDate,
		GoVersion: runtime.Version(),
	}, nil)
	mux.HandleFunc("/stats", health.RateLimitedHandler(health.StatsHandler(engine.Stats), limiter))

	ln, err := net.Listen("tcp", cfg.Telemetry.Metrics.ListenAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.Telemetry.Metrics.ListenAddress, err)
	}

	return &telemetryServer{
		checker: checker,
		srv: &http.Server{
			Handler:           tracing.HTTPMiddleware(tracer, mux),
			ReadHeaderTimeout: 5 * time.Second,
		},
		listener: ln,
		logger:   logger.With("component", "telemetry.server"),
		done:     make(chan error, 1),
	}, nil
}

// Addr returns the bound address.
func (t *telemetryServer) Addr() string {
	return t.listener.Addr().String()
}

// Start serves in the background.
func (t *telemetryServer) Start() {
	go func() {
		t.logger.Info("telemetry server listening", "address", t.Addr())
		err := t.srv.Serve(t.listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		t.done <- err
	}()
}

// Shutdown stops the server, waiting up to timeout for open requests.
func (t *telemetryServer) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := t.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("telemetry server shutdown: %w", err)
	}
	return <-t.done
}
