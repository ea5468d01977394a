package main

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/ratecontrol/pkg/cli"
	"mercator-hq/ratecontrol/pkg/config"
	"mercator-hq/ratecontrol/pkg/history"
	"mercator-hq/ratecontrol/pkg/ratelimit"
	"mercator-hq/ratecontrol/pkg/telemetry/logging"
	"mercator-hq/ratecontrol/pkg/telemetry/metrics"
	"mercator-hq/ratecontrol/pkg/telemetry/report"
	"mercator-hq/ratecontrol/pkg/telemetry/tracing"
)

// adHocLimiter names the limiter created from --rate.
const adHocLimiter = "cli"

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
	rate          float64
	unit          string
	capacity      int
	duration      time.Duration
	watch         bool
	blocking      bool
	format        string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Pace the configured limiters",
	Long: `Start the rate limit engine and pace every configured limiter.

Each limiter takes one unit at a time from its token bucket for as long as
the command runs, so the admitted count tracks the configured rate. By
default a limiter sleeps one token interval when its bucket is empty; with
--blocking it spins in Acquire until the scheduler refills the bucket. When
telemetry.metrics.enabled is set, a telemetry server exposes Prometheus
metrics, liveness and readiness probes, and engine stats.

The configuration is reloaded on SIGHUP, and on every change of the file
with --watch. A reload applies the logging level, the engine's minimum
rhythm and the sliding window; other settings need a restart.

Examples:
  # Run the limiters from a config file until interrupted
  ratecontrol run --config /etc/ratecontrol/config.yaml --watch

  # Pace a single ad-hoc limiter for ten seconds
  ratecontrol run --rate 50 --unit s --duration 10s

  # Validate config without starting the engine
  ratecontrol run --dry-run`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override telemetry listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the engine")
	runCmd.Flags().Float64Var(&runFlags.rate, "rate", 0, "add an ad-hoc limiter with this rate")
	runCmd.Flags().StringVar(&runFlags.unit, "unit", "s", "time unit of --rate: s, ms, us")
	runCmd.Flags().IntVar(&runFlags.capacity, "capacity", 0, "capacity of the ad-hoc limiter (0 = derived)")
	runCmd.Flags().DurationVar(&runFlags.duration, "duration", 0, "stop after this long (0 = until interrupted)")
	runCmd.Flags().BoolVar(&runFlags.watch, "watch", false, "reload the config file when it changes")
	runCmd.Flags().BoolVar(&runFlags.blocking, "blocking", false, "wait for tokens with Acquire instead of sleeping")
	runCmd.Flags().StringVar(&runFlags.format, "format", "text", "summary format: text, json, csv")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Telemetry.Metrics.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if cmd.Flags().Changed("rate") {
		cfg.Limiters = append(cfg.Limiters, config.LimiterConfig{
			Name:     adHocLimiter,
			Rate:     runFlags.rate,
			Unit:     runFlags.unit,
			Capacity: runFlags.capacity,
		})
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	config.SetConfig(cfg)

	format, err := cli.ParseOutputFormat(runFlags.format)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	if runFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()
	if runFlags.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runFlags.duration)
		defer cancel()
	}
	runID := uuid.NewString()
	ctx = logging.WithCommand(logging.WithRunID(ctx, runID), "run")

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return cli.NewConfigError("telemetry.tracing", err.Error())
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	engine, err := ratelimit.New(
		ratelimit.WithConfig(cfg.Engine),
		ratelimit.WithLogger(logger.Slog()),
		ratelimit.WithRegisterer(collector.Registerer()),
	)
	if err != nil {
		return cli.NewConfigError("engine", err.Error())
	}
	if err := engine.Start(); err != nil {
		return cli.NewCommandError("run", err)
	}
	defer engine.Stop()
	fmt.Fprintf(out, "✓ Engine started (rhythm %v)\n", engine.Rhythm())

	limiters, err := openLimiters(engine, cfg.Limiters)
	if err != nil {
		return err
	}
	defer closeLimiters(limiters)
	fmt.Fprintf(out, "✓ Limiters created (%d limiters)\n", len(limiters))

	window, err := ratelimit.NewSyncSlidingWindow(uint32(cfg.SlidingWindow.Capacity), cfg.SlidingWindow.Window)
	if err != nil {
		return cli.NewConfigError("sliding_window", err.Error())
	}

	var srv *telemetryServer
	if cfg.Telemetry.Metrics.Enabled {
		srv, err = newTelemetryServer(cfg, collector, engine, window, tracer, logger.Slog())
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		srv.Start()
		defer func() {
			if err := srv.Shutdown(5 * time.Second); err != nil {
				logger.Error("telemetry server shutdown failed", "error", err)
			}
		}()
		fmt.Fprintf(out, "✓ Metrics endpoint: http://%s%s\n", srv.Addr(), cfg.Telemetry.Metrics.Path)
		fmt.Fprintf(out, "✓ Health endpoints: http://%s%s, http://%s%s\n",
			srv.Addr(), cfg.Telemetry.Health.LivenessPath, srv.Addr(), cfg.Telemetry.Health.ReadinessPath)
	}

	if cfg.Telemetry.Report.Enabled {
		var opts []report.Option
		store, err := history.Open(cfg.History)
		if err != nil {
			return cli.NewConfigError("history", err.Error())
		}
		if store != nil {
			defer store.Close()
			opts = append(opts,
				report.WithStore(store, runID),
				report.WithRetention(cfg.History.Retention, cfg.History.CleanupSchedule),
			)
			if srv != nil {
				srv.checker.RegisterOptionalCheck("history", func(ctx context.Context) error {
					_, err := store.List(ctx, history.Query{Limit: 1})
					return err
				})
			}
			fmt.Fprintf(out, "✓ History store: %s\n", cfg.History.Backend)
		}

		reporter := report.NewScheduler(engine, cfg.Telemetry.Report.Schedule, logger.Slog(), opts...)
		if err := reporter.Start(ctx); err != nil {
			return cli.NewConfigError("telemetry.report.schedule", err.Error())
		}
		defer reporter.Stop()
	}

	reloader := &reloader{path: cfgFile, runID: runID, logger: logger, engine: engine, window: window, tracer: tracer}
	if cfgFile != "" {
		hup := cli.ReloadSignals()
		defer signal.Stop(hup)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-hup:
					if err := reloader.reload(); err != nil {
						logger.ErrorContext(ctx, "configuration reload failed", "error", err)
					}
				}
			}
		}()

		if runFlags.watch {
			fw, err := config.NewFileWatcher(cfgFile, 0, logger.Slog())
			if err != nil {
				return cli.NewCommandError("run", err)
			}
			go func() {
				if err := fw.Watch(ctx, reloader.reload); err != nil {
					logger.ErrorContext(ctx, "config watcher failed", "error", err)
				}
			}()
			defer fw.Stop()
		}
	}

	logger.InfoContext(ctx, "pacing limiters", "limiters", len(limiters), "blocking", runFlags.blocking)

	start := time.Now()
	var wg sync.WaitGroup
	for _, l := range limiters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lctx := logging.WithLimiter(ctx, l.name)
			if runFlags.blocking {
				l.paceBlocking(lctx, collector)
				return
			}
			l.pace(lctx, collector)
		}()
	}

	if runFlags.duration <= 0 {
		fmt.Fprintln(out, "\nPress Ctrl+C to stop")
	}
	<-ctx.Done()
	wg.Wait()

	fmt.Fprintln(out)
	return cli.NewFormatter(format).FormatTo(out, newLimiterReport(limiters, time.Since(start)))
}

// reloader applies the reloadable parts of a new configuration.
type reloader struct {
	path   string
	runID  string
	logger *logging.Logger
	engine *ratelimit.Engine
	window *ratelimit.SyncSlidingWindow
	tracer *tracing.Tracer
}

func (r *reloader) reload() (err error) {
	if r.tracer != nil {
		var span trace.Span
		_, span = r.tracer.Start(context.Background(), "config.reload",
			trace.WithAttributes(
				attribute.String(tracing.AttrConfigPath, r.path),
				attribute.String(tracing.AttrRunID, r.runID),
			))
		defer func() {
			tracing.SetStatus(span, err)
			span.End()
		}()
	}

	cfg, prev, err := config.ReloadConfig(r.path)
	if err != nil {
		return err
	}
	live, restart := config.Diff(prev, cfg)

	if err := r.logger.SetLevel(cfg.Telemetry.Logging.Level); err != nil {
		return err
	}
	if err := r.engine.SetMinRhythm(cfg.Engine.MinRhythm); err != nil {
		return err
	}

	capacity := uint32(cfg.SlidingWindow.Capacity)
	if capacity != r.window.Capacity() || cfg.SlidingWindow.Window != r.window.Window() {
		if err := r.window.Configure(capacity, cfg.SlidingWindow.Window); err != nil {
			return err
		}
	}

	r.logger.Info("configuration reloaded",
		"path", r.path,
		"generation", config.Generation(),
		"changed", live,
		"log_level", cfg.Telemetry.Logging.Level,
		"min_rhythm", cfg.Engine.MinRhythm,
	)
	if len(restart) > 0 {
		r.logger.Warn("changed settings take effect after a restart", "settings", restart)
	}
	return nil
}
