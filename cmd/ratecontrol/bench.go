package main

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"mercator-hq/ratecontrol/pkg/cli"
	"mercator-hq/ratecontrol/pkg/ratelimit"
	"mercator-hq/ratecontrol/pkg/telemetry/tracing"
)

var benchFlags struct {
	goroutines int
	rate       float64
	unit       string
	capacity   int
	batch      uint32
	duration   time.Duration
	progress   bool
	format     string
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure token bucket accuracy under contention",
	Long: `Hammer a single token bucket from many goroutines and compare the
admitted units with what the configured rate allows.

The expected figure is rate × elapsed plus the initial capacity, so an
accuracy close to 100% means the refill scheduler keeps up.

Examples:
  # 8 goroutines against 10k units per second for 3 seconds
  ratecontrol bench --goroutines 8 --rate 10000 --duration 3s

  # Per-millisecond rate, JSON result
  ratecontrol bench --rate 5 --unit ms --format json`,
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().IntVarP(&benchFlags.goroutines, "goroutines", "g", runtime.GOMAXPROCS(0), "number of competing goroutines")
	benchCmd.Flags().Float64Var(&benchFlags.rate, "rate", 10000, "bucket rate")
	benchCmd.Flags().StringVar(&benchFlags.unit, "unit", "s", "time unit of --rate: s, ms, us")
	benchCmd.Flags().IntVar(&benchFlags.capacity, "capacity", 0, "bucket capacity (0 = derived)")
	benchCmd.Flags().Uint32Var(&benchFlags.batch, "batch", 1, "units taken per attempt")
	benchCmd.Flags().DurationVarP(&benchFlags.duration, "duration", "d", 2*time.Second, "how long to run")
	benchCmd.Flags().BoolVar(&benchFlags.progress, "progress", false, "show a progress bar on stderr")
	benchCmd.Flags().StringVar(&benchFlags.format, "format", "text", "output format: text, json, csv")
}

// benchResult is the outcome of one bench run.
type benchResult struct {
	Goroutines int           `json:"goroutines"`
	Rate       float64       `json:"rate_per_second"`
	Capacity   uint32        `json:"capacity"`
	Elapsed    time.Duration `json:"elapsed"`
	Attempts   uint64        `json:"attempts"`
	Admitted   uint64        `json:"admitted_units"`
	Expected   float64       `json:"expected_units"`
	Accuracy   float64       `json:"accuracy"`
	Cycles     uint64        `json:"cycles"`
	Behind     uint64        `json:"behind_cycles"`
	Rhythm     time.Duration `json:"rhythm"`
}

func (r benchResult) Header() []string {
	return []string{"METRIC", "VALUE"}
}

func (r benchResult) Rows() [][]string {
	return [][]string{
		{"goroutines", strconv.Itoa(r.Goroutines)},
		{"rate/s", strconv.FormatFloat(r.Rate, 'f', 1, 64)},
		{"capacity", strconv.FormatUint(uint64(r.Capacity), 10)},
		{"elapsed", r.Elapsed.Round(time.Millisecond).String()},
		{"attempts", strconv.FormatUint(r.Attempts, 10)},
		{"admitted", strconv.FormatUint(r.Admitted, 10)},
		{"expected", strconv.FormatFloat(r.Expected, 'f', 0, 64)},
		{"accuracy", strconv.FormatFloat(r.Accuracy*100, 'f', 2, 64) + "%"},
		{"cycles", strconv.FormatUint(r.Cycles, 10)},
		{"behind cycles", strconv.FormatUint(r.Behind, 10)},
		{"rhythm", r.Rhythm.String()},
	}
}

func runBench(cmd *cobra.Command, args []string) error {
	if benchFlags.goroutines < 1 {
		return cli.NewConfigError("goroutines", "must be at least 1")
	}
	if benchFlags.duration <= 0 {
		return cli.NewConfigError("duration", "must be positive")
	}
	if benchFlags.batch == 0 {
		return cli.NewConfigError("batch", "must be at least 1")
	}
	if benchFlags.capacity < 0 {
		return cli.NewConfigError("capacity", "must not be negative")
	}
	unit, err := ratelimit.ParseUnit(benchFlags.unit)
	if err != nil {
		return cli.NewConfigError("unit", err.Error())
	}
	format, err := cli.ParseOutputFormat(benchFlags.format)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return cli.NewConfigError("telemetry.tracing", err.Error())
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracer.Shutdown(shutdownCtx)
	}()

	engine, err := ratelimit.New(
		ratelimit.WithConfig(cfg.Engine),
		ratelimit.WithLogger(logger.Slog()),
	)
	if err != nil {
		return cli.NewConfigError("engine", err.Error())
	}
	if err := engine.Start(); err != nil {
		return cli.NewCommandError("bench", err)
	}
	defer engine.Stop()

	b, err := engine.Create(benchFlags.rate, unit)
	if err != nil {
		return cli.NewConfigError("rate", err.Error())
	}
	defer b.Release()
	if benchFlags.capacity > 0 {
		b.SetCapacity(uint32(benchFlags.capacity))
	}
	if benchFlags.batch > b.Capacity() {
		return cli.NewConfigError("batch", fmt.Sprintf("batch %d exceeds bucket capacity %d", benchFlags.batch, b.Capacity()))
	}

	spanCtx, span := tracer.Start(cmd.Context(), "bench")
	defer span.End()
	tracing.SetLimiterAttributes(span, "bench", b.Rate(), "s", b.Capacity())
	span.SetAttributes(attribute.Int(tracing.AttrGoroutines, benchFlags.goroutines))

	ctx, cancel := context.WithTimeout(spanCtx, benchFlags.duration)
	defer cancel()

	var progress cli.ProgressReporter
	if benchFlags.progress {
		progress = cli.NewProgressReporter(cmd.ErrOrStderr(), "admitted")
		progress.Start(benchFlags.duration)
	}

	before := engine.Stats()
	initial := b.Tokens()
	start := time.Now()

	var attempts, admitted atomic.Uint64
	var wg sync.WaitGroup
	for range benchFlags.goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hammer(ctx, b, benchFlags.batch, &attempts, &admitted)
		}()
	}

	if progress != nil {
		ticker := time.NewTicker(100 * time.Millisecond)
	loop:
		for {
			select {
			case <-ctx.Done():
				break loop
			case <-ticker.C:
				progress.Update(time.Since(start), admitted.Load())
			}
		}
		ticker.Stop()
	}
	wg.Wait()
	elapsed := time.Since(start)
	if progress != nil {
		progress.Finish()
	}

	after := engine.Stats()
	result := benchResult{
		Goroutines: benchFlags.goroutines,
		Rate:       b.Rate(),
		Capacity:   b.Capacity(),
		Elapsed:    elapsed,
		Attempts:   attempts.Load(),
		Admitted:   admitted.Load(),
		Expected:   b.Rate()*elapsed.Seconds() + float64(initial),
		Cycles:     after.Cycles - before.Cycles,
		Behind:     after.BehindCycles - before.BehindCycles,
		Rhythm:     after.Rhythm,
	}
	if result.Expected > 0 {
		result.Accuracy = float64(result.Admitted) / result.Expected
	}

	span.SetAttributes(attribute.Int64(tracing.AttrAdmitted, int64(result.Admitted)))
	logger.Debug("bench finished",
		"attempts", result.Attempts,
		"admitted", result.Admitted,
		"accuracy", result.Accuracy,
	)

	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), result)
}

// hammer takes batch units from b until ctx is done. Empty buckets yield
// the processor instead of sleeping so the scheduler's refills are raced
// for as soon as they land.
func hammer(ctx context.Context, b *ratelimit.Bucket, batch uint32, attempts, admitted *atomic.Uint64) {
	for ctx.Err() == nil {
		attempts.Add(1)
		err := b.TryAcquire(batch)
		switch {
		case err == nil:
			admitted.Add(uint64(batch))
		case errors.Is(err, ratelimit.ErrInsufficientTokens):
			runtime.Gosched()
		default:
			return
		}
	}
}
