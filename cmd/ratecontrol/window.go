package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/ratecontrol/pkg/cli"
	"mercator-hq/ratecontrol/pkg/ratelimit"
)

var windowFlags struct {
	capacity int
	window   time.Duration
	requests int
	batch    uint32
	interval time.Duration
	format   string
}

var windowCmd = &cobra.Command{
	Use:   "window",
	Short: "Simulate a sliding window limiter",
	Long: `Send a sequence of requests through a sliding window limiter and show
which ones were admitted.

Capacity and window default to the sliding_window section of the
configuration.

Examples:
  # 20 back-to-back requests against the configured window
  ratecontrol window --requests 20

  # 5 per 100ms, one request every 10ms
  ratecontrol window --capacity 5 --window 100ms --interval 10ms`,
	RunE: runWindow,
}

func init() {
	rootCmd.AddCommand(windowCmd)

	windowCmd.Flags().IntVar(&windowFlags.capacity, "capacity", 0, "units per window (0 = from config)")
	windowCmd.Flags().DurationVar(&windowFlags.window, "window", 0, "window length (0 = from config)")
	windowCmd.Flags().IntVarP(&windowFlags.requests, "requests", "n", 20, "number of requests to send")
	windowCmd.Flags().Uint32Var(&windowFlags.batch, "batch", 1, "units per request")
	windowCmd.Flags().DurationVar(&windowFlags.interval, "interval", 0, "pause between requests")
	windowCmd.Flags().StringVar(&windowFlags.format, "format", "text", "output format: text, json, csv")
}

// windowReport is the outcome of a window simulation.
type windowReport struct {
	Capacity uint32          `json:"capacity"`
	Window   time.Duration   `json:"window"`
	Batch    uint32          `json:"batch"`
	Admitted int             `json:"admitted"`
	Rejected int             `json:"rejected"`
	Requests []windowRequest `json:"requests"`
}

type windowRequest struct {
	Seq      int           `json:"seq"`
	Offset   time.Duration `json:"offset"`
	Admitted bool          `json:"admitted"`
	InWindow int           `json:"in_window"`
}

func (r windowReport) Header() []string {
	return []string{"SEQ", "OFFSET", "RESULT", "IN WINDOW"}
}

func (r windowReport) Rows() [][]string {
	rows := make([][]string, 0, len(r.Requests))
	for _, req := range r.Requests {
		result := "rejected"
		if req.Admitted {
			result = "admitted"
		}
		rows = append(rows, []string{
			strconv.Itoa(req.Seq),
			req.Offset.Round(time.Microsecond).String(),
			result,
			strconv.Itoa(req.InWindow),
		})
	}
	return rows
}

func runWindow(cmd *cobra.Command, args []string) error {
	if windowFlags.requests < 1 {
		return cli.NewConfigError("requests", "must be at least 1")
	}
	if windowFlags.capacity < 0 {
		return cli.NewConfigError("capacity", "must not be negative")
	}
	format, err := cli.ParseOutputFormat(windowFlags.format)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	capacity := uint32(cfg.SlidingWindow.Capacity)
	if windowFlags.capacity > 0 {
		capacity = uint32(windowFlags.capacity)
	}
	window := cfg.SlidingWindow.Window
	if windowFlags.window > 0 {
		window = windowFlags.window
	}
	if windowFlags.batch == 0 || windowFlags.batch > capacity {
		return cli.NewConfigError("batch", fmt.Sprintf("must be between 1 and the capacity %d", capacity))
	}

	sw, err := ratelimit.NewSlidingWindow(capacity, window)
	if err != nil {
		return cli.NewConfigError("sliding_window", err.Error())
	}

	report := windowReport{
		Capacity: capacity,
		Window:   window,
		Batch:    windowFlags.batch,
		Requests: make([]windowRequest, 0, windowFlags.requests),
	}

	ctx := cmd.Context()
	start := time.Now()
	for i := range windowFlags.requests {
		if i > 0 && windowFlags.interval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(windowFlags.interval):
			}
		}

		offset := time.Since(start)
		err := sw.TryAcquire(windowFlags.batch)
		if err != nil && !errors.Is(err, ratelimit.ErrWindowFull) {
			return cli.NewCommandError("window", err)
		}

		report.Requests = append(report.Requests, windowRequest{
			Seq:      i + 1,
			Offset:   offset,
			Admitted: err == nil,
			InWindow: sw.Len(),
		})
		if err == nil {
			report.Admitted++
		} else {
			report.Rejected++
		}
	}

	out := cmd.OutOrStdout()
	if err := cli.NewFormatter(format).FormatTo(out, report); err != nil {
		return err
	}
	if format == cli.FormatText {
		fmt.Fprintf(out, "\n%d admitted, %d rejected (%d per %v)\n", report.Admitted, report.Rejected, capacity, window)
	}
	return nil
}
