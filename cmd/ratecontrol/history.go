package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/ratecontrol/pkg/cli"
	"mercator-hq/ratecontrol/pkg/history"
)

var historyFlags struct {
	runID  string
	since  time.Duration
	limit  int
	format string
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded engine stats snapshots",
	Long: `List the engine stats snapshots that "ratecontrol run" saved while the
periodic report was enabled, newest first.

Only the sqlite history backend outlives the run that wrote it, so this
command requires history.backend: sqlite.

Examples:
  # Last 20 snapshots
  ratecontrol history --config config.yaml

  # One run over the last hour, as CSV
  ratecontrol history --run-id 2f1c... --since 1h --format csv`,
	Args: cobra.NoArgs,
	RunE: listHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyFlags.runID, "run-id", "", "only snapshots of this run")
	historyCmd.Flags().DurationVar(&historyFlags.since, "since", 0, "only snapshots younger than this (0 = all)")
	historyCmd.Flags().IntVar(&historyFlags.limit, "limit", 20, "maximum number of snapshots (0 = all)")
	historyCmd.Flags().StringVar(&historyFlags.format, "format", "text", "output format: text, json, csv")
}

// snapshotList renders snapshots as a table.
type snapshotList []*history.Snapshot

func (l snapshotList) Header() []string {
	return []string{"ID", "RUN", "TAKEN AT", "RHYTHM", "ACTIVE", "POOLED", "CREATED", "CYCLES", "BEHIND"}
}

func (l snapshotList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, s := range l {
		rows = append(rows, []string{
			strconv.FormatInt(s.ID, 10),
			s.RunID,
			s.TakenAt.Format(time.RFC3339),
			s.Stats.Rhythm.String(),
			strconv.Itoa(s.Stats.Active),
			strconv.Itoa(s.Stats.Pooled),
			strconv.FormatUint(s.Stats.Created, 10),
			strconv.FormatUint(s.Stats.Cycles, 10),
			strconv.FormatUint(s.Stats.BehindCycles, 10),
		})
	}
	return rows
}

func listHistory(cmd *cobra.Command, args []string) error {
	if historyFlags.since < 0 {
		return cli.NewConfigError("since", "must not be negative")
	}
	if historyFlags.limit < 0 {
		return cli.NewConfigError("limit", "must not be negative")
	}
	format, err := cli.ParseOutputFormat(historyFlags.format)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return cli.NewConfigError("config", err.Error())
	}
	if cfg.History.Backend != "sqlite" {
		return cli.NewConfigError("history.backend", fmt.Sprintf("history is only kept across runs by the sqlite backend, got %q", cfg.History.Backend))
	}

	store, err := history.Open(cfg.History)
	if err != nil {
		return cli.NewCommandError("history", err)
	}
	defer store.Close()

	q := history.Query{RunID: historyFlags.runID, Limit: historyFlags.limit}
	if historyFlags.since > 0 {
		q.Since = time.Now().Add(-historyFlags.since)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	snaps, err := store.List(ctx, q)
	if err != nil {
		return cli.NewCommandError("history", err)
	}

	out := cmd.OutOrStdout()
	if format == cli.FormatText && len(snaps) == 0 {
		fmt.Fprintln(out, "No snapshots recorded")
		return nil
	}
	return cli.NewFormatter(format).FormatTo(out, snapshotList(snaps))
}
