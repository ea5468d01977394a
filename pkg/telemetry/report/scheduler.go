package report

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/ratecontrol/pkg/history"
	"mercator-hq/ratecontrol/pkg/ratelimit"
)

// saveTimeout bounds one snapshot write.
const saveTimeout = 5 * time.Second

// StatsSource is implemented by *ratelimit.Engine.
type StatsSource interface {
	Stats() ratelimit.Stats
}

// Scheduler logs engine statistics on a cron schedule.
//
// Each report carries the engine snapshot plus what changed since the
// previous report, so a log pipeline can graph cycle and bucket churn
// without a metrics backend.
type Scheduler struct {
	source   StatsSource
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger
	entry    cron.EntryID

	store           history.Store
	runID           string
	retention       time.Duration
	cleanupSchedule string

	mu      sync.Mutex
	running bool
	last    ratelimit.Stats
	lastAt  time.Time
	reports uint64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithStore saves every report to store as a snapshot tagged with runID.
func WithStore(store history.Store, runID string) Option {
	return func(s *Scheduler) {
		s.store = store
		s.runID = runID
	}
}

// WithRetention prunes snapshots older than retention from the store on
// cleanupSchedule. It has no effect without WithStore.
func WithRetention(retention time.Duration, cleanupSchedule string) Option {
	return func(s *Scheduler) {
		s.retention = retention
		s.cleanupSchedule = cleanupSchedule
	}
}

// NewScheduler creates a report scheduler for source. A nil logger uses
// slog.Default.
func NewScheduler(source StatsSource, schedule string, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		source:   source,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger.With("component", "telemetry.report"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start schedules the report. The schedule is a standard five-field cron
// expression or a descriptor such as "@every 1m". An empty schedule leaves
// the scheduler idle.
//
// The scheduler stops by itself once ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("report scheduler already running")
	}
	if s.schedule == "" {
		s.logger.Info("report schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	entry, err := s.cron.AddFunc(s.schedule, s.Report)
	if err != nil {
		return fmt.Errorf("failed to schedule report: %w", err)
	}
	s.entry = entry

	if s.store != nil && s.retention > 0 && s.cleanupSchedule != "" {
		if _, err := s.cron.AddFunc(s.cleanupSchedule, s.Prune); err != nil {
			s.cron.Remove(entry)
			return fmt.Errorf("failed to schedule history cleanup %q: %w", s.cleanupSchedule, err)
		}
	}

	s.last = s.source.Stats()
	s.lastAt = time.Now()

	s.cron.Start()
	s.running = true

	s.logger.Info("report scheduler started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Report logs one stats report immediately.
func (s *Scheduler) Report() {
	stats := s.source.Stats()
	now := time.Now()

	s.mu.Lock()
	prev := s.last
	prevAt := s.lastAt
	s.last = stats
	s.lastAt = now
	s.reports++
	s.mu.Unlock()

	d := delta(prev, stats)

	attrs := []any{
		"running", stats.Running,
		"rhythm", stats.Rhythm,
		"active", stats.Active,
		"pending", stats.Pending,
		"pooled", stats.Pooled,
		"created", stats.Created,
		"reused", stats.Reused,
		"cycles", stats.Cycles,
		"behind_cycles", stats.BehindCycles,
		"new_buckets", d.Created,
		"new_cycles", d.Cycles,
		"new_behind_cycles", d.BehindCycles,
	}
	if !prevAt.IsZero() {
		if elapsed := now.Sub(prevAt); elapsed > 0 {
			attrs = append(attrs, "cycles_per_second", float64(d.Cycles)/elapsed.Seconds())
		}
	}

	if !stats.Running {
		s.logger.Warn("engine stats", attrs...)
	} else {
		s.logger.Info("engine stats", attrs...)
	}

	if s.store != nil {
		s.save(now, stats)
	}
}

func (s *Scheduler) save(takenAt time.Time, stats ratelimit.Stats) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	snap := &history.Snapshot{RunID: s.runID, TakenAt: takenAt, Stats: stats}
	if err := s.store.Save(ctx, snap); err != nil {
		s.logger.Error("failed to save stats snapshot", "error", err)
	}
}

// Prune removes snapshots older than the retention period. It returns
// immediately without a store or retention.
func (s *Scheduler) Prune() {
	if s.store == nil || s.retention <= 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	cutoff := time.Now().Add(-s.retention)
	deleted, err := s.store.Cleanup(ctx, cutoff)
	if err != nil {
		s.logger.Error("history cleanup failed", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("history cleanup completed", "deleted", deleted, "cutoff", cutoff)
	}
}

// delta returns the counter increase from prev to cur. Counters that went
// backwards, which happens when the source is replaced, count from zero.
func delta(prev, cur ratelimit.Stats) ratelimit.Stats {
	sub := func(a, b uint64) uint64 {
		if a < b {
			return a
		}
		return a - b
	}
	return ratelimit.Stats{
		Created:      sub(cur.Created, prev.Created),
		Reused:       sub(cur.Reused, prev.Reused),
		Cycles:       sub(cur.Cycles, prev.Cycles),
		BehindCycles: sub(cur.BehindCycles, prev.BehindCycles),
	}
}

// Stop stops the scheduler and waits for a running report to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	// Report takes s.mu, so wait for it outside the lock.
	<-s.cron.Stop().Done()
	s.logger.Info("report scheduler stopped")
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// Reports returns how many reports have been logged.
func (s *Scheduler) Reports() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.reports
}

// NextRun returns the next scheduled report time, or nil when nothing is
// scheduled.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	id := s.entry
	s.mu.Unlock()

	entry := s.cron.Entry(id)
	if !entry.Valid() {
		return nil
	}

	next := entry.Next
	return &next
}
