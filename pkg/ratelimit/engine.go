package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/ratecontrol/internal/bucket"
	"mercator-hq/ratecontrol/pkg/config"
)

const (
	// DefaultMinRhythm is the shortest refill cycle an engine will run.
	DefaultMinRhythm = 500 * time.Microsecond

	// DefaultMaxRhythm is the refill cycle of an engine with no fast buckets.
	DefaultMaxRhythm = time.Second

	// DefaultMinCapacity is the smallest default bucket capacity.
	DefaultMinCapacity = 4
)

const (
	stateIdle int32 = iota
	stateRunning
	stateStopped
)

type options struct {
	minRhythm   time.Duration
	maxRhythm   time.Duration
	minCapacity uint32
	logger      *slog.Logger
	registerer  prometheus.Registerer
	now         func() time.Time
}

func defaultOptions() options {
	return options{
		minRhythm:   DefaultMinRhythm,
		maxRhythm:   DefaultMaxRhythm,
		minCapacity: DefaultMinCapacity,
	}
}

// Option configures an Engine.
type Option func(*options)

// WithMinRhythm sets the floor of the refill cycle.
func WithMinRhythm(d time.Duration) Option {
	return func(o *options) { o.minRhythm = d }
}

// WithMaxRhythm sets the starting (and longest) refill cycle.
func WithMaxRhythm(d time.Duration) Option {
	return func(o *options) { o.maxRhythm = d }
}

// WithMinCapacity sets the floor of default bucket capacities.
func WithMinCapacity(n uint32) Option {
	return func(o *options) { o.minCapacity = n }
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegisterer registers the engine metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithConfig applies the engine section of a loaded configuration. Zero
// fields keep their defaults.
func WithConfig(cfg config.EngineConfig) Option {
	return func(o *options) {
		if cfg.MinRhythm > 0 {
			o.minRhythm = cfg.MinRhythm
		}
		if cfg.MaxRhythm > 0 {
			o.maxRhythm = cfg.MaxRhythm
		}
		if cfg.MinCapacity > 0 {
			o.minCapacity = uint32(cfg.MinCapacity)
		}
	}
}

// WithClock replaces the time source used for refill accounting.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Engine owns a refill scheduler, a bucket pool and the buckets created
// through it.
//
// The zero value is not usable; create engines with New and call Start
// before creating buckets.
type Engine struct {
	opts    options
	logger  *slog.Logger
	clock   *clock
	pool    *pool
	sched   *scheduler
	metrics *Metrics

	mu    sync.Mutex // guards start/stop transitions
	state atomic.Int32

	created atomic.Uint64
	reused  atomic.Uint64
}

// New creates an engine. The engine does not refill anything until Start
// is called.
func New(opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if o.minRhythm < time.Microsecond {
		return nil, fmt.Errorf("%w: min rhythm %v must be at least 1µs", ErrInvalidConfig, o.minRhythm)
	}
	if o.maxRhythm < o.minRhythm {
		return nil, fmt.Errorf("%w: max rhythm %v is below min rhythm %v", ErrInvalidConfig, o.maxRhythm, o.minRhythm)
	}
	if o.minCapacity == 0 {
		return nil, fmt.Errorf("%w: min capacity must be positive", ErrInvalidConfig)
	}

	return newEngine(o), nil
}

func newEngine(o options) *Engine {
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "ratelimit")

	e := &Engine{
		opts:    o,
		logger:  logger,
		clock:   newClock(o.now),
		pool:    newPool(),
		metrics: NewMetrics(o.registerer),
	}
	e.sched = newScheduler(e.pool, e.clock, e.metrics, logger.With("component", "ratelimit.scheduler"), o.minRhythm, o.maxRhythm)
	return e
}

// Start launches the refill scheduler. An engine starts at most once:
// calling Start again returns ErrEngineRunning, and a stopped engine cannot
// be restarted.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state.Load() {
	case stateRunning:
		return ErrEngineRunning
	case stateStopped:
		return ErrEngineStopped
	}

	go e.sched.run()
	e.state.Store(stateRunning)

	e.logger.Info("rate limit engine started",
		"min_rhythm", e.opts.minRhythm,
		"max_rhythm", e.opts.maxRhythm,
		"min_capacity", e.opts.minCapacity,
	)
	return nil
}

// Stop stops and joins the scheduler, then invalidates every bucket and
// empties the pool. Callers spinning in Acquire return ErrWouldBlock.
// Stop is idempotent.
//
// Creating buckets concurrently with Stop is not supported.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.state.Swap(stateStopped)
	if prev == stateStopped {
		return
	}
	if prev == stateRunning {
		close(e.sched.stop)
		<-e.sched.done
	}

	active := e.sched.drain()
	pooled := e.pool.drain()
	e.metrics.RecordDrained()

	e.logger.Info("rate limit engine stopped",
		"buckets_invalidated", active,
		"pool_drained", pooled,
		"cycles", e.sched.cycles.Load(),
	)
}

// Running reports whether the scheduler is active.
func (e *Engine) Running() bool {
	return e.state.Load() == stateRunning
}

// Create returns a bucket admitting rate units per unit of time.
//
// The bucket starts empty and fills as the scheduler runs. Its capacity
// defaults to two refill cycles' worth of tokens, but never less than the
// engine's minimum capacity; SetCapacity overrides it. Creating a bucket
// faster than the current rhythm can serve lowers the rhythm.
func (e *Engine) Create(rate float64, unit Unit) (*Bucket, error) {
	if e.state.Load() != stateRunning {
		return nil, ErrEngineStopped
	}

	rpm, err := perMicro(rate, unit)
	if err != nil {
		return nil, err
	}

	rhythm, lowered := e.sched.lowerRhythm(rhythmCandidate(rpm))
	if lowered {
		e.logger.Debug("refill rhythm lowered",
			"rhythm", time.Duration(rhythm)*time.Microsecond,
			"rate", rate,
			"unit", unit.String(),
		)
	}

	capacity := defaultCapacity(rpm, rhythm, e.opts.minCapacity)

	st, reused := e.pool.get()
	if !reused {
		st = bucket.New()
	}
	gen := st.Reset(rpm, capacity, e.clock.now())
	e.sched.register(st)

	e.created.Add(1)
	if reused {
		e.reused.Add(1)
	}
	e.metrics.RecordBucketCreated(reused)

	return newBucket(st, gen, rpm), nil
}

// rhythmCandidate is half the interval between two tokens, in microseconds.
func rhythmCandidate(ratePerMicro float64) int64 {
	c := 0.5 / ratePerMicro
	if c >= math.MaxInt64 {
		return math.MaxInt64
	}
	if c < 1 {
		return 1
	}
	return int64(c)
}

// defaultCapacity is ceil(2 * rate * rhythm), floored at minCapacity.
func defaultCapacity(ratePerMicro float64, rhythmMicro int64, minCapacity uint32) uint32 {
	c := math.Ceil(2 * ratePerMicro * float64(rhythmMicro))
	if c >= math.MaxUint32 {
		return math.MaxUint32
	}
	return max(uint32(c), minCapacity)
}

// SetMinRhythm changes the rhythm floor at runtime. A rhythm currently
// below the new floor is raised to it.
func (e *Engine) SetMinRhythm(d time.Duration) error {
	if d < time.Microsecond {
		return fmt.Errorf("%w: min rhythm %v must be at least 1µs", ErrInvalidConfig, d)
	}
	if d > e.opts.maxRhythm {
		return fmt.Errorf("%w: min rhythm %v is above max rhythm %v", ErrInvalidConfig, d, e.opts.maxRhythm)
	}
	e.sched.setMinRhythm(d.Microseconds())
	e.logger.Info("min rhythm updated", "min_rhythm", d)
	return nil
}

// Rhythm returns the current refill cycle length.
func (e *Engine) Rhythm() time.Duration {
	return e.sched.rhythmDuration()
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	s := Stats{
		Running:      e.Running(),
		Rhythm:       e.sched.rhythmDuration(),
		Active:       int(e.sched.activeCount.Load()),
		Pending:      e.sched.regs.Len(),
		Pooled:       e.pool.len(),
		Created:      e.created.Load(),
		Reused:       e.reused.Load(),
		Cycles:       e.sched.cycles.Load(),
		BehindCycles: e.sched.behindCycles.Load(),
	}
	if ns := e.sched.lastCycle.Load(); ns > 0 {
		s.LastCycle = time.Unix(0, ns)
	}
	return s
}

// HealthCheck reports an error when the engine is not running or its
// scheduler has not completed a cycle recently.
func (e *Engine) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !e.Running() {
		return ErrEngineStopped
	}

	ns := e.sched.lastCycle.Load()
	if ns == 0 {
		// Started but the first cycle has not finished yet.
		return nil
	}

	limit := 2*e.sched.rhythmDuration() + time.Second
	if since := time.Since(time.Unix(0, ns)); since > limit {
		return fmt.Errorf("refill scheduler stalled: last cycle %v ago", since.Round(time.Millisecond))
	}
	return nil
}
