package ratelimit

import (
	"log/slog"
	"sync/atomic"
	"time"

	"mercator-hq/ratecontrol/internal/bucket"
	"mercator-hq/ratecontrol/internal/queue"
)

// scheduler is the single goroutine that refills every live bucket of an
// engine.
//
// New buckets reach it through a lock-free registration queue. The active
// slice is owned by the scheduler goroutine alone: it is only touched from
// run, and by Engine.Stop after run has returned.
type scheduler struct {
	regs    *queue.Queue[bucket.State]
	active  []*bucket.State
	pool    *pool
	clock   *clock
	metrics *Metrics
	logger  *slog.Logger

	rhythm    atomic.Int64 // microseconds
	minRhythm atomic.Int64 // microseconds
	maxRhythm int64        // microseconds

	wake chan struct{}
	stop chan struct{}
	done chan struct{}

	cycles       atomic.Uint64
	behindCycles atomic.Uint64
	activeCount  atomic.Int64
	lastCycle    atomic.Int64 // unix nanoseconds
}

func newScheduler(p *pool, c *clock, m *Metrics, logger *slog.Logger, minRhythm, maxRhythm time.Duration) *scheduler {
	s := &scheduler{
		regs:      queue.New[bucket.State](),
		pool:      p,
		clock:     c,
		metrics:   m,
		logger:    logger,
		maxRhythm: maxRhythm.Microseconds(),
		wake:      make(chan struct{}, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	s.minRhythm.Store(minRhythm.Microseconds())
	s.rhythm.Store(s.maxRhythm)
	m.RecordRhythm(maxRhythm)
	return s
}

// register hands freshly reset storage to the scheduler.
func (s *scheduler) register(st *bucket.State) {
	s.regs.Enqueue(st)
}

// lowerRhythm moves the rhythm down to candidate, never below the floor and
// never up. It returns the resulting rhythm and whether it changed.
func (s *scheduler) lowerRhythm(candidate int64) (int64, bool) {
	for {
		current := s.rhythm.Load()
		next := min(current, candidate)
		next = max(next, s.minRhythm.Load())
		if next >= current {
			return current, false
		}
		if s.rhythm.CompareAndSwap(current, next) {
			s.metrics.RecordRhythm(time.Duration(next) * time.Microsecond)
			s.signal()
			return next, true
		}
	}
}

// setMinRhythm changes the floor. A rhythm already below the new floor is
// raised to it.
func (s *scheduler) setMinRhythm(floor int64) {
	s.minRhythm.Store(floor)
	for {
		current := s.rhythm.Load()
		if current >= floor {
			return
		}
		if s.rhythm.CompareAndSwap(current, floor) {
			s.metrics.RecordRhythm(time.Duration(floor) * time.Microsecond)
			return
		}
	}
}

func (s *scheduler) rhythmDuration() time.Duration {
	return time.Duration(s.rhythm.Load()) * time.Microsecond
}

// signal interrupts the current sleep. A pending signal is enough; extra
// signals are dropped.
func (s *scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *scheduler) run() {
	defer close(s.done)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	s.logger.Debug("refill scheduler started", "rhythm", s.rhythmDuration())

	for {
		select {
		case <-s.stop:
			return
		default:
		}

		start := time.Now()
		refilled, evicted := s.cycle(s.clock.now())
		elapsed := time.Since(start)

		rhythm := s.rhythmDuration()
		behind := elapsed >= rhythm

		s.cycles.Add(1)
		s.lastCycle.Store(time.Now().UnixNano())
		if behind {
			s.behindCycles.Add(1)
		}
		s.metrics.RecordCycle(elapsed, len(s.active), s.pool.len(), refilled, evicted, behind)

		if behind {
			continue
		}

		timer.Reset(rhythm - elapsed)
		select {
		case <-s.stop:
			return
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// cycle visits every registered bucket once at time now. Invalid buckets are
// swap-removed and pooled, valid ones refilled.
func (s *scheduler) cycle(now uint64) (refilled uint64, evicted int) {
	s.regs.Drain(func(st *bucket.State) {
		s.active = append(s.active, st)
	})

	for i := 0; i < len(s.active); {
		st := s.active[i]
		if !st.Valid() {
			last := len(s.active) - 1
			s.active[i] = s.active[last]
			s.active[last] = nil
			s.active = s.active[:last]
			s.pool.put(st)
			evicted++
			continue
		}
		refilled += uint64(st.Refill(now))
		i++
	}

	s.activeCount.Store(int64(len(s.active)))
	return refilled, evicted
}

// drain invalidates and drops every bucket the scheduler knows about. It
// must only run after the scheduler goroutine exited.
func (s *scheduler) drain() int {
	n := 0
	for _, st := range s.active {
		st.Invalidate()
		n++
	}
	clear(s.active)
	s.active = s.active[:0]

	n += s.regs.Drain(func(st *bucket.State) {
		st.Invalidate()
	})

	s.activeCount.Store(0)
	return n
}
