package ratelimit

import (
	"sync/atomic"
	"time"
)

// clock reports microseconds elapsed since the engine was built. Readings
// never regress: a source that steps backwards is clamped to the largest
// value already observed.
type clock struct {
	start  time.Time
	source func() time.Time
	last   atomic.Uint64
}

func newClock(source func() time.Time) *clock {
	if source == nil {
		source = time.Now
	}
	return &clock{start: source(), source: source}
}

func (c *clock) now() uint64 {
	d := c.source().Sub(c.start)
	if d < 0 {
		d = 0
	}
	us := uint64(d / time.Microsecond)

	for {
		last := c.last.Load()
		if us <= last {
			return last
		}
		if c.last.CompareAndSwap(last, us) {
			return us
		}
	}
}
