package ratelimit

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Unit is the time unit a bucket rate is expressed in.
type Unit int

const (
	// Seconds means the rate is units per second.
	Seconds Unit = iota

	// Milliseconds means the rate is units per millisecond.
	Milliseconds

	// Microseconds means the rate is units per microsecond.
	Microseconds
)

// String returns the unit name as accepted by ParseUnit.
func (u Unit) String() string {
	switch u {
	case Seconds:
		return "s"
	case Milliseconds:
		return "ms"
	case Microseconds:
		return "us"
	default:
		return fmt.Sprintf("Unit(%d)", int(u))
	}
}

// Valid reports whether u is one of the defined units.
func (u Unit) Valid() bool {
	return u == Seconds || u == Milliseconds || u == Microseconds
}

// micros returns the length of one unit in microseconds.
func (u Unit) micros() float64 {
	switch u {
	case Milliseconds:
		return 1e3
	case Microseconds:
		return 1
	default:
		return 1e6
	}
}

// ParseUnit parses a unit name. Accepted values (case-insensitive):
// "s", "sec", "second", "seconds", "ms", "millisecond", "milliseconds",
// "us", "µs", "microsecond", "microseconds".
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "s", "sec", "second", "seconds":
		return Seconds, nil
	case "ms", "millisecond", "milliseconds":
		return Milliseconds, nil
	case "us", "µs", "microsecond", "microseconds":
		return Microseconds, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidUnit, s)
	}
}

// perMicro converts rate units per u into units per microsecond.
func perMicro(rate float64, u Unit) (float64, error) {
	if !u.Valid() {
		return 0, fmt.Errorf("%w: %v", ErrInvalidUnit, u)
	}
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidRate, rate)
	}
	r := rate / u.micros()
	if r == 0 || math.IsInf(r, 0) {
		return 0, fmt.Errorf("%w: %v per %v", ErrInvalidRate, rate, u)
	}
	return r, nil
}

// Stats is a point-in-time snapshot of an engine.
type Stats struct {
	// Running reports whether the scheduler goroutine is active.
	Running bool `json:"running"`

	// Rhythm is the current scheduler cycle length.
	Rhythm time.Duration `json:"rhythm"`

	// Active is the number of buckets the scheduler visited in its last cycle.
	Active int `json:"active"`

	// Pending is the number of buckets waiting to join the active set.
	Pending int `json:"pending"`

	// Pooled is the number of bucket storages waiting for reuse.
	Pooled int `json:"pooled"`

	// Created counts buckets handed out since start.
	Created uint64 `json:"created"`

	// Reused counts created buckets that came from the pool.
	Reused uint64 `json:"reused"`

	// Cycles counts completed scheduler cycles.
	Cycles uint64 `json:"cycles"`

	// BehindCycles counts cycles that overran the rhythm.
	BehindCycles uint64 `json:"behind_cycles"`

	// LastCycle is when the scheduler last finished a cycle.
	LastCycle time.Time `json:"last_cycle"`
}
