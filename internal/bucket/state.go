// Package bucket holds the storage behind a token bucket.
//
// State splits its mutators by caller. The refill scheduler is the only
// goroutine allowed to call Refill, and it owns the checkpoint, credited and
// rate fields outright. Acquiring callers only ever go through TryTake, which
// debits the shared token word with compare-and-swap. Reset is reserved for
// the engine while the state is detached from the scheduler (freshly
// allocated or just taken from the pool).
//
// The token count lives in the low 32 bits of a 64-bit atomic word whose high
// 32 bits carry a generation number. Reset bumps the generation, so a handle
// that outlived its bucket fails its CAS instead of debiting the next owner.
package bucket

import (
	"math"
	"sync/atomic"
)

// Result is the outcome of a TryTake call.
type Result int

const (
	// Taken means the requested tokens were debited.
	Taken Result = iota

	// Insufficient means the bucket holds fewer tokens than requested.
	Insufficient

	// Stale means the caller's generation no longer owns this storage.
	Stale
)

// String returns a readable name for the result.
func (r Result) String() string {
	switch r {
	case Taken:
		return "taken"
	case Insufficient:
		return "insufficient"
	case Stale:
		return "stale"
	default:
		return "unknown"
	}
}

// State is the storage of a single token bucket.
type State struct {
	word     atomic.Uint64 // generation<<32 | tokens
	capacity atomic.Uint32
	valid    atomic.Bool

	// Owned by the scheduler once the state is registered.
	ratePerMicro float64
	checkpoint   uint64 // microseconds
	credited     uint64 // whole tokens applied since checkpoint
}

// New allocates an empty, invalid state.
func New() *State {
	return &State{}
}

func pack(gen, tokens uint32) uint64 {
	return uint64(gen)<<32 | uint64(tokens)
}

func unpack(w uint64) (gen, tokens uint32) {
	return uint32(w >> 32), uint32(w)
}

// Reset prepares the state for a new owner and returns the new generation.
// The bucket starts empty with its checkpoint at now.
//
// Reset must not be called while the scheduler can reach the state.
func (s *State) Reset(ratePerMicro float64, capacity uint32, now uint64) uint32 {
	gen, _ := unpack(s.word.Load())
	gen++

	s.ratePerMicro = ratePerMicro
	s.checkpoint = now
	s.credited = 0
	s.capacity.Store(capacity)
	s.word.Store(pack(gen, 0))
	s.valid.Store(true)

	return gen
}

// TryTake debits n tokens if generation gen still owns the state and at
// least n tokens are banked. It never blocks; it only retries when another
// goroutine changed the word between the load and the swap.
func (s *State) TryTake(gen, n uint32) Result {
	for {
		w := s.word.Load()
		g, tokens := unpack(w)
		if g != gen {
			return Stale
		}
		if n > tokens {
			return Insufficient
		}
		if n == 0 {
			return Taken
		}
		if s.word.CompareAndSwap(w, pack(g, tokens-n)) {
			return Taken
		}
	}
}

// Refill credits the tokens accrued since the last checkpoint and returns
// how many were added.
//
// Accrual is floor((now - checkpoint) * rate). The difference to what was
// already credited is applied whenever accrued >= credited; an equal value
// applies a zero delta but still enforces the capacity, so a lowered capacity
// takes effect on the next cycle. The sub-token remainder is never dropped
// because it stays implicit in the time elapsed since the checkpoint.
// Reaching capacity moves the checkpoint to now and clears the credited
// count, so accrual restarts from the full bucket.
//
// Only the scheduler goroutine may call Refill.
func (s *State) Refill(now uint64) uint32 {
	if now < s.checkpoint {
		return 0
	}

	accrued := accrue(now-s.checkpoint, s.ratePerMicro)
	if accrued < s.credited {
		return 0
	}
	delta := accrued - s.credited
	s.credited = accrued

	capacity := uint64(s.capacity.Load())
	for {
		w := s.word.Load()
		g, tokens := unpack(w)

		// delta may be close to 2^64 when accrual saturates, so compare
		// against the free room instead of summing first.
		next := uint64(tokens) + delta
		capped := false
		if uint64(tokens) > capacity || delta > capacity-uint64(tokens) {
			next = capacity
			capped = true
		}

		if next != uint64(tokens) && !s.word.CompareAndSwap(w, pack(g, uint32(next))) {
			continue
		}

		if capped {
			s.checkpoint = now
			s.credited = 0
		}
		if next > uint64(tokens) {
			return uint32(next - uint64(tokens))
		}
		return 0
	}
}

func accrue(elapsed uint64, ratePerMicro float64) uint64 {
	v := float64(elapsed) * ratePerMicro
	if v >= math.MaxUint64 {
		return math.MaxUint64
	}
	return uint64(v)
}

// Invalidate clears the valid flag. It returns false if the state was
// already invalid.
func (s *State) Invalidate() bool {
	return s.valid.CompareAndSwap(true, false)
}

// InvalidateGeneration clears the valid flag only while gen still owns the
// state.
func (s *State) InvalidateGeneration(gen uint32) bool {
	if s.Generation() != gen {
		return false
	}
	return s.Invalidate()
}

// Valid reports whether the state is live and refillable.
func (s *State) Valid() bool {
	return s.valid.Load()
}

// Generation returns the current owner generation.
func (s *State) Generation() uint32 {
	g, _ := unpack(s.word.Load())
	return g
}

// Tokens returns a snapshot of the banked token count.
func (s *State) Tokens() uint32 {
	_, tokens := unpack(s.word.Load())
	return tokens
}

// Capacity returns the current capacity.
func (s *State) Capacity() uint32 {
	return s.capacity.Load()
}

// SetCapacity changes the capacity. Tokens already banked above the new
// capacity are trimmed by the next refill, not immediately.
func (s *State) SetCapacity(n uint32) {
	s.capacity.Store(n)
}
