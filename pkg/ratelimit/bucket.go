package ratelimit

import (
	"context"
	"runtime"
	"sync/atomic"

	"github.com/google/uuid"

	"mercator-hq/ratecontrol/internal/bucket"
)

// Bucket is a caller's handle on a token bucket created by an Engine.
//
// Acquiring only touches the bucket's atomic token word; the engine's
// scheduler refills it in the background. Release (or Close) gives the
// storage back to the engine. A handle that becomes unreachable without
// being released is released by the runtime.
//
// Bucket is safe for concurrent use.
type Bucket struct {
	id       uuid.UUID
	state    *bucket.State
	gen      uint32
	rate     float64 // units per microsecond
	released atomic.Bool
	cleanup  runtime.Cleanup
}

// owner identifies one generation of a bucket storage. It is what the
// runtime cleanup holds, so the cleanup never keeps the handle alive.
type owner struct {
	state *bucket.State
	gen   uint32
}

func newBucket(st *bucket.State, gen uint32, ratePerMicro float64) *Bucket {
	b := &Bucket{
		id:    uuid.New(),
		state: st,
		gen:   gen,
		rate:  ratePerMicro,
	}
	b.cleanup = runtime.AddCleanup(b, func(o owner) {
		o.state.InvalidateGeneration(o.gen)
	}, owner{state: st, gen: gen})
	return b
}

// ID returns the bucket's identifier, for log correlation.
func (b *Bucket) ID() uuid.UUID {
	return b.id
}

// TryAcquire takes n tokens if they are available. It never blocks.
// It returns ErrInsufficientTokens when fewer than n tokens are banked and
// ErrReleased once the handle was released.
func (b *Bucket) TryAcquire(n uint32) error {
	if b.released.Load() {
		return ErrReleased
	}
	switch b.state.TryTake(b.gen, n) {
	case bucket.Taken:
		return nil
	case bucket.Insufficient:
		return ErrInsufficientTokens
	default:
		return ErrReleased
	}
}

// Acquire takes n tokens, yielding the goroutine while the bucket is empty.
//
// It spins for as long as the bucket stays live: once the bucket is
// released or its engine stopped, Acquire returns ErrWouldBlock. A request
// larger than the capacity returns ErrExceedsCapacity instead of spinning
// forever; the capacity is read on each retry, so a SetCapacity that raises
// it after the call has returned does not undo that error. Use
// AcquireContext to bound the wait.
func (b *Bucket) Acquire(n uint32) error {
	return b.AcquireContext(context.Background(), n)
}

// AcquireContext is Acquire with an escape hatch: it also returns ctx.Err()
// once ctx is done.
func (b *Bucket) AcquireContext(ctx context.Context, n uint32) error {
	done := ctx.Done()

	for {
		err := b.TryAcquire(n)
		if err == nil {
			return nil
		}
		if err == ErrReleased || !b.live() {
			return ErrWouldBlock
		}
		if n > b.state.Capacity() {
			return ErrExceedsCapacity
		}

		if done != nil {
			select {
			case <-done:
				return ctx.Err()
			default:
			}
		}
		runtime.Gosched()
	}
}

// live reports whether this generation still owns a refillable storage.
func (b *Bucket) live() bool {
	return b.state.Valid() && b.state.Generation() == b.gen
}

// Release invalidates the bucket. The engine recycles its storage on the
// next refill cycle. Releasing twice is a no-op.
func (b *Bucket) Release() {
	if !b.released.CompareAndSwap(false, true) {
		return
	}
	b.cleanup.Stop()
	b.state.InvalidateGeneration(b.gen)
}

// Close releases the bucket. It always returns nil.
func (b *Bucket) Close() error {
	b.Release()
	return nil
}

// SetCapacity changes the maximum number of banked tokens. Tokens above a
// lowered capacity are trimmed by the next refill cycle.
func (b *Bucket) SetCapacity(n uint32) {
	if b.released.Load() || b.state.Generation() != b.gen {
		return
	}
	b.state.SetCapacity(n)
}

// Capacity returns the maximum number of banked tokens.
func (b *Bucket) Capacity() uint32 {
	return b.state.Capacity()
}

// Tokens returns a coarse snapshot of the banked tokens. Use it for
// monitoring, never to decide whether TryAcquire will succeed.
func (b *Bucket) Tokens() uint32 {
	if b.state.Generation() != b.gen {
		return 0
	}
	return b.state.Tokens()
}

// Rate returns the refill rate in units per second.
func (b *Bucket) Rate() float64 {
	return b.rate * 1e6
}

// Valid reports whether the bucket is still live and refilled.
func (b *Bucket) Valid() bool {
	return !b.released.Load() && b.live()
}
