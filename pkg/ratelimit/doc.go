// Package ratelimit paces resource consumption across many concurrent
// callers.
//
// # Overview
//
// The package provides two independent primitives:
//
//   - Token buckets, created by an Engine and refilled by its single
//     background scheduler goroutine
//   - SlidingWindow, a standalone counter over a fixed history of grant
//     timestamps
//
// # Token Buckets
//
// An Engine owns a refill scheduler and a pool of recycled bucket storage.
// Acquiring never involves the scheduler: a bucket's tokens live in one
// atomic word that callers debit with compare-and-swap.
//
//	engine, err := ratelimit.New()
//	if err != nil {
//	    return err
//	}
//	if err := engine.Start(); err != nil {
//	    return err
//	}
//	defer engine.Stop()
//
//	bucket, err := engine.Create(100, ratelimit.Seconds) // 100 units/sec
//	if err != nil {
//	    return err
//	}
//	defer bucket.Close()
//
//	if err := bucket.TryAcquire(1); err == nil {
//	    // Proceed
//	}
//
// Buckets start empty. Their capacity defaults to two scheduler cycles'
// worth of tokens with a floor of four, and SetCapacity overrides it.
//
// # Refill Cadence
//
// The scheduler visits every live bucket once per cycle ("rhythm"). Each new
// bucket proposes a rhythm of half its token interval; the engine adopts the
// smallest proposal, bounded below by the minimum rhythm. The rhythm never
// grows back on its own.
//
// Refill credits floor((now - checkpoint) * rate) tokens minus what was
// already credited since the checkpoint, so fractional accrual carries over
// between cycles. When a bucket reaches capacity its checkpoint moves to the
// current cycle.
//
// # Process-Wide Engine
//
// Create and Default use a lazily started process-wide engine for callers
// that do not manage one themselves. DestroySingleton stops it.
//
// # Sliding Window
//
//	window, err := ratelimit.NewSlidingWindow(10, time.Second) // 10/sec
//	if window.Allow(3) {
//	    // All three admitted
//	}
//
// # Thread Safety
//
// Engine and Bucket are safe for concurrent use. SlidingWindow is not; use
// SyncSlidingWindow to share one.
package ratelimit
