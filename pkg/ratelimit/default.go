package ratelimit

import (
	"sync"
	"sync/atomic"
)

var (
	defaultEngine atomic.Pointer[Engine]
	defaultMu     sync.Mutex
)

// Default returns the process-wide engine, creating and starting it with
// default options on first use.
func Default() *Engine {
	if e := defaultEngine.Load(); e != nil {
		return e
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()

	if e := defaultEngine.Load(); e != nil {
		return e
	}

	e := newEngine(defaultOptions())
	// Without its scheduler no bucket of the default engine would refill.
	if err := e.Start(); err != nil {
		panic("ratelimit: failed to start default engine: " + err.Error())
	}
	defaultEngine.Store(e)
	return e
}

// Create returns a bucket from the process-wide engine.
func Create(rate float64, unit Unit) (*Bucket, error) {
	return Default().Create(rate, unit)
}

// DestroySingleton stops the process-wide engine, joining its scheduler and
// invalidating its buckets. The next call to Default or Create starts a new
// one.
//
// DestroySingleton must not race with goroutines still creating or using
// buckets of the process-wide engine.
func DestroySingleton() {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if e := defaultEngine.Swap(nil); e != nil {
		e.Stop()
	}
}
