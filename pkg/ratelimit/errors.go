package ratelimit

import "errors"

// Error types returned by buckets, sliding windows and the engine.
var (
	// ErrInsufficientTokens is returned by TryAcquire when the bucket holds
	// fewer tokens than requested. Callers retry or back off.
	ErrInsufficientTokens = errors.New("insufficient tokens")

	// ErrWouldBlock is returned by Acquire when the bucket was invalidated
	// while the caller waited for tokens.
	ErrWouldBlock = errors.New("would block: bucket invalidated")

	// ErrExceedsCapacity is returned when a request can never be satisfied
	// because it asks for more units than the limiter can hold.
	ErrExceedsCapacity = errors.New("request exceeds limiter capacity")

	// ErrWindowFull is returned by SlidingWindow.TryAcquire when the window
	// has no room for the requested batch.
	ErrWindowFull = errors.New("sliding window full")

	// ErrInvalidCount is returned when a sliding window is asked for zero units.
	ErrInvalidCount = errors.New("invalid unit count")

	// ErrReleased is returned when a released bucket handle is used.
	ErrReleased = errors.New("bucket released")

	// ErrInvalidRate is returned when a rate is not a positive finite number.
	ErrInvalidRate = errors.New("invalid rate")

	// ErrInvalidUnit is returned for an unknown time unit.
	ErrInvalidUnit = errors.New("invalid time unit")

	// ErrInvalidConfig is returned when engine or window settings are invalid.
	ErrInvalidConfig = errors.New("invalid rate limiter configuration")

	// ErrEngineStopped is returned when the engine is not running.
	ErrEngineStopped = errors.New("rate limit engine stopped")

	// ErrEngineRunning is returned when Start is called twice.
	ErrEngineRunning = errors.New("rate limit engine already running")
)
