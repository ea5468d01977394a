package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// SlidingWindow admits at most Capacity units within any trailing window.
//
// It keeps the timestamp of every admitted unit in a fixed circular buffer.
// head and tail are ever-increasing cursors; head-tail units are on record
// and tail <= head <= tail+capacity always holds.
//
// # Algorithm
//
//  1. If the buffer has room for n more units, record them
//  2. Otherwise scan forward from tail, counting units older than the window
//  3. If n expired units are found before the first fresh one, drop them and
//     record the new ones
//  4. Otherwise reject the whole batch without touching any state
//
// A unit exactly one window old is still fresh; only strictly older units
// expire.
//
// # Thread Safety
//
// SlidingWindow is not safe for concurrent use. Wrap it in a
// SyncSlidingWindow to share it between goroutines.
type SlidingWindow struct {
	slots    []time.Time
	head     uint64
	tail     uint64
	capacity uint32
	window   time.Duration
	now      func() time.Time
}

// NewSlidingWindow creates a window admitting capacity units per window.
//
// Example:
//
//	// 10 requests per second
//	sw, err := NewSlidingWindow(10, time.Second)
func NewSlidingWindow(capacity uint32, window time.Duration) (*SlidingWindow, error) {
	sw := &SlidingWindow{now: time.Now}
	if err := sw.Configure(capacity, window); err != nil {
		return nil, err
	}
	return sw, nil
}

// Configure changes capacity and window and forgets every recorded unit.
func (sw *SlidingWindow) Configure(capacity uint32, window time.Duration) error {
	if capacity == 0 {
		return fmt.Errorf("%w: sliding window capacity must be positive", ErrInvalidConfig)
	}
	if window <= 0 {
		return fmt.Errorf("%w: sliding window duration must be positive, got %v", ErrInvalidConfig, window)
	}

	sw.slots = make([]time.Time, capacity)
	sw.capacity = capacity
	sw.window = window
	sw.head = 0
	sw.tail = 0
	if sw.now == nil {
		sw.now = time.Now
	}
	return nil
}

// TryAcquire admits n units or none.
//
// It returns ErrInvalidCount for n == 0, ErrExceedsCapacity when n can
// never fit, and ErrWindowFull when the window is currently saturated.
func (sw *SlidingWindow) TryAcquire(n uint32) error {
	if n == 0 {
		return ErrInvalidCount
	}
	if n > sw.capacity {
		return ErrExceedsCapacity
	}

	now := sw.now()
	want := uint64(n)

	if sw.head+want <= sw.tail+uint64(sw.capacity) {
		sw.record(now, want)
		return nil
	}

	var expired uint64
	for i := sw.tail; i < sw.head && expired < want; i++ {
		if now.Sub(sw.slots[i%uint64(sw.capacity)]) <= sw.window {
			break
		}
		expired++
	}
	if expired < want {
		return ErrWindowFull
	}

	sw.tail += want
	sw.record(now, want)
	return nil
}

func (sw *SlidingWindow) record(now time.Time, n uint64) {
	c := uint64(sw.capacity)
	for i := uint64(0); i < n; i++ {
		sw.slots[sw.head%c] = now
		sw.head++
	}
}

// Allow reports whether n units were admitted.
func (sw *SlidingWindow) Allow(n uint32) bool {
	return sw.TryAcquire(n) == nil
}

// Len returns the number of units on record. Expired units stay on record
// until a later TryAcquire drops them.
func (sw *SlidingWindow) Len() int {
	return int(sw.head - sw.tail)
}

// Capacity returns the maximum number of units per window.
func (sw *SlidingWindow) Capacity() uint32 {
	return sw.capacity
}

// Window returns the window duration.
func (sw *SlidingWindow) Window() time.Duration {
	return sw.window
}

// Reset forgets every recorded unit.
func (sw *SlidingWindow) Reset() {
	clear(sw.slots)
	sw.head = 0
	sw.tail = 0
}

// SyncSlidingWindow is a SlidingWindow guarded by a mutex.
type SyncSlidingWindow struct {
	mu sync.Mutex
	sw *SlidingWindow
}

// NewSyncSlidingWindow creates a SlidingWindow safe for concurrent use.
func NewSyncSlidingWindow(capacity uint32, window time.Duration) (*SyncSlidingWindow, error) {
	sw, err := NewSlidingWindow(capacity, window)
	if err != nil {
		return nil, err
	}
	return &SyncSlidingWindow{sw: sw}, nil
}

// Configure changes capacity and window and forgets every recorded unit.
func (s *SyncSlidingWindow) Configure(capacity uint32, window time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sw.Configure(capacity, window)
}

// TryAcquire admits n units or none.
func (s *SyncSlidingWindow) TryAcquire(n uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sw.TryAcquire(n)
}

// Allow reports whether n units were admitted.
func (s *SyncSlidingWindow) Allow(n uint32) bool {
	return s.TryAcquire(n) == nil
}

// Len returns the number of units on record.
func (s *SyncSlidingWindow) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sw.Len()
}

// Capacity returns the maximum number of units per window.
func (s *SyncSlidingWindow) Capacity() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sw.Capacity()
}

// Window returns the window duration.
func (s *SyncSlidingWindow) Window() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sw.Window()
}

// Reset forgets every recorded unit.
func (s *SyncSlidingWindow) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sw.Reset()
}
