package history

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultMaxEntries bounds a MemoryStore created with a zero limit.
const DefaultMaxEntries = 10000

// MemoryStore keeps the most recent snapshots in memory. Once full, each
// Save evicts the oldest snapshot.
type MemoryStore struct {
	mu         sync.RWMutex
	snapshots  []*Snapshot
	maxEntries int
	nextID     int64
	closed     bool
}

// NewMemoryStore creates a store holding at most maxEntries snapshots.
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &MemoryStore{maxEntries: maxEntries}
}

// Save appends snap. A zero TakenAt is set to now.
func (m *MemoryStore) Save(ctx context.Context, snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if snap.TakenAt.IsZero() {
		snap.TakenAt = time.Now()
	}

	m.nextID++
	snap.ID = m.nextID

	if len(m.snapshots) >= m.maxEntries {
		copy(m.snapshots, m.snapshots[1:])
		m.snapshots = m.snapshots[:len(m.snapshots)-1]
	}
	stored := *snap
	m.snapshots = append(m.snapshots, &stored)
	return nil
}

// List returns matching snapshots, newest first.
func (m *MemoryStore) List(ctx context.Context, q Query) ([]*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	var out []*Snapshot
	for i := len(m.snapshots) - 1; i >= 0; i-- {
		s := m.snapshots[i]
		if !q.matches(s) {
			continue
		}
		c := *s
		out = append(out, &c)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

// Cleanup removes snapshots taken before olderThan.
func (m *MemoryStore) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}

	kept := m.snapshots[:0]
	for _, s := range m.snapshots {
		if !s.TakenAt.Before(olderThan) {
			kept = append(kept, s)
		}
	}
	removed := len(m.snapshots) - len(kept)
	clear(m.snapshots[len(kept):])
	m.snapshots = kept
	return removed, nil
}

// Len returns the number of stored snapshots.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.snapshots)
}

// Close drops every snapshot. Closing twice is a no-op.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.snapshots = nil
	return nil
}
