package history

import (
	"context"
	"errors"
	"time"

	"mercator-hq/ratecontrol/pkg/ratelimit"
)

// ErrClosed is returned by a store used after Close.
var ErrClosed = errors.New("history store closed")

// Snapshot is one engine stats report.
type Snapshot struct {
	// ID is assigned by the store on Save.
	ID int64 `json:"id"`

	// RunID identifies the daemon run that took the snapshot.
	RunID string `json:"run_id"`

	// TakenAt is when the stats were read.
	TakenAt time.Time `json:"taken_at"`

	// Stats is the engine snapshot.
	Stats ratelimit.Stats `json:"stats"`
}

// Query selects snapshots. Zero fields do not filter.
type Query struct {
	// RunID restricts results to one run.
	RunID string

	// Since excludes snapshots taken before it.
	Since time.Time

	// Limit caps the number of results, newest first.
	Limit int
}

// Store persists snapshots. Implementations are safe for concurrent use.
type Store interface {
	// Save appends a snapshot and sets its ID.
	Save(ctx context.Context, snap *Snapshot) error

	// List returns matching snapshots, newest first.
	List(ctx context.Context, q Query) ([]*Snapshot, error)

	// Cleanup removes snapshots taken before olderThan and returns how
	// many were removed.
	Cleanup(ctx context.Context, olderThan time.Time) (int, error)

	// Close releases the store's resources.
	Close() error
}

func (q Query) matches(s *Snapshot) bool {
	if q.RunID != "" && s.RunID != q.RunID {
		return false
	}
	if !q.Since.IsZero() && s.TakenAt.Before(q.Since) {
		return false
	}
	return true
}
