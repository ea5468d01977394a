package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // cgo SQLite driver, "sqlite3"
	_ "modernc.org/sqlite"          // pure Go SQLite driver, "sqlite"
)

// SQLite driver names.
const (
	DriverModernc = "sqlite"
	DriverCgo     = "sqlite3"
)

// SQLiteConfig configures a SQLiteStore.
type SQLiteConfig struct {
	// Path is the database file. ":memory:" keeps it in memory.
	Path string

	// Driver is DriverModernc or DriverCgo.
	// Default: DriverModernc
	Driver string

	// BusyTimeout is how long to wait for a locked database.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// CheckpointInterval is how often the WAL is checkpointed.
	// Default: 5 minutes
	CheckpointInterval time.Duration
}

// SQLiteStore implements Store on a SQLite database in WAL mode.
type SQLiteStore struct {
	db        *sql.DB
	path      string
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.RWMutex
	closed bool

	saveStmt    *sql.Stmt
	cleanupStmt *sql.Stmt
}

// NewSQLiteStore opens or creates the database at cfg.Path.
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverModernc
	}
	if cfg.Driver != DriverModernc && cfg.Driver != DriverCgo {
		return nil, fmt.Errorf("unknown sqlite driver %q: must be %q or %q", cfg.Driver, DriverModernc, DriverCgo)
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.CheckpointInterval == 0 {
		cfg.CheckpointInterval = 5 * time.Minute
	}

	db, err := sql.Open(cfg.Driver, cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer; one long-lived connection also
	// keeps the pragmas below in effect.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{
		db:   db,
		path: cfg.Path,
		done: make(chan struct{}),
	}

	if err := s.init(cfg.BusyTimeout); err != nil {
		db.Close()
		return nil, err
	}

	go s.checkpointLoop(cfg.CheckpointInterval)

	return s, nil
}

func (s *SQLiteStore) init(busyTimeout time.Duration) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout.Milliseconds()),
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		taken_at INTEGER NOT NULL,
		stats TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_taken_at ON snapshots(taken_at);
	CREATE INDEX IF NOT EXISTS idx_snapshots_run_id ON snapshots(run_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	var err error
	s.saveStmt, err = s.db.Prepare(`INSERT INTO snapshots (run_id, taken_at, stats) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare save statement: %w", err)
	}
	s.cleanupStmt, err = s.db.Prepare(`DELETE FROM snapshots WHERE taken_at < ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare cleanup statement: %w", err)
	}
	return nil
}

// Save appends snap. A zero TakenAt is set to now.
func (s *SQLiteStore) Save(ctx context.Context, snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot cannot be nil")
	}
	if snap.TakenAt.IsZero() {
		snap.TakenAt = time.Now()
	}

	stats, err := json.Marshal(snap.Stats)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	res, err := s.saveStmt.ExecContext(ctx, snap.RunID, snap.TakenAt.UnixNano(), string(stats))
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read snapshot id: %w", err)
	}
	snap.ID = id
	return nil
}

// List returns matching snapshots, newest first.
func (s *SQLiteStore) List(ctx context.Context, q Query) ([]*Snapshot, error) {
	var (
		where []string
		args  []any
	)
	if q.RunID != "" {
		where = append(where, "run_id = ?")
		args = append(args, q.RunID)
	}
	if !q.Since.IsZero() {
		where = append(where, "taken_at >= ?")
		args = append(args, q.Since.UnixNano())
	}

	query := "SELECT id, run_id, taken_at, stats FROM snapshots"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY taken_at DESC, id DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var out []*Snapshot
	for rows.Next() {
		var (
			snap    Snapshot
			takenAt int64
			stats   string
		)
		if err := rows.Scan(&snap.ID, &snap.RunID, &takenAt, &stats); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(stats), &snap.Stats); err != nil {
			return nil, fmt.Errorf("failed to unmarshal stats of snapshot %d: %w", snap.ID, err)
		}
		snap.TakenAt = time.Unix(0, takenAt)
		out = append(out, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// Cleanup removes snapshots taken before olderThan.
func (s *SQLiteStore) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	res, err := s.cleanupStmt.ExecContext(ctx, olderThan.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(deleted), nil
}

// Close checkpoints the WAL and closes the database. Close is idempotent.
func (s *SQLiteStore) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		close(s.done)

		s.mu.Lock()
		defer s.mu.Unlock()
		s.closed = true

		if s.saveStmt != nil {
			s.saveStmt.Close()
		}
		if s.cleanupStmt != nil {
			s.cleanupStmt.Close()
		}
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		closeErr = s.db.Close()
	})

	return closeErr
}

// checkpointLoop runs periodic passive WAL checkpoints.
func (s *SQLiteStore) checkpointLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.RLock()
			if !s.closed {
				_, _ = s.db.Exec("PRAGMA wal_checkpoint(PASSIVE)")
			}
			s.mu.RUnlock()
		case <-s.done:
			return
		}
	}
}
