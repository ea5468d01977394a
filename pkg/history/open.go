package history

import (
	"fmt"

	"mercator-hq/ratecontrol/pkg/config"
)

// Open creates the store selected by cfg. It returns a nil Store and nil
// error when the backend is "none" or empty.
func Open(cfg config.HistoryConfig) (Store, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "memory":
		return NewMemoryStore(cfg.MaxEntries), nil
	case "sqlite":
		s, err := NewSQLiteStore(SQLiteConfig{Path: cfg.Path, Driver: cfg.Driver})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.Backend)
	}
}
