// Package durablestore is the badger-backed persistence layer behind
// quota configuration and IMC region/group records: the only state
// that must survive a restart. Accounting counters are
// rebuilt from the filesystem by rescan and are never persisted here.
package durablestore

import (
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/dtn-bard/bard/internal/logger"
)

// Store wraps a BadgerDB instance with the two-table key namespace: one
// prefix for quota records, one for IMC region/group records.
type Store struct {
	db *badgerdb.DB
}

// Open opens (creating if absent) a badger database at path. Badger's
// own internal logger is bridged onto the daemon's structured logger
// so storage-engine diagnostics show up alongside application logs.
func Open(path string) (*Store, error) {
	opts := badgerdb.DefaultOptions(path).WithLogger(badgerLoggerAdapter{})
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("durablestore: opening %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunValueLogGC triggers badger's value-log garbage collection once,
// as routine housekeeping; returns nil if nothing was
// collected (badgerdb.ErrNoRewrite).
func (s *Store) RunValueLogGC(discardRatio float64) error {
	err := s.db.RunValueLogGC(discardRatio)
	if err != nil && err != badgerdb.ErrNoRewrite {
		return err
	}
	return nil
}

// badgerLoggerAdapter routes badger's Errorf/Warningf/Infof/Debugf
// calls through the daemon's slog-based logger.
type badgerLoggerAdapter struct{}

func (badgerLoggerAdapter) Errorf(format string, args ...any)   { logger.Errorf(format, args...) }
func (badgerLoggerAdapter) Warningf(format string, args ...any) { logger.Warnf(format, args...) }
func (badgerLoggerAdapter) Infof(format string, args ...any)    { logger.Infof(format, args...) }
func (badgerLoggerAdapter) Debugf(format string, args ...any)   { logger.Debugf(format, args...) }
