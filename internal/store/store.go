// Package store opens the SQLite database shared by the learning, skill and
// self-modification engines. Each engine owns its tables and registers its
// DDL through Open; the store only handles the connection and pragmas.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// DBFile is the database filename inside the data directory.
const DBFile = "agi.db"

// TimeLayout is how timestamps are stored. Fixed-width UTC so that string
// comparison in SQL orders by time.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// Config holds store configuration.
type Config struct {
	DataDir string
}

// DB is the shared database handle.
type DB struct {
	*sql.DB
	path string
}

// Open creates the data directory if needed, opens the database and applies
// the given migrations in order. Every migration must be idempotent
// (CREATE ... IF NOT EXISTS).
func Open(cfg Config, migrations ...string) (*DB, error) {
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, DBFile)
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	// SQLite performance pragmas
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	s := &DB{DB: db, path: dbPath}
	if err := s.migrate(migrations...); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate runs DDL statements against an open database.
func (s *DB) migrate(migrations ...string) error {
	for i, m := range migrations {
		if _, err := s.Exec(m); err != nil {
			return fmt.Errorf("store: migration %d: %w", i, err)
		}
	}
	return nil
}

// Path returns the database file path.
func (s *DB) Path() string { return s.path }

// Now returns the current time formatted for storage.
func Now() string {
	return Format(timeNow())
}

// Format formats t for storage.
func Format(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a stored timestamp.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, s)
}

// timeNow is a package-level variable for testability.
var timeNow = time.Now
