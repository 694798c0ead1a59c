// Package sessiondb owns the embedded SQL schema for imported agent
// transcripts, install-state mirrors, and the observability log stream,
// per spec.md §4.I.
package sessiondb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps a connection to one session database.
type DB struct {
	*sql.DB
	path string
}

// Open creates (if needed) and opens the database at path, applying the
// WAL/synchronous/foreign_keys pragmas and running migrations, per
// spec.md §4.I. Each call returns its own connection; callers own the
// returned *DB and should Close it when done.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA cache_size=-65536",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("applying %q: %w", p, err)
		}
	}

	db := &DB{DB: conn, path: path}
	if err := migrate(db); err != nil {
		conn.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// Path returns the on-disk location of the database file.
func (db *DB) Path() string { return db.path }
