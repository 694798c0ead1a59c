package sessiondb

import (
	"database/sql"
	"fmt"
)

// execer is satisfied by both *sql.DB and *sql.Tx, letting a migration's
// apply function run inside a transaction when possible.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// migration is a transformer that brings the database from version-1 to
// version. DDL-incompatible migrations (those touching virtual tables)
// set txUnsafe so they run outside a transaction.
type migration struct {
	version  int
	txUnsafe bool
	apply    func(execer) error
}

var migrations = []migration{
	{
		version:  1,
		txUnsafe: true, // CREATE VIRTUAL TABLE cannot run inside a transaction
		apply: func(e execer) error {
			_, err := e.Exec(schemaV1)
			return err
		},
	},
}

// migrate brings db up to SchemaVersion, running the full DDL on a fresh
// database or applying pending migrations in order otherwise, per
// spec.md §4.I.
func migrate(db *DB) error {
	hasTable, err := tableExists(db.DB, "schema_version")
	if err != nil {
		return err
	}

	current := 0
	if hasTable {
		row := db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1")
		if err := row.Scan(&current); err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := applyMigration(db.DB, m); err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
	}
	return nil
}

func applyMigration(db *sql.DB, m migration) error {
	if m.txUnsafe {
		if err := m.apply(db); err != nil {
			return err
		}
		_, err := db.Exec("INSERT INTO schema_version(version) VALUES (?)", m.version)
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := m.apply(tx); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_version(version) VALUES (?)", m.version); err != nil {
		return err
	}
	return tx.Commit()
}

func tableExists(db *sql.DB, name string) (bool, error) {
	var n int
	err := db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking table %q: %w", name, err)
	}
	return n > 0, nil
}
