package sessiondb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UpsertProject returns the existing project id for (provider, projectDir)
// or creates a new one.
func (db *DB) UpsertProject(provider, projectDir, displayName string) (string, error) {
	var id string
	err := db.QueryRow(`SELECT id FROM projects WHERE provider = ? AND project_dir = ?`, provider, projectDir).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("looking up project: %w", err)
	}

	id = uuid.NewString()
	_, err = db.Exec(`
		INSERT INTO projects (id, provider, project_dir, display_name, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, provider, projectDir, displayName, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("creating project: %w", err)
	}
	return id, nil
}

// SessionExists reports whether (provider, providerSessionID) has already
// been imported, per spec.md §4.I's dedup rule.
func (db *DB) SessionExists(provider, providerSessionID string) (bool, error) {
	var n int
	err := db.QueryRow(`SELECT count(*) FROM sessions WHERE provider = ? AND provider_session_id = ?`, provider, providerSessionID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// InsertSession persists a session and its turns in one transaction,
// updating turn_count/total_cost_usd from the turns given.
func (db *DB) InsertSession(s Session, turns []Turn) (string, error) {
	tx, err := db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if s.ID == "" {
		s.ID = uuid.NewString()
	}

	var totalCost float64
	for _, t := range turns {
		totalCost += t.CostUSD
	}

	_, err = tx.Exec(`
		INSERT INTO sessions (id, project_id, provider, provider_session_id, title, model, cwd,
		                       started_at, ended_at, turn_count, total_cost_usd, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, nullableString(s.ProjectID), s.Provider, s.ProviderSessionID, nullableString(s.Title),
		nullableString(s.Model), nullableString(s.Cwd), formatTime(s.StartedAt), formatTime(s.EndedAt),
		len(turns), totalCost, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("inserting session: %w", err)
	}

	for i, t := range turns {
		t.SessionID = s.ID
		if t.TurnNumber == 0 {
			t.TurnNumber = i + 1
		}
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		toolsJSON, err := json.Marshal(t.ToolsUsed)
		if err != nil {
			return "", fmt.Errorf("encoding tools_used: %w", err)
		}
		_, err = tx.Exec(`
			INSERT INTO turns (id, session_id, turn_number, role, user_text, assistant_text,
			                    input_tokens, output_tokens, cache_read_tokens, cost_usd, tools_used, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, t.ID, t.SessionID, t.TurnNumber, t.Role, nullableString(t.UserText), nullableString(t.AssistantText),
			t.InputTokens, t.OutputTokens, t.CacheReadTokens, t.CostUSD, string(toolsJSON),
			time.Now().UTC().Format(time.RFC3339))
		if err != nil {
			return "", fmt.Errorf("inserting turn %d: %w", t.TurnNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return s.ID, nil
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// PackageRecord mirrors an on-disk installed package for historical
// reporting, per spec.md §3's Session DB entities.
type PackageRecord struct {
	ID          string
	Kind        string
	Name        string
	Version     string
	Source      string
	InstalledAt time.Time
	DependsOn   []string
}

// UpsertPackage records or updates a package's install-state mirror row.
func (db *DB) UpsertPackage(p PackageRecord) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO packages (id, kind, name, version, source, installed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			version = excluded.version, source = excluded.source, installed_at = excluded.installed_at
	`, p.ID, p.Kind, p.Name, p.Version, p.Source, p.InstalledAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upserting package: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM package_deps WHERE package_id = ?`, p.ID); err != nil {
		return fmt.Errorf("clearing package deps: %w", err)
	}
	for _, dep := range p.DependsOn {
		if _, err := tx.Exec(`INSERT INTO package_deps (package_id, depends_on_id) VALUES (?, ?)`, p.ID, dep); err != nil {
			return fmt.Errorf("inserting package dep: %w", err)
		}
	}

	return tx.Commit()
}

// DeletePackage removes a package's mirror row (its lockfile/deps cascade).
func (db *DB) DeletePackage(id string) error {
	_, err := db.Exec(`DELETE FROM packages WHERE id = ?`, id)
	return err
}
