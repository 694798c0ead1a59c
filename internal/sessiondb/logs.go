package sessiondb

import (
	"fmt"
	"strings"
	"time"
)

// LogEvent is one observability event recorded via StoreLogEvent.
type LogEvent struct {
	Timestamp  time.Time
	Source     string
	Level      string
	Type       string
	Provider   string
	SessionID  string
	TerminalID string
	DurationMs int64
	Payload    string // raw JSON
}

// StoreLogEvent inserts e into the logs table.
func (db *DB) StoreLogEvent(e LogEvent) error {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := db.Exec(`
		INSERT INTO logs (timestamp, source, level, type, provider, session_id, terminal_id, duration_ms, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ts.Format(time.RFC3339), e.Source, e.Level, e.Type,
		nullableString(e.Provider), nullableString(e.SessionID), nullableString(e.TerminalID),
		nullableInt64(e.DurationMs), e.Payload)
	if err != nil {
		return fmt.Errorf("storing log event: %w", err)
	}
	return nil
}

// LogFilter narrows QueryLogs to a subset of recorded events.
type LogFilter struct {
	Since         time.Time
	Until         time.Time
	Source        string
	Level         string
	Type          string
	Provider      string
	SessionID     string
	TerminalID    string
	Contains      string // substring match over payload
	SlowOnly      bool
	SlowThreshold int64 // ms; active when SlowOnly is set
	Limit         int
	Offset        int
}

// QueryLogs returns events matching filter, ordered newest first, per
// spec.md §4.I.
func (db *DB) QueryLogs(f LogFilter) ([]LogEvent, error) {
	var where []string
	var args []any

	if !f.Since.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, f.Since.UTC().Format(time.RFC3339))
	}
	if !f.Until.IsZero() {
		where = append(where, "timestamp <= ?")
		args = append(args, f.Until.UTC().Format(time.RFC3339))
	}
	for col, val := range map[string]string{
		"source": f.Source, "level": f.Level, "type": f.Type,
		"provider": f.Provider, "session_id": f.SessionID, "terminal_id": f.TerminalID,
	} {
		if val != "" {
			where = append(where, col+" = ?")
			args = append(args, val)
		}
	}
	if f.Contains != "" {
		where = append(where, "payload LIKE ?")
		args = append(args, "%"+f.Contains+"%")
	}
	if f.SlowOnly {
		where = append(where, "duration_ms >= ?")
		args = append(args, f.SlowThreshold)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	query := "SELECT timestamp, source, level, type, provider, session_id, terminal_id, duration_ms, payload FROM logs"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp DESC LIMIT ? OFFSET ?"
	args = append(args, limit, f.Offset)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying logs: %w", err)
	}
	defer rows.Close()

	var events []LogEvent
	for rows.Next() {
		var e LogEvent
		var ts string
		var provider, sessionID, terminalID *string
		var duration *int64
		if err := rows.Scan(&ts, &e.Source, &e.Level, &e.Type, &provider, &sessionID, &terminalID, &duration, &e.Payload); err != nil {
			return nil, err
		}
		e.Timestamp, _ = time.Parse(time.RFC3339, ts)
		if provider != nil {
			e.Provider = *provider
		}
		if sessionID != nil {
			e.SessionID = *sessionID
		}
		if terminalID != nil {
			e.TerminalID = *terminalID
		}
		if duration != nil {
			e.DurationMs = *duration
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CleanupOldLogs deletes every log row older than days.
func (db *DB) CleanupOldLogs(days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format(time.RFC3339)
	res, err := db.Exec("DELETE FROM logs WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleaning up logs: %w", err)
	}
	return res.RowsAffected()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt64(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
