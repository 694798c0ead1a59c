package sessiondb

import (
	"fmt"
	"strings"
)

// SearchHit is one FTS match, joined back to its turn and session.
type SearchHit struct {
	TurnID          string
	SessionID       string
	SessionTitle    string
	TurnNumber      int
	UserSnippet     string
	AssistantSnippet string
	Rank            float64
}

// Search runs q against the turns_fts shadow table, sanitising and
// tokenising the query into prefix-matched terms, falling back to a plain
// LIKE scan if the FTS query itself fails to parse, per spec.md §4.I.
func (db *DB) Search(q string, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = 50
	}
	match := ftsMatchExpr(q)
	if match == "" {
		return nil, nil
	}

	hits, err := db.searchFTS(match, limit)
	if err == nil {
		return hits, nil
	}
	return db.searchLike(q, limit)
}

func (db *DB) searchFTS(match string, limit int) ([]SearchHit, error) {
	rows, err := db.Query(`
		SELECT t.id, t.session_id, s.title, t.turn_number,
		       highlight(turns_fts, 0, '>>>', '<<<'),
		       highlight(turns_fts, 1, '>>>', '<<<'),
		       bm25(turns_fts) AS rank
		FROM turns_fts
		JOIN turns t ON t.rowid = turns_fts.rowid
		JOIN sessions s ON s.id = t.session_id
		WHERE turns_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, match, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var h SearchHit
		var title *string
		if err := rows.Scan(&h.TurnID, &h.SessionID, &title, &h.TurnNumber, &h.UserSnippet, &h.AssistantSnippet, &h.Rank); err != nil {
			return nil, err
		}
		if title != nil {
			h.SessionTitle = *title
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (db *DB) searchLike(q string, limit int) ([]SearchHit, error) {
	pattern := "%" + q + "%"
	rows, err := db.Query(`
		SELECT t.id, t.session_id, s.title, t.turn_number, t.user_text, t.assistant_text
		FROM turns t
		JOIN sessions s ON s.id = t.session_id
		WHERE t.user_text LIKE ? OR t.assistant_text LIKE ?
		ORDER BY t.created_at DESC
		LIMIT ?
	`, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("fallback search: %w", err)
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var h SearchHit
		var title *string
		if err := rows.Scan(&h.TurnID, &h.SessionID, &title, &h.TurnNumber, &h.UserSnippet, &h.AssistantSnippet); err != nil {
			return nil, err
		}
		if title != nil {
			h.SessionTitle = *title
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// ftsMatchExpr sanitises q (stripping quoting, parens, dashes, stars),
// tokenises on whitespace, and wraps each token as a prefix-matched FTS5
// term, per spec.md §4.I.
func ftsMatchExpr(q string) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '"', '(', ')', '-', '*':
			return ' '
		default:
			return r
		}
	}, q)

	fields := strings.Fields(clean)
	if len(fields) == 0 {
		return ""
	}
	terms := make([]string, len(fields))
	for i, f := range fields {
		terms[i] = fmt.Sprintf(`"%s"*`, f)
	}
	return strings.Join(terms, " ")
}
