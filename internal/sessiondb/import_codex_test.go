package sessiondb

import (
	"path/filepath"
	"testing"
)

func TestImportCodexSessionsTracksIncrementalTokenUsage(t *testing.T) {
	db := newTestDB(t)

	dir := t.TempDir()
	writeJSONL(t, filepath.Join(dir, "codex-1.jsonl"), []string{
		`{"type":"session_meta","payload":{"model":"gpt-5-codex","cwd":"/work/repo"}}`,
		`{"type":"event_msg","event_msg":{"type":"user_message","message":"first request"}}`,
		`{"type":"event_msg","event_msg":{"type":"agent_message","message":"working on it","last_token_usage":{"input_tokens":100,"output_tokens":50}}}`,
		`{"type":"event_msg","event_msg":{"type":"function_call","name":"shell","last_token_usage":{"input_tokens":150,"output_tokens":80}}}`,
		`{"type":"event_msg","event_msg":{"type":"user_message","message":"second request"}}`,
		`{"type":"event_msg","event_msg":{"type":"agent_message","message":"done","last_token_usage":{"input_tokens":40,"output_tokens":20}}}`,
	})

	result, err := db.ImportCodexSessions(dir, ImportOptions{InferTitles: true})
	if err != nil {
		t.Fatal(err)
	}
	if result.SessionsImported != 1 || result.TurnsImported != 2 {
		t.Fatalf("unexpected import result: %+v", result)
	}

	rows, err := db.Query(`
		SELECT t.turn_number, t.input_tokens, t.output_tokens, t.tools_used
		FROM turns t JOIN sessions s ON s.id = t.session_id
		WHERE s.provider_session_id = ?
		ORDER BY t.turn_number
	`, "codex-1")
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()

	type row struct {
		num             int
		input, output   int
		tools           string
	}
	var got []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.num, &r.input, &r.output, &r.tools); err != nil {
			t.Fatal(err)
		}
		got = append(got, r)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 turns, got %d: %+v", len(got), got)
	}
	if got[0].input != 250 || got[0].output != 130 {
		t.Fatalf("turn 1: expected tokens 250/130, got %d/%d", got[0].input, got[0].output)
	}
	if got[0].tools != `["shell"]` {
		t.Fatalf("turn 1: unexpected tools_used %q", got[0].tools)
	}
	if got[1].input != 40 || got[1].output != 20 {
		t.Fatalf("turn 2: expected tokens 40/20, got %d/%d", got[1].input, got[1].output)
	}

	var title string
	if err := db.QueryRow(`SELECT title FROM sessions WHERE provider_session_id = ?`, "codex-1").Scan(&title); err != nil {
		t.Fatal(err)
	}
	if title != "first request" {
		t.Fatalf("unexpected inferred title: %q", title)
	}
}

func TestImportCodexSessionsSkipsExistingSessions(t *testing.T) {
	db := newTestDB(t)
	dir := t.TempDir()
	writeJSONL(t, filepath.Join(dir, "codex-2.jsonl"), []string{
		`{"type":"event_msg","event_msg":{"type":"user_message","message":"hi"}}`,
	})

	if _, err := db.ImportCodexSessions(dir, ImportOptions{SkipExisting: true}); err != nil {
		t.Fatal(err)
	}
	result, err := db.ImportCodexSessions(dir, ImportOptions{SkipExisting: true})
	if err != nil {
		t.Fatal(err)
	}
	if result.SessionsSkipped != 1 {
		t.Fatalf("expected second import to skip, got %+v", result)
	}
}
