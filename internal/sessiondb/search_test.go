package sessiondb

import (
	"strings"
	"testing"
)

func seedSearchableTurn(t *testing.T, db *DB, userText, assistantText string) {
	t.Helper()
	projectID, err := db.UpsertProject("claude", "/work/repo", "repo")
	if err != nil {
		t.Fatal(err)
	}
	session := Session{Provider: "claude", ProviderSessionID: userText, ProjectID: projectID, Title: "t"}
	_, err = db.InsertSession(session, []Turn{{Role: "user", UserText: userText, AssistantText: assistantText}})
	if err != nil {
		t.Fatal(err)
	}
}

func TestSearchFindsMatchingTurn(t *testing.T) {
	db := newTestDB(t)
	seedSearchableTurn(t, db, "how do I configure the database migration", "run migrate")
	seedSearchableTurn(t, db, "unrelated question about widgets", "widget answer")

	hits, err := db.Search("migration", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d: %+v", len(hits), hits)
	}
}

func TestSearchHighlightsSnippetWithMarkers(t *testing.T) {
	db := newTestDB(t)
	seedSearchableTurn(t, db, "fix authentication bug in login handler", "patched the handler")

	hits, err := db.Search("authentication login", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d: %+v", len(hits), hits)
	}
	snippet := hits[0].UserSnippet
	if !strings.Contains(snippet, ">>>authentication<<<") || !strings.Contains(snippet, ">>>login<<<") {
		t.Fatalf("snippet = %q, want both tokens wrapped in >>>...<<<", snippet)
	}

	hits, err = db.Search("bug", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit for %q, got %d", "bug", len(hits))
	}
}

func TestSearchEmptyQueryReturnsNil(t *testing.T) {
	db := newTestDB(t)
	hits, err := db.Search("   ", 10)
	if err != nil {
		t.Fatal(err)
	}
	if hits != nil {
		t.Fatalf("expected nil hits for empty query, got %+v", hits)
	}
}

func TestFtsMatchExprSanitizesAndPrefixMatches(t *testing.T) {
	got := ftsMatchExpr(`"quoted" (parens) some-dash *star*`)
	want := `"quoted"* "parens"* "some"* "dash"* "star"*`
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
