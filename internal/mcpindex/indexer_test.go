package mcpindex

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rudi-cli/rudi/internal/configstore"
)

type fakeSecrets struct {
	configured map[string]bool
	values     map[string]string
}

func (f fakeSecrets) IsConfigured(name string) bool { return f.configured[name] }
func (f fakeSecrets) Value(name string) (string, bool) {
	v, ok := f.values[name]
	return v, ok
}

// fakeMcpServerScript is a minimal shell-based JSON-RPC responder: it
// echoes a successful response for "initialize" and a canned tools/list
// reply, ignoring notifications (which carry no id and expect no response).
const fakeMcpServerScript = `
while IFS= read -r line; do
  case "$line" in
    *'"method":"initialize"'*)
      echo '{"jsonrpc":"2.0","id":1,"result":{}}'
      ;;
    *'"method":"tools/list"'*)
      echo '{"jsonrpc":"2.0","id":2,"result":{"tools":[{"name":"search"}]}}'
      ;;
  esac
done
`

func TestIndexStackHappyPath(t *testing.T) {
	idx := New(fakeSecrets{})
	idx.Timeout = 5 * time.Second
	launch := configstore.LaunchConfig{Bin: "sh", Args: []string{"-c", fakeMcpServerScript}}

	result := idx.IndexStack("stack:demo", launch, nil)
	if result.Error != "" {
		t.Fatalf("unexpected error: %s", result.Error)
	}
	if len(result.Tools) != 1 || result.Tools[0].Name != "search" {
		t.Fatalf("unexpected tools: %+v", result.Tools)
	}
	if result.Tools[0].Description != "search" {
		t.Errorf("expected description to fall back to name, got %q", result.Tools[0].Description)
	}
	schema, ok := result.Tools[0].InputSchema.(map[string]any)
	if !ok || schema["type"] != "object" {
		t.Errorf("expected default object schema, got %+v", result.Tools[0].InputSchema)
	}
}

func TestIndexStackMissingSecrets(t *testing.T) {
	idx := New(fakeSecrets{configured: map[string]bool{}})
	launch := configstore.LaunchConfig{Bin: "sh", Args: []string{"-c", fakeMcpServerScript}}

	result := idx.IndexStack("stack:demo", launch, []string{"API_KEY"})
	if !strings.Contains(result.Error, "API_KEY") {
		t.Errorf("expected missing-secret error mentioning API_KEY, got %q", result.Error)
	}
	if len(result.Tools) != 0 {
		t.Error("expected empty tools on missing secret")
	}
}

func TestIndexStackSpawnFailure(t *testing.T) {
	idx := New(fakeSecrets{})
	launch := configstore.LaunchConfig{Bin: "/nonexistent/binary/path"}
	result := idx.IndexStack("stack:demo", launch, nil)
	if result.Error == "" {
		t.Error("expected an error for a nonexistent binary")
	}
}

func TestNormalizeToolsDefaults(t *testing.T) {
	raw := json.RawMessage(`{"tools":[{"name":"echo","description":"","inputSchema":null}]}`)
	tools := normalizeTools(raw)
	if len(tools) != 1 || tools[0].Description != "echo" {
		t.Fatalf("unexpected tools: %+v", tools)
	}
}

func TestBuildCacheAndRoundTrip(t *testing.T) {
	results := []StackResult{
		{ID: "stack:a", Tools: []Tool{{Name: "t"}}},
		{ID: "stack:b", Error: "Missing required secrets: API_KEY", MissingSecrets: []string{"API_KEY"}},
	}
	cache := BuildCache(results)
	if cache.Version != cacheVersion {
		t.Errorf("Version = %d, want %d", cache.Version, cacheVersion)
	}
	if cache.UpdatedAt == "" {
		t.Error("expected UpdatedAt to be set")
	}
	entryA := cache.ByStack["stack:a"]
	if len(entryA.Tools) != 1 || entryA.IndexedAt == "" {
		t.Errorf("unexpected cache contents for stack:a: %+v", entryA)
	}
	entryB := cache.ByStack["stack:b"]
	if len(entryB.MissingSecrets) != 1 || entryB.MissingSecrets[0] != "API_KEY" {
		t.Errorf("expected missingSecrets to carry through for stack:b: %+v", entryB)
	}
}
