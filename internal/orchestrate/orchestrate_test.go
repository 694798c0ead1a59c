package orchestrate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rudi-cli/rudi/internal/agents"
	"github.com/rudi-cli/rudi/internal/configstore"
	"github.com/rudi-cli/rudi/internal/installer"
	"github.com/rudi-cli/rudi/internal/mcpindex"
	"github.com/rudi-cli/rudi/internal/registry"
	"github.com/rudi-cli/rudi/internal/resolver"
	"github.com/rudi-cli/rudi/internal/rpaths"
)

// fakeMcpServerScript mirrors mcpindex's own test fixture: a minimal
// shell-based JSON-RPC responder good enough to drive IndexStack.
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

type fakeSecrets struct{}

func (fakeSecrets) IsConfigured(string) bool      { return true }
func (fakeSecrets) Value(string) (string, bool) { return "", false }

func newContentsServer(t *testing.T) string {
	t.Helper()
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/stacks/demo", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"name":"manifest.json","type":"file","download_url":"` + srvURL + `/raw/manifest.json"}]`))
	})
	mux.HandleFunc("/raw/manifest.json", func(w http.ResponseWriter, r *http.Request) {
		body, _ := json.Marshal(map[string]any{
			"id": "stack:demo", "name": "Demo", "version": "1.0.0",
			"command": []string{"sh", "-c", fakeMcpServerScript},
		})
		_, _ = w.Write(body)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	srvURL = srv.URL
	return srv.URL
}

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	home := t.TempDir()
	paths, err := rpaths.New(home)
	if err != nil {
		t.Fatal(err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}

	idx := registry.Index{
		Stacks: registry.KindBucket{Official: []registry.PackageDescriptor{
			{ID: "stack:demo", Name: "Demo", Version: "1.0.0", Path: "stacks/demo"},
		}},
	}
	localPath := filepath.Join(t.TempDir(), "index.json")
	data, _ := json.Marshal(idx)
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		t.Fatal(err)
	}
	client := registry.NewClient(paths, localPath, true)
	client.ContentsBaseURL = newContentsServer(t)

	res := resolver.New(client, paths)
	inst := installer.New(client, res, paths)
	cfg := configstore.New(paths)
	mcp := mcpindex.New(fakeSecrets{})
	mcp.Timeout = 5 * time.Second

	return New(client, res, inst, cfg, mcp, paths)
}

func TestInstallPackageRegistersStackAndIndexesTools(t *testing.T) {
	o := newTestOrchestrator(t)

	result, err := o.InstallPackage(context.Background(), "demo", installer.Options{})
	if err != nil {
		t.Fatalf("InstallPackage: %v", err)
	}
	if len(result.Installs) != 1 || !result.Installs[0].Success {
		t.Fatalf("unexpected installs: %+v", result.Installs)
	}
	if result.IndexError != "" {
		t.Fatalf("unexpected index error: %s", result.IndexError)
	}
	if len(result.Tools) != 1 || result.Tools[0].Name != "search" {
		t.Fatalf("unexpected tools: %+v", result.Tools)
	}

	cfg, err := o.Config.Read()
	if err != nil {
		t.Fatal(err)
	}
	stack, ok := cfg.Stacks["stack:demo"]
	if !ok {
		t.Fatal("expected stack:demo recorded in config")
	}
	if len(stack.Tools) != 1 || stack.Tools[0].Name != "search" {
		t.Fatalf("unexpected persisted tools: %+v", stack.Tools)
	}

	// No agent config files exist in the test environment, so every
	// registration must be a clean "agent not installed" skip.
	if len(result.Registrations) != len(agents.Table) {
		t.Fatalf("expected one registration result per agent, got %d", len(result.Registrations))
	}
	for id, r := range result.Registrations {
		if !r.Skipped || r.Error != "" {
			t.Errorf("agent %s: expected a clean skip, got %+v", id, r)
		}
	}
}

func TestUninstallRemovesStackFromConfig(t *testing.T) {
	o := newTestOrchestrator(t)
	if _, err := o.InstallPackage(context.Background(), "demo", installer.Options{}); err != nil {
		t.Fatal(err)
	}

	if err := o.Uninstall("stack:demo"); err != nil {
		t.Fatalf("Uninstall: %v", err)
	}

	cfg, err := o.Config.Read()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := cfg.Stacks["stack:demo"]; ok {
		t.Error("expected stack:demo removed from config")
	}
	if _, err := os.Stat(o.Paths.InstallDir(rpaths.KindStack, "demo")); !os.IsNotExist(err) {
		t.Errorf("expected install dir removed, err=%v", err)
	}
}

func TestReindexAllRefreshesPersistedTools(t *testing.T) {
	o := newTestOrchestrator(t)
	if _, err := o.InstallPackage(context.Background(), "demo", installer.Options{}); err != nil {
		t.Fatal(err)
	}

	results, err := o.ReindexAll()
	if err != nil {
		t.Fatalf("ReindexAll: %v", err)
	}
	if len(results) != 1 || results[0].ID != "stack:demo" {
		t.Fatalf("unexpected results: %+v", results)
	}
	if len(results[0].Tools) != 1 || results[0].Tools[0].Name != "search" {
		t.Fatalf("unexpected tools: %+v", results[0].Tools)
	}
}
