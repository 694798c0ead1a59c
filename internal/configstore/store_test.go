package configstore

import (
	"path/filepath"
	"testing"

	"github.com/rudi-cli/rudi/internal/rpaths"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	home := t.TempDir()
	paths, err := rpaths.New(home)
	if err != nil {
		t.Fatalf("rpaths.New: %v", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return New(paths)
}

func noopBundledRuntime(string) string { return "" }

func TestInitConfigCreatesDefaults(t *testing.T) {
	s := newTestStore(t)
	cfg, err := s.InitConfig()
	if err != nil {
		t.Fatalf("InitConfig: %v", err)
	}
	if cfg.Version != configVersion {
		t.Errorf("Version = %d, want %d", cfg.Version, configVersion)
	}
	if cfg.Stacks == nil || cfg.Secrets == nil {
		t.Error("expected initialized maps")
	}
	if cfg.SchemaVersion != schemaVersion {
		t.Errorf("SchemaVersion = %d, want %d", cfg.SchemaVersion, schemaVersion)
	}
	if !cfg.Installed {
		t.Error("expected Installed = true on a freshly created document")
	}
	if cfg.InstalledAt == "" || cfg.UpdatedAt == "" {
		t.Errorf("expected InstalledAt/UpdatedAt to be stamped, got %+v", cfg)
	}

	// Second call should read back the persisted document, not recreate it.
	cfg2, err := s.InitConfig()
	if err != nil {
		t.Fatalf("InitConfig (2nd): %v", err)
	}
	if cfg2.Version != cfg.Version {
		t.Errorf("second InitConfig diverged: %+v vs %+v", cfg2, cfg)
	}
	if cfg2.InstalledAt != cfg.InstalledAt {
		t.Errorf("InstalledAt should not change on re-read: %q vs %q", cfg2.InstalledAt, cfg.InstalledAt)
	}
}

func TestUpdateConfigRefreshesUpdatedAt(t *testing.T) {
	s := newTestStore(t)
	cfg, err := s.InitConfig()
	if err != nil {
		t.Fatal(err)
	}

	if err := s.AddStack("stack:demo", StackAddInfo{Name: "Demo"}, noopBundledRuntime); err != nil {
		t.Fatal(err)
	}
	cfg2, err := s.Read()
	if err != nil {
		t.Fatal(err)
	}
	if cfg2.UpdatedAt == "" {
		t.Error("expected UpdatedAt to be stamped after a mutation")
	}
	if cfg2.InstalledAt != cfg.InstalledAt {
		t.Errorf("InstalledAt changed across a mutation: %q vs %q", cfg2.InstalledAt, cfg.InstalledAt)
	}
}

func TestAddStackRegistersSecrets(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.InitConfig(); err != nil {
		t.Fatal(err)
	}

	err := s.AddStack("stack:demo", StackAddInfo{
		Name: "Demo", Version: "1.0.0", Path: "/home/.rudi/stacks/demo",
		Command: []string{"node", "dist/index.js"}, Secrets: []string{"API_KEY"},
	}, noopBundledRuntime)
	if err != nil {
		t.Fatalf("AddStack: %v", err)
	}

	cfg, err := s.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	st, ok := cfg.Stacks["stack:demo"]
	if !ok {
		t.Fatal("stack:demo not found")
	}
	if st.Launch.Bin != "node" || len(st.Launch.Args) != 1 || st.Launch.Args[0] != "dist/index.js" {
		t.Errorf("unexpected launch config: %+v", st.Launch)
	}
	if len(st.Secrets) != 1 || st.Secrets[0].Name != "API_KEY" || !st.Secrets[0].Required {
		t.Errorf("st.Secrets = %+v, want [{API_KEY true}]", st.Secrets)
	}
	if names := st.SecretNames(); len(names) != 1 || names[0] != "API_KEY" {
		t.Errorf("SecretNames() = %v", names)
	}

	secret, ok := cfg.Secrets["API_KEY"]
	if !ok {
		t.Fatal("API_KEY secret not registered")
	}
	if secret.Configured {
		t.Error("secret should start unconfigured")
	}
	if !secret.Required {
		t.Error("secret registered from a stack's requires.secrets should default to required")
	}
	if secret.Stack != "stack:demo" {
		t.Errorf("secret.Stack = %q, want stack:demo", secret.Stack)
	}
}

func TestUpdateSecretStatusStampsLastUpdated(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.InitConfig(); err != nil {
		t.Fatal(err)
	}
	if err := s.AddStack("stack:demo", StackAddInfo{Name: "Demo", Secrets: []string{"API_KEY"}}, noopBundledRuntime); err != nil {
		t.Fatal(err)
	}

	if err := s.UpdateSecretStatus("API_KEY", true, ProviderSecretsFile); err != nil {
		t.Fatalf("UpdateSecretStatus: %v", err)
	}

	cfg, err := s.Read()
	if err != nil {
		t.Fatal(err)
	}
	secret := cfg.Secrets["API_KEY"]
	if !secret.Configured {
		t.Error("expected Configured = true")
	}
	if secret.LastUpdated == "" {
		t.Error("expected LastUpdated to be stamped")
	}
	if secret.Provider != ProviderSecretsFile {
		t.Errorf("Provider = %q, want %q", secret.Provider, ProviderSecretsFile)
	}
}

func TestRemoveStackPrunesOrphanSecretsOnly(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.InitConfig(); err != nil {
		t.Fatal(err)
	}
	if err := s.AddStack("stack:a", StackAddInfo{Name: "A", Secrets: []string{"SHARED", "ONLY_A"}}, noopBundledRuntime); err != nil {
		t.Fatal(err)
	}
	if err := s.AddStack("stack:b", StackAddInfo{Name: "B", Secrets: []string{"SHARED"}}, noopBundledRuntime); err != nil {
		t.Fatal(err)
	}

	if err := s.RemoveStack("stack:a"); err != nil {
		t.Fatalf("RemoveStack: %v", err)
	}

	cfg, err := s.Read()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := cfg.Stacks["stack:a"]; ok {
		t.Error("stack:a should be removed")
	}
	if _, ok := cfg.Secrets["ONLY_A"]; ok {
		t.Error("ONLY_A secret should be pruned (no remaining stack needs it)")
	}
	if _, ok := cfg.Secrets["SHARED"]; !ok {
		t.Error("SHARED secret should survive (stack:b still requires it)")
	}
}

func TestCreateLaunchConfigDefaultsByRuntime(t *testing.T) {
	cfg := CreateLaunchConfig(nil, "python", "/stacks/demo", noopBundledRuntime)
	if cfg.Bin != "python" || len(cfg.Args) != 2 || cfg.Args[0] != "-u" {
		t.Errorf("python default launch = %+v", cfg)
	}

	cfg2 := CreateLaunchConfig(nil, "node", "/stacks/demo", noopBundledRuntime)
	if len(cfg2.Args) != 1 || cfg2.Args[0] != "dist/index.js" {
		t.Errorf("node default launch = %+v", cfg2)
	}
}

func TestCreateLaunchConfigSubstitutesBundledRuntime(t *testing.T) {
	bundled := func(tag string) string {
		if tag == "node" {
			return "/home/.rudi/runtimes/node/bin/node"
		}
		return ""
	}
	cfg := CreateLaunchConfig([]string{"node", "dist/index.js"}, "node", "/stacks/demo", bundled)
	if cfg.Bin != "/home/.rudi/runtimes/node/bin/node" {
		t.Errorf("Bin = %q, want bundled node path", cfg.Bin)
	}
}

func TestResolvePathLikeArgs(t *testing.T) {
	out := ResolvePathLikeArgs([]string{"--flag", "./dist/index.js", "/already/absolute", "plain"}, "/stacks/demo")
	want := []string{"--flag", filepath.Join("/stacks/demo", "./dist/index.js"), "/already/absolute", "plain"}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %q, want %q", i, out[i], want[i])
		}
	}
}

func TestUpdateStackToolsReplacesList(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.InitConfig(); err != nil {
		t.Fatal(err)
	}
	if err := s.AddStack("stack:demo", StackAddInfo{Name: "Demo"}, noopBundledRuntime); err != nil {
		t.Fatal(err)
	}
	tools := []ToolInfo{{Name: "search", Description: "search the web"}}
	if err := s.UpdateStackTools("stack:demo", tools); err != nil {
		t.Fatalf("UpdateStackTools: %v", err)
	}
	cfg, err := s.Read()
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Stacks["stack:demo"].Tools) != 1 {
		t.Errorf("expected 1 tool, got %+v", cfg.Stacks["stack:demo"].Tools)
	}
}
