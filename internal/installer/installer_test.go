package installer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rudi-cli/rudi/internal/pkgrecord"
	"github.com/rudi-cli/rudi/internal/registry"
	"github.com/rudi-cli/rudi/internal/resolver"
	"github.com/rudi-cli/rudi/internal/rpaths"
	"gopkg.in/yaml.v3"
)

type fakeRunner struct {
	calls []string
	fail  bool
}

func (f *fakeRunner) Run(ctx context.Context, dir, name string, args ...string) error {
	f.calls = append(f.calls, name)
	if f.fail {
		return &notFoundErr{id: "forced failure"}
	}
	// Simulate npm/pip producing something in dir so tests can assert on it.
	return os.WriteFile(filepath.Join(dir, "installed.marker"), []byte("ok"), 0o644)
}

func newContentsServer(t *testing.T) string {
	t.Helper()
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/stacks/demo", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"name":"manifest.json","type":"file","download_url":"` + srvURL + `/raw/manifest.json"}]`))
	})
	mux.HandleFunc("/raw/manifest.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"stack:demo","name":"Demo","version":"1.0.0","command":["node","dist/index.js"]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	srvURL = srv.URL
	return srv.URL
}

func newTestInstaller(t *testing.T) (*Installer, rpaths.Paths) {
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
		Binaries: registry.KindBucket{Official: []registry.PackageDescriptor{
			{ID: "binary:ripgrep", Name: "ripgrep", Version: "13.0.0", NPMPackage: "ripgrep-npm"},
		}},
		Runtimes: registry.KindBucket{Official: []registry.PackageDescriptor{
			{ID: "runtime:node", Name: "Node.js", Version: "20.11.0", NPMPackage: "node-npm-placeholder"},
		}},
		Stacks: registry.KindBucket{Official: []registry.PackageDescriptor{
			{ID: "stack:demo", Name: "Demo", Version: "1.0.0", Path: "stacks/demo",
				Requires: registry.PackageRequires{Runtimes: []string{"node"}, Binaries: []string{"ripgrep"}}},
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
	inst := New(client, res, paths)
	inst.Runner = &fakeRunner{}
	return inst, paths
}

func TestInstallPackageNpmPathWritesManifestAndLockfile(t *testing.T) {
	inst, paths := newTestInstaller(t)
	results, err := inst.InstallPackage(context.Background(), "binary:ripgrep", Options{})
	if err != nil {
		t.Fatalf("InstallPackage: %v", err)
	}
	if len(results) != 1 || !results[0].Success {
		t.Fatalf("results = %+v", results)
	}

	installDir := paths.InstallDir(rpaths.KindBinary, "ripgrep")
	if !pkgrecord.Exists(installDir) {
		t.Error("expected manifest.json to exist after install")
	}
	lockPath := paths.LockFilePath(rpaths.KindBinary, "ripgrep")
	if _, err := os.Stat(lockPath); err != nil {
		t.Errorf("expected lockfile at %s: %v", lockPath, err)
	}
}

func TestInstallPackageWithDepsInstallsAllInOrder(t *testing.T) {
	inst, paths := newTestInstaller(t)
	results, err := inst.InstallPackage(context.Background(), "demo", Options{})
	if err != nil {
		t.Fatalf("InstallPackage: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 installs (2 deps + root), got %d: %+v", len(results), results)
	}
	// Dependencies must precede the root stack.
	if results[len(results)-1].ID != "stack:demo" {
		t.Errorf("last result = %s, want stack:demo", results[len(results)-1].ID)
	}
	for _, kind := range []string{rpaths.KindRuntime, rpaths.KindBinary} {
		name := "node"
		if kind == rpaths.KindBinary {
			name = "ripgrep"
		}
		if !pkgrecord.Exists(paths.InstallDir(kind, name)) {
			t.Errorf("expected %s/%s to be installed", kind, name)
		}
	}
}

func TestInstallPackageWithDepsWritesLockfileDependencies(t *testing.T) {
	inst, paths := newTestInstaller(t)
	if _, err := inst.InstallPackage(context.Background(), "demo", Options{}); err != nil {
		t.Fatalf("InstallPackage: %v", err)
	}

	lockPath := paths.LockFilePath(rpaths.KindStack, "demo")
	data, err := os.ReadFile(lockPath)
	if err != nil {
		t.Fatalf("reading lockfile: %v", err)
	}
	var lf Lockfile
	if err := yaml.Unmarshal(data, &lf); err != nil {
		t.Fatalf("unmarshaling lockfile: %v", err)
	}

	if lf.ID != "stack:demo" || lf.InstalledAt == "" || lf.Checksum == "" {
		t.Fatalf("unexpected lockfile: %+v", lf)
	}
	if len(lf.Dependencies) != 2 {
		t.Fatalf("expected 2 recorded dependencies, got %+v", lf.Dependencies)
	}
	for _, dep := range lf.Dependencies {
		if dep.ID == "" || dep.Checksum == "" {
			t.Errorf("dependency missing id/checksum: %+v", dep)
		}
	}
}

func TestUninstallRemovesDirAndLock(t *testing.T) {
	inst, paths := newTestInstaller(t)
	if _, err := inst.InstallPackage(context.Background(), "binary:ripgrep", Options{}); err != nil {
		t.Fatal(err)
	}
	if err := inst.Uninstall("binary:ripgrep"); err != nil {
		t.Fatalf("Uninstall: %v", err)
	}
	if _, err := os.Stat(paths.InstallDir(rpaths.KindBinary, "ripgrep")); !os.IsNotExist(err) {
		t.Errorf("expected install dir removed, err=%v", err)
	}
	if _, err := os.Stat(paths.LockFilePath(rpaths.KindBinary, "ripgrep")); !os.IsNotExist(err) {
		t.Errorf("expected lockfile removed, err=%v", err)
	}
}

func TestListInstalledSkipsDotDirs(t *testing.T) {
	inst, paths := newTestInstaller(t)
	if _, err := inst.InstallPackage(context.Background(), "binary:ripgrep", Options{}); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(paths.Binaries, ".hidden"), 0o755); err != nil {
		t.Fatal(err)
	}

	list, err := inst.ListInstalled()
	if err != nil {
		t.Fatalf("ListInstalled: %v", err)
	}
	if len(list) != 1 || list[0].ID != "binary:ripgrep" {
		t.Errorf("ListInstalled = %+v", list)
	}
}

func TestInstallPackagePlaceholderOnFailure(t *testing.T) {
	inst, paths := newTestInstaller(t)
	inst.Runner = &fakeRunner{fail: true}

	_, err := inst.InstallPackage(context.Background(), "binary:ripgrep", Options{})
	if err == nil {
		t.Fatal("expected install failure to be reported")
	}

	installDir := paths.InstallDir(rpaths.KindBinary, "ripgrep")
	rec, rerr := pkgrecord.Read(installDir)
	if rerr != nil {
		t.Fatalf("expected placeholder manifest to be written: %v", rerr)
	}
	if rec.Source != pkgrecord.SourcePlaceholder || rec.Error == "" {
		t.Errorf("expected placeholder record with error, got %+v", rec)
	}
}

func TestInstallPackageSecondCallReportsAlreadyInstalled(t *testing.T) {
	inst, _ := newTestInstaller(t)
	if _, err := inst.InstallPackage(context.Background(), "binary:ripgrep", Options{}); err != nil {
		t.Fatal(err)
	}

	results, err := inst.InstallPackage(context.Background(), "binary:ripgrep", Options{})
	if err != nil {
		t.Fatalf("InstallPackage: %v", err)
	}
	if len(results) != 1 || !results[0].AlreadyInstalled || !results[0].Success {
		t.Fatalf("results = %+v, want a single AlreadyInstalled success", results)
	}
	if results[0].ID != "binary:ripgrep" {
		t.Errorf("ID = %s, want binary:ripgrep", results[0].ID)
	}
}

func TestInstallPackageForceReinstallsIgnoringAlreadyInstalled(t *testing.T) {
	inst, _ := newTestInstaller(t)
	if _, err := inst.InstallPackage(context.Background(), "binary:ripgrep", Options{}); err != nil {
		t.Fatal(err)
	}

	results, err := inst.InstallPackage(context.Background(), "binary:ripgrep", Options{Force: true})
	if err != nil {
		t.Fatalf("InstallPackage: %v", err)
	}
	if len(results) != 1 || results[0].AlreadyInstalled {
		t.Fatalf("results = %+v, want a forced reinstall, not AlreadyInstalled", results)
	}
}

func TestInstallSourcePackagePreservesManifestCommand(t *testing.T) {
	inst, paths := newTestInstaller(t)
	if _, err := inst.InstallPackage(context.Background(), "demo", Options{}); err != nil {
		t.Fatal(err)
	}

	installDir := paths.InstallDir(rpaths.KindStack, "demo")
	rec, err := pkgrecord.Read(installDir)
	if err != nil {
		t.Fatalf("pkgrecord.Read: %v", err)
	}
	if rec.Source != pkgrecord.SourceRegistry {
		t.Errorf("expected source registry, got %+v", rec)
	}

	var doc struct {
		Command []string `json:"command"`
	}
	data, err := os.ReadFile(pkgrecord.Path(installDir))
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.Command) != 2 || doc.Command[0] != "node" {
		t.Errorf("expected downloaded command to survive install record merge, got %v", doc.Command)
	}
}
