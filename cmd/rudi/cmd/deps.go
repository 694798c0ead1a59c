package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rudi-cli/rudi/internal/configstore"
	"github.com/rudi-cli/rudi/internal/installer"
	"github.com/rudi-cli/rudi/internal/mcpindex"
	"github.com/rudi-cli/rudi/internal/orchestrate"
	"github.com/rudi-cli/rudi/internal/pkgrecord"
	"github.com/rudi-cli/rudi/internal/registry"
	"github.com/rudi-cli/rudi/internal/resolver"
	"github.com/rudi-cli/rudi/internal/rpaths"
	"github.com/rudi-cli/rudi/internal/secrets"
	"github.com/rudi-cli/rudi/internal/sessiondb"
)

// deps holds shared dependencies for CLI commands, wired once per
// invocation the way the teacher's own deps.go wires its ConfigManager.
type deps struct {
	paths    rpaths.Paths
	client   *registry.Client
	resolver *resolver.Resolver
	inst     *installer.Installer
	config   *configstore.Store
	secrets  *secrets.Store
	indexer  *mcpindex.Indexer
	orch     *orchestrate.Orchestrator
}

// newDeps creates shared dependencies. Called lazily by commands that need
// them, per spec.md §6's single-process, cooperative scheduling model.
func newDeps() (*deps, error) {
	env, err := rpaths.LoadEnvConfig()
	if err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	paths, err := rpaths.New(env.Home)
	if err != nil {
		return nil, fmt.Errorf("resolving rudi home: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("preparing rudi home: %w", err)
	}

	client := registry.NewClient(paths, env.ResourcesPath, env.UseLocalRegistry)
	res := resolver.New(client, paths)
	inst := installer.New(client, res, paths)
	inst.BundledRuntimeBin = bundledRuntimeBinPath(paths)

	cfg := configstore.New(paths)
	secretStore := secrets.New(paths.SecretsFile)

	idx := mcpindex.New(secretStore)
	idx.BundledRuntimeBin = bundledRuntimeBinDirs(paths)

	orch := orchestrate.New(client, res, inst, cfg, idx, paths)

	return &deps{
		paths: paths, client: client, resolver: res, inst: inst,
		config: cfg, secrets: secretStore, indexer: idx, orch: orch,
	}, nil
}

// openSessionDB opens (creating if absent) the session-transcript database
// at paths.DBFile, for the session/import/search family of commands.
func (d *deps) openSessionDB() (*sessiondb.DB, error) {
	return sessiondb.Open(d.paths.DBFile)
}

// bundledRuntimeBinPath resolves a runtime tag ("node", "python", "npx") to
// the absolute path of its installed bundled binary, falling back to "" so
// callers pass the bare name through for a PATH lookup instead.
func bundledRuntimeBinPath(paths rpaths.Paths) func(tag string) string {
	return func(tag string) string {
		name := tag
		if tag == "npx" {
			name = "node"
		}
		installDir := paths.InstallDir(rpaths.KindRuntime, name)
		rec, err := pkgrecord.Read(installDir)
		if err != nil || len(rec.Binaries) == 0 {
			return ""
		}
		bin := rec.Binaries[0]
		if tag == "npx" {
			bin = "npx"
		}
		return filepath.Join(installDir, bin)
	}
}

// bundledRuntimeBinDirs resolves the PATH-prepend directories for every
// bundled runtime currently installed, for mcpindex's subprocess spawns.
func bundledRuntimeBinDirs(paths rpaths.Paths) func(tag string) []string {
	return func(tag string) []string {
		installDir := paths.InstallDir(rpaths.KindRuntime, tag)
		if _, err := os.Stat(installDir); err != nil {
			return nil
		}
		return []string{installDir}
	}
}
