// Package installer executes install plans produced by the resolver:
// per-kind download/build strategies, lockfile generation, and the
// list/uninstall/update operations over installed packages, per
// spec.md §4.E.
package installer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rudi-cli/rudi/internal/manifest"
	"github.com/rudi-cli/rudi/internal/pkgrecord"
	"github.com/rudi-cli/rudi/internal/registry"
	"github.com/rudi-cli/rudi/internal/resolver"
	"github.com/rudi-cli/rudi/internal/rpaths"
)

// Options configures a single install operation.
type Options struct {
	Force      bool
	OnProgress ProgressFunc
}

// Result reports the outcome of installing one package.
type Result struct {
	Success          bool
	ID               string
	Error            string
	AlreadyInstalled bool
}

// Installer ties the registry client, resolver, and per-kind strategies
// together into the install/uninstall/list/update surface.
type Installer struct {
	Client   *registry.Client
	Resolver *resolver.Resolver
	Paths    rpaths.Paths
	Runner   CommandRunner

	// BundledRuntimeBin resolves a runtime tag to the absolute path of a
	// bundled runtime binary, or "" if none is installed.
	BundledRuntimeBin func(tag string) string
}

// New builds an Installer from its collaborators.
func New(client *registry.Client, res *resolver.Resolver, paths rpaths.Paths) *Installer {
	return &Installer{
		Client: client, Resolver: res, Paths: paths, Runner: NewExecRunner(),
		BundledRuntimeBin: func(string) string { return "" },
	}
}

// InstallPackage resolves id's dependency tree, computes install order,
// and installs every not-yet-installed node (plus the root itself when
// opts.Force is set), writing a lockfile after each successful install.
func (inst *Installer) InstallPackage(ctx context.Context, id string, opts Options) ([]Result, error) {
	if err := inst.Paths.EnsureDirectories(); err != nil {
		return nil, err
	}

	emit(opts.OnProgress, Event{Phase: PhaseResolving, Package: id})
	root, err := inst.Resolver.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	order := resolver.InstallOrder(root)
	if opts.Force && root.Installed {
		order = append(order, root)
	}

	if len(order) == 0 && root.Installed && !opts.Force {
		return []Result{{Success: true, ID: root.ID, AlreadyInstalled: true}}, nil
	}

	var results []Result
	total := len(order)
	for i, node := range order {
		emit(opts.OnProgress, Event{Phase: PhaseInstalling, Package: node.ID, Total: total, Current: i + 1})
		if err := inst.installNode(ctx, node, opts); err != nil {
			results = append(results, Result{Success: false, ID: node.ID, Error: err.Error()})
			return results, err
		}
		emit(opts.OnProgress, Event{Phase: PhaseLockfile, Package: node.ID})
		if err := inst.writeLockfile(node); err != nil {
			results = append(results, Result{Success: false, ID: node.ID, Error: err.Error()})
			return results, err
		}
		emit(opts.OnProgress, Event{Phase: PhaseInstalled, Package: node.ID, Total: total, Current: i + 1})
		results = append(results, Result{Success: true, ID: node.ID})
	}
	return results, nil
}

func (inst *Installer) installNode(ctx context.Context, node *resolver.ResolvedNode, opts Options) error {
	idx, err := inst.Client.Index(ctx, false)
	if err != nil {
		return err
	}
	desc, _, ok := inst.Client.GetPackage(idx, node.ID)
	if !ok {
		return &notFoundErr{id: node.ID}
	}
	installDir := inst.Paths.InstallDir(node.Kind, nameOf(node.ID))

	switch node.Kind {
	case rpaths.KindRuntime, rpaths.KindBinary:
		return inst.installRuntimeOrBinary(ctx, node.Kind, desc, installDir, opts)
	case rpaths.KindAgent:
		return inst.installAgent(ctx, desc, installDir, opts)
	case rpaths.KindStack, rpaths.KindPrompt:
		return inst.installSourcePackage(ctx, node.Kind, desc, installDir, opts)
	default:
		return &notFoundErr{id: node.ID}
	}
}

// installRuntimeOrBinary prefers npm/pip hints, then a tarball download,
// and falls back to a placeholder manifest recording the failure so the
// registry state remains consistent for later retries, per spec.md §4.E.
func (inst *Installer) installRuntimeOrBinary(ctx context.Context, kind string, desc *registry.PackageDescriptor, installDir string, opts Options) error {
	emit(opts.OnProgress, Event{Phase: PhaseDownloading, Package: desc.ID})
	if err := os.MkdirAll(installDir, 0o755); err != nil {
		return err
	}

	var installErr error
	switch {
	case desc.NPMPackage != "":
		installErr = npmInstall(ctx, inst.Runner, installDir, desc.NPMPackage, inst.BundledRuntimeBin("node"))
	case desc.PipPackage != "":
		installErr = pipInstall(ctx, inst.Runner, installDir, desc.PipPackage, inst.BundledRuntimeBin("python"))
	default:
		emit(opts.OnProgress, Event{Phase: PhaseExtracting, Package: desc.ID})
		platformArch := rpaths.PlatformArch()
		if kind == rpaths.KindRuntime && len(desc.Downloads[platformArch]) == 0 && desc.Upstream[platformArch] == "" {
			_, installErr = inst.Client.DownloadRuntimePrerelease(ctx, nameOf(desc.ID), shortVersion(desc.Version), platformArch, installDir, inst.Paths.Downloads)
		} else {
			_, installErr = inst.Client.DownloadArtifact(ctx, kind, desc, platformArch, installDir, inst.Paths.Downloads)
		}
	}

	if installErr == nil {
		if desc.NPMPackage != "" || desc.PipPackage != "" {
			rec := pkgrecord.Record{ID: desc.ID, Kind: kind, Name: desc.Name, Version: desc.Version, InstalledAt: pkgrecord.NowISO8601(), Source: sourceFor(desc), PlatformArch: rpaths.PlatformArch()}
			return pkgrecord.Write(installDir, rec)
		}
		return nil
	}

	// Placeholder: record the failure in manifest.json, then return the
	// error, which stops the rest of the InstallPackage batch.
	rec := pkgrecord.Record{
		ID: desc.ID, Kind: kind, Name: desc.Name, Version: desc.Version,
		InstalledAt: pkgrecord.NowISO8601(), Source: pkgrecord.SourcePlaceholder,
		PlatformArch: rpaths.PlatformArch(), Error: installErr.Error(),
	}
	if writeErr := pkgrecord.Write(installDir, rec); writeErr != nil {
		return writeErr
	}
	return installErr
}

func sourceFor(desc *registry.PackageDescriptor) pkgrecord.Source {
	switch {
	case desc.NPMPackage != "":
		return pkgrecord.SourceNPM
	case desc.PipPackage != "":
		return pkgrecord.SourcePip
	default:
		return pkgrecord.SourceRegistry
	}
}

// installAgent mirrors installRuntimeOrBinary but is agent-specific: an
// agent CLI is expected to declare exactly one of npmPackage/pipPackage.
func (inst *Installer) installAgent(ctx context.Context, desc *registry.PackageDescriptor, installDir string, opts Options) error {
	emit(opts.OnProgress, Event{Phase: PhaseDownloading, Package: desc.ID})
	if err := os.MkdirAll(installDir, 0o755); err != nil {
		return err
	}
	var installErr error
	switch {
	case desc.NPMPackage != "":
		installErr = npmInstall(ctx, inst.Runner, installDir, desc.NPMPackage, inst.BundledRuntimeBin("node"))
	case desc.PipPackage != "":
		installErr = pipInstall(ctx, inst.Runner, installDir, desc.PipPackage, inst.BundledRuntimeBin("python"))
	default:
		installErr = &notFoundErr{id: desc.ID}
	}
	if installErr != nil {
		rec := pkgrecord.Record{ID: desc.ID, Kind: rpaths.KindAgent, Name: desc.Name, Version: desc.Version, InstalledAt: pkgrecord.NowISO8601(), Source: pkgrecord.SourcePlaceholder, Error: installErr.Error()}
		if writeErr := pkgrecord.Write(installDir, rec); writeErr != nil {
			return writeErr
		}
		return installErr
	}
	rec := pkgrecord.Record{ID: desc.ID, Kind: rpaths.KindAgent, Name: desc.Name, Version: desc.Version, InstalledAt: pkgrecord.NowISO8601(), Source: sourceFor(desc)}
	return pkgrecord.Write(installDir, rec)
}

// installSourcePackage handles stacks and prompts: a download strategy
// (tarball if declared, else the registry source-directory walk), then a
// synthesised manifest.json recording source:"registry".
func (inst *Installer) installSourcePackage(ctx context.Context, kind string, desc *registry.PackageDescriptor, installDir string, opts Options) error {
	emit(opts.OnProgress, Event{Phase: PhaseDownloading, Package: desc.ID})
	platformArch := rpaths.PlatformArch()

	var err error
	switch {
	case len(desc.Downloads[platformArch]) > 0 || desc.Upstream[platformArch] != "":
		_, err = inst.Client.DownloadArtifact(ctx, kind, desc, platformArch, installDir, inst.Paths.Downloads)
		return err
	case desc.Path != "":
		emit(opts.OnProgress, Event{Phase: PhaseExtracting, Package: desc.ID})
		if err = inst.Client.DownloadSource(ctx, desc.Path, installDir); err != nil {
			return err
		}
	default:
		return &notFoundErr{id: desc.ID}
	}

	rec := pkgrecord.Record{ID: desc.ID, Kind: kind, Name: desc.Name, Version: desc.Version, InstalledAt: pkgrecord.NowISO8601(), Source: pkgrecord.SourceRegistry}
	return writeSourceManifest(installDir, rec)
}

// writeSourceManifest folds rec's install-record fields into the
// manifest.json already written by DownloadSource, rather than overwriting
// it outright: the downloaded document carries the stack's command/requires,
// which the orchestrator and config store need after install completes.
func writeSourceManifest(installDir string, rec pkgrecord.Record) error {
	doc := map[string]any{}
	if data, err := os.ReadFile(pkgrecord.Path(installDir)); err == nil {
		_ = json.Unmarshal(data, &doc)
	}
	doc["id"] = rec.ID
	doc["kind"] = rec.Kind
	doc["name"] = rec.Name
	doc["version"] = rec.Version
	doc["installedAt"] = rec.InstalledAt
	doc["source"] = rec.Source

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	return os.WriteFile(pkgrecord.Path(installDir), data, 0o644)
}

// InstallFromLocal implements installFromLocal(dir): reads a local stack
// manifest, replaces any existing install directory, copies recursively
// (excluding node_modules and .git), and writes install metadata recording
// source:"local".
func (inst *Installer) InstallFromLocal(dir string) (*pkgrecord.Record, error) {
	manifestPath := filepath.Join(dir, "stack.yaml")
	if _, err := os.Stat(manifestPath); err != nil {
		manifestPath = filepath.Join(dir, "manifest.yaml")
	}
	m, err := manifest.ParseStackFile(manifestPath)
	if err != nil {
		return nil, err
	}

	name := nameOf(m.ID)
	installDir := inst.Paths.InstallDir(rpaths.KindStack, name)
	if err := os.RemoveAll(installDir); err != nil {
		return nil, err
	}
	if err := copyTreeExcluding(dir, installDir, map[string]bool{"node_modules": true, ".git": true}); err != nil {
		return nil, err
	}

	rec := pkgrecord.Record{
		ID: m.ID, Kind: rpaths.KindStack, Name: m.Name, Version: m.Version,
		InstalledAt: pkgrecord.NowISO8601(), Source: pkgrecord.SourceLocal, SourcePath: dir,
	}
	if err := pkgrecord.Write(installDir, rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Uninstall removes the install directory and the derived lockfile for a
// package id.
func (inst *Installer) Uninstall(id string) error {
	kind, name, err := rpaths.ParsePackageID(id)
	if err != nil {
		return err
	}
	installDir := inst.Paths.InstallDir(kind, name)
	if err := os.RemoveAll(installDir); err != nil {
		return err
	}
	return os.Remove(inst.Paths.LockFilePath(kind, name))
}

// ListInstalled reads every kind directory's manifest.json (or legacy
// runtime.json), skipping dotfiles, and returns the merged records.
func (inst *Installer) ListInstalled() ([]pkgrecord.Record, error) {
	var out []pkgrecord.Record
	dirs := map[string]string{
		rpaths.KindStack: inst.Paths.Stacks, rpaths.KindPrompt: inst.Paths.Prompts,
		rpaths.KindRuntime: inst.Paths.Runtimes, rpaths.KindBinary: inst.Paths.Binaries,
		rpaths.KindAgent: inst.Paths.Agents,
	}
	for _, root := range dirs {
		entries, err := os.ReadDir(root)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		for _, e := range entries {
			if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			rec, err := pkgrecord.Read(filepath.Join(root, e.Name()))
			if err != nil {
				continue
			}
			out = append(out, *rec)
		}
	}
	return out, nil
}

// Update is semantically install(id, {force:true}).
func (inst *Installer) Update(ctx context.Context, id string) ([]Result, error) {
	return inst.InstallPackage(ctx, id, Options{Force: true})
}

// UpdateAll iterates the currently installed packages, updating each in
// turn and reporting per-package success/failure without aborting the
// batch.
func (inst *Installer) UpdateAll(ctx context.Context) ([]Result, error) {
	installed, err := inst.ListInstalled()
	if err != nil {
		return nil, err
	}
	var out []Result
	for _, rec := range installed {
		_, err := inst.Update(ctx, rec.ID)
		if err != nil {
			out = append(out, Result{Success: false, ID: rec.ID, Error: err.Error()})
			continue
		}
		out = append(out, Result{Success: true, ID: rec.ID})
	}
	return out, nil
}

func nameOf(id string) string {
	if idx := strings.IndexByte(id, ':'); idx >= 0 {
		return id[idx+1:]
	}
	return id
}

func shortVersion(v string) string {
	parts := strings.SplitN(v, ".", 2)
	return parts[0]
}

func copyTreeExcluding(src, dest string, excluded map[string]bool) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel != "." && excluded[info.Name()] {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		target := filepath.Join(dest, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, info.Mode())
	})
}

type notFoundErr struct{ id string }

func (e *notFoundErr) Error() string { return "no install strategy available for " + e.id }
