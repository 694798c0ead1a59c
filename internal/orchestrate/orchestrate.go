// Package orchestrate ties the resolver, installer, config store, agent
// registrar, and MCP indexer together into the install/uninstall control
// flow B->C->D->E->F->G->H (registry -> resolve -> install -> config ->
// secrets -> index -> register), per spec.md §2. The teacher's
// core.Orchestrator plays the same connective role for a single package
// kind (skills/MCPs); this generalizes it across all five.
package orchestrate

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rudi-cli/rudi/internal/agents"
	"github.com/rudi-cli/rudi/internal/configstore"
	"github.com/rudi-cli/rudi/internal/installer"
	"github.com/rudi-cli/rudi/internal/manifest"
	"github.com/rudi-cli/rudi/internal/mcpindex"
	"github.com/rudi-cli/rudi/internal/pkgrecord"
	"github.com/rudi-cli/rudi/internal/registry"
	"github.com/rudi-cli/rudi/internal/resolver"
	"github.com/rudi-cli/rudi/internal/rpaths"
)

// SecretResolver is the trait spec.md §1 carves secret storage out behind.
// internal/secrets.Store is the default file-backed implementation.
type SecretResolver = mcpindex.SecretResolver

// Orchestrator wires the engine's components around a single rudi home.
type Orchestrator struct {
	Client    *registry.Client
	Resolver  *resolver.Resolver
	Installer *installer.Installer
	Config    *configstore.Store
	Indexer   *mcpindex.Indexer
	Paths     rpaths.Paths

	// TargetAgents restricts MCP registration/indexing to this subset of
	// agent IDs; nil means every installed agent, per spec.md §4.H.
	TargetAgents []string
}

// New builds an Orchestrator from its collaborators.
func New(client *registry.Client, res *resolver.Resolver, inst *installer.Installer, cfg *configstore.Store, idx *mcpindex.Indexer, paths rpaths.Paths) *Orchestrator {
	return &Orchestrator{Client: client, Resolver: res, Installer: inst, Config: cfg, Indexer: idx, Paths: paths}
}

// Result reports the outcome of InstallPackage: the underlying per-node
// install results, plus — for a root stack install — the agent
// registrations and discovered tool inventory.
type Result struct {
	Installs      []installer.Result
	Registrations map[string]agents.RegisterResult
	Tools         []mcpindex.Tool
	IndexError    string
}

// InstallPackage installs id via the installer, then — if id's kind is
// stack — re-reads the merged manifest.json the installer wrote, records
// the stack in the config store, registers its MCP entry into every
// installed agent, and indexes its tool inventory back into the config
// store. Runtimes and binaries are recorded in the config store too;
// prompts and agents need no further wiring beyond the install itself.
func (o *Orchestrator) InstallPackage(ctx context.Context, id string, opts installer.Options) (*Result, error) {
	installs, err := o.Installer.InstallPackage(ctx, id, opts)
	result := &Result{Installs: installs}
	if err != nil {
		return result, err
	}

	kind, name, perr := rpaths.ParsePackageID(id)
	if perr != nil {
		return result, nil
	}
	installDir := o.Paths.InstallDir(kind, name)

	switch kind {
	case rpaths.KindRuntime:
		if rec, rerr := pkgrecord.Read(installDir); rerr == nil {
			_ = o.Config.AddRuntime(rec.ID, configstore.RuntimeInfo{ID: rec.ID, Name: rec.Name, Version: rec.Version, Path: installDir, InstalledAt: rec.InstalledAt})
		}
		return result, nil
	case rpaths.KindBinary:
		if rec, rerr := pkgrecord.Read(installDir); rerr == nil {
			_ = o.Config.AddBinary(rec.ID, configstore.BinaryInfo{ID: rec.ID, Name: rec.Name, Version: rec.Version, Path: installDir, InstalledAt: rec.InstalledAt})
		}
		return result, nil
	case rpaths.KindStack:
		// Registration continues below.
	default:
		return result, nil
	}

	if err := o.registerStack(installDir, result); err != nil {
		return result, fmt.Errorf("registering %s: %w", id, err)
	}
	return result, nil
}

// registerStack performs the config/agent/index wiring for a freshly
// installed stack directory.
func (o *Orchestrator) registerStack(installDir string, result *Result) error {
	m, err := manifest.ParseStackFile(pkgrecord.Path(installDir))
	if err != nil {
		return fmt.Errorf("reading installed manifest: %w", err)
	}

	if err := o.Config.AddStack(m.ID, configstore.StackAddInfo{
		Name: m.Name, Version: m.Version, Path: installDir,
		Command: m.Command, Runtime: m.Runtime, Secrets: m.Requires.Secrets,
	}, o.Installer.BundledRuntimeBin); err != nil {
		return err
	}

	env := o.resolveSecretEnv(installDir, m.Requires.Secrets)
	result.Registrations = agents.RegisterMcpAll(m.ID, installDir, agents.StackManifest{Command: m.Command}, env, o.TargetAgents)

	return o.reindexStack(m.ID, result)
}

// reindexStack runs the MCP tool indexer against stackID's current launch
// config and persists the result into the config store, per spec.md §4.G.
func (o *Orchestrator) reindexStack(stackID string, result *Result) error {
	if o.Indexer == nil {
		return nil
	}
	cfg, err := o.Config.Read()
	if err != nil {
		return err
	}
	stack, ok := cfg.Stacks[stackID]
	if !ok {
		return fmt.Errorf("stack %s missing from config after AddStack", stackID)
	}

	idxResult := o.Indexer.IndexStack(stackID, stack.Launch, stack.SecretNames())
	result.Tools = idxResult.Tools
	result.IndexError = idxResult.Error
	if idxResult.Error != "" {
		return nil
	}

	tools := make([]configstore.ToolInfo, len(idxResult.Tools))
	for i, t := range idxResult.Tools {
		tools[i] = configstore.ToolInfo{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema}
	}
	return o.Config.UpdateStackTools(stackID, tools)
}

// resolveSecretEnv builds the env overlay for a stack's MCP entry: declared
// secret values from the secrets store, then any non-empty value in the
// stack's own .env file, which wins per spec.md §4.H.
func (o *Orchestrator) resolveSecretEnv(installDir string, names []string) map[string]string {
	env := map[string]string{}
	if o.Indexer != nil && o.Indexer.Secrets != nil {
		for _, name := range names {
			if v, ok := o.Indexer.Secrets.Value(name); ok {
				env[name] = v
			}
		}
	}

	dotenv, err := agents.ReadEnvFile(filepath.Join(installDir, ".env"))
	if err != nil {
		return env
	}
	for k, v := range dotenv {
		if v != "" {
			env[k] = v
		}
	}
	return env
}

// Uninstall unregisters a stack's MCP entries, removes its config-store
// record (and any secrets no other stack still requires), then removes its
// install directory and lockfile.
func (o *Orchestrator) Uninstall(id string) error {
	kind, name, err := rpaths.ParsePackageID(id)
	if err != nil {
		return err
	}
	fullID := rpaths.CreatePackageID(kind, name)

	if kind == rpaths.KindStack {
		agents.UnregisterMcpAll(fullID, o.TargetAgents)
		if err := o.Config.RemoveStack(fullID); err != nil {
			return fmt.Errorf("removing stack from config: %w", err)
		}
	}
	return o.Installer.Uninstall(fullID)
}

// ReindexAll re-runs the MCP tool indexer against every stack currently in
// the config store and persists the refreshed tool lists, per spec.md
// §4.G's "rebuilt on demand" cache lifecycle.
func (o *Orchestrator) ReindexAll() ([]mcpindex.StackResult, error) {
	if o.Indexer == nil {
		return nil, nil
	}
	cfg, err := o.Config.Read()
	if err != nil {
		return nil, err
	}

	specs := make([]mcpindex.StackSpec, 0, len(cfg.Stacks))
	for id, st := range cfg.Stacks {
		specs = append(specs, mcpindex.StackSpec{ID: id, Launch: st.Launch, Secrets: st.SecretNames()})
	}
	results := o.Indexer.IndexAll(specs)

	for _, r := range results {
		if r.Error != "" {
			continue
		}
		tools := make([]configstore.ToolInfo, len(r.Tools))
		for i, t := range r.Tools {
			tools[i] = configstore.ToolInfo{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema}
		}
		if err := o.Config.UpdateStackTools(r.ID, tools); err != nil {
			return results, err
		}
	}
	return results, nil
}
