package resolver

import (
	"context"
	"strings"

	"github.com/rudi-cli/rudi/internal/pkgrecord"
	"github.com/rudi-cli/rudi/internal/registry"
	"github.com/rudi-cli/rudi/internal/rpaths"
	"github.com/rudi-cli/rudi/internal/rudierr"
)

// Resolver expands package IDs into dependency trees using a registry
// client and the on-disk install layout to derive "installed" flags.
type Resolver struct {
	Client *registry.Client
	Paths  rpaths.Paths
}

// New builds a Resolver bound to the given registry client and paths.
func New(client *registry.Client, paths rpaths.Paths) *Resolver {
	return &Resolver{Client: client, Paths: paths}
}

// Resolve normalises id (defaulting an unprefixed name to "stack:<name>"),
// fetches its descriptor, and recursively attaches its declared
// runtimes/binaries/agents as leaf children, per spec.md §4.D. Legacy
// singular fields (requires.runtime, requires.tools) are honored as a
// fallback when the plural forms are empty.
func (r *Resolver) Resolve(ctx context.Context, id string) (*ResolvedNode, error) {
	normalized := normalizeID(id)
	idx, err := r.Client.Index(ctx, false)
	if err != nil {
		return nil, err
	}
	return r.resolveNode(idx, normalized, true)
}

func normalizeID(id string) string {
	if strings.Contains(id, ":") {
		return id
	}
	return rpaths.CreatePackageID(rpaths.KindStack, id)
}

func (r *Resolver) resolveNode(idx *registry.Index, id string, recurseChildren bool) (*ResolvedNode, error) {
	desc, kind, ok := r.Client.GetPackage(idx, id)
	if !ok {
		return nil, &rudierr.PackageNotFound{ID: id}
	}
	node := &ResolvedNode{
		ID:        desc.ID,
		Kind:      kind,
		Name:      desc.Name,
		Version:   desc.Version,
		Installed: r.isInstalled(kind, nameOf(desc.ID)),
	}
	if !recurseChildren {
		return node, nil
	}

	deps := collectDependencyIDs(desc.Requires)
	for _, depID := range deps {
		child, err := r.resolveNode(idx, depID, false)
		if err != nil {
			// A missing declared dependency is not fatal to resolving the
			// parent; the installer will surface DependencyUnsatisfied when
			// it actually needs the artifact.
			continue
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

// collectDependencyIDs gathers requires.{runtimes,binaries,agents}, falling
// back to the legacy singular requires.runtime / requires.tools fields when
// the plural forms are empty, per spec.md §4.D.
func collectDependencyIDs(req registry.PackageRequires) []string {
	var out []string
	runtimes := req.Runtimes
	if len(runtimes) == 0 && req.Runtime != "" {
		runtimes = []string{req.Runtime}
	}
	for _, rt := range runtimes {
		out = append(out, rpaths.CreatePackageID(rpaths.KindRuntime, rt))
	}

	binaries := req.Binaries
	if len(binaries) == 0 && len(req.Tools) > 0 {
		binaries = req.Tools
	}
	for _, b := range binaries {
		out = append(out, rpaths.CreatePackageID(rpaths.KindBinary, b))
	}

	for _, a := range req.Agents {
		out = append(out, rpaths.CreatePackageID(rpaths.KindAgent, a))
	}
	return out
}

func nameOf(id string) string {
	if idx := strings.IndexByte(id, ':'); idx >= 0 {
		return id[idx+1:]
	}
	return id
}

func (r *Resolver) isInstalled(kind, name string) bool {
	dir := r.Paths.InstallDir(kind, name)
	return pkgrecord.Exists(dir)
}

// InstallOrder walks root in depth-first post-order, skipping nodes already
// marked installed and deduplicating by ID, so that every dependency
// precedes its dependent in the returned sequence.
func InstallOrder(root *ResolvedNode) []*ResolvedNode {
	visited := map[string]bool{}
	var order []*ResolvedNode
	var visit func(n *ResolvedNode)
	visit = func(n *ResolvedNode) {
		if n == nil || visited[n.ID] {
			return
		}
		visited[n.ID] = true
		for _, c := range n.Children {
			visit(c)
		}
		if !n.Installed {
			order = append(order, n)
		}
	}
	visit(root)
	return order
}
