package installer

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/rudi-cli/rudi/internal/pkgrecord"
	"github.com/rudi-cli/rudi/internal/resolver"
	"gopkg.in/yaml.v3"
)

// LockfileDependency is one dependency entry recorded alongside its parent
// Lockfile, per spec.md §3.
type LockfileDependency struct {
	ID       string `yaml:"id"`
	Version  string `yaml:"version"`
	Checksum string `yaml:"checksum"`
}

// Lockfile is the deterministic per-package record written after a
// successful install, at locks/<kind-plural>/<name>.lock.yaml.
type Lockfile struct {
	ID           string                `yaml:"id"`
	Kind         string                `yaml:"kind"`
	Name         string                `yaml:"name"`
	Version      string                `yaml:"version"`
	InstalledAt  string                `yaml:"installedAt"`
	Checksum     string                `yaml:"checksum"`
	Dependencies []LockfileDependency  `yaml:"dependencies,omitempty"`
}

// lockChecksum is a short hex digest of a stable serialisation of a
// package's identifying fields — not a content hash of its install
// artifacts, per spec.md §3.
func lockChecksum(id, version string) string {
	sum := sha256.Sum256([]byte(id + "@" + version))
	return hex.EncodeToString(sum[:8])
}

func (inst *Installer) writeLockfile(node *resolver.ResolvedNode) error {
	deps := make([]LockfileDependency, len(node.Children))
	for i, c := range node.Children {
		deps[i] = LockfileDependency{ID: c.ID, Version: c.Version, Checksum: lockChecksum(c.ID, c.Version)}
	}

	lf := Lockfile{
		ID: node.ID, Kind: node.Kind, Name: nameOf(node.ID), Version: node.Version,
		InstalledAt: pkgrecord.NowISO8601(), Checksum: lockChecksum(node.ID, node.Version),
		Dependencies: deps,
	}
	data, err := yaml.Marshal(lf)
	if err != nil {
		return err
	}
	path := inst.Paths.LockFilePath(node.Kind, nameOf(node.ID))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
