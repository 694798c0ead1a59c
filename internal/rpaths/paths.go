// Package rpaths resolves the well-known directory layout beneath
// $HOME/.rudi/ and encodes the "<os>-<arch>" platform tag used throughout
// the installer and registry client. It has zero dependencies on the rest
// of rudi and is independently testable.
package rpaths

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rudi-cli/rudi/internal/rudierr"
)

const homeDirName = ".rudi"

// Paths holds every well-known path beneath the rudi home directory.
// It is a value type: constructing one never touches the filesystem.
type Paths struct {
	Home      string
	Packages  string
	Stacks    string
	Prompts   string
	Runtimes  string
	Binaries  string
	Agents    string
	Store     string
	Bins      string
	Locks     string
	Vault     string
	DB        string
	Cache     string
	Config    string
	Logs      string
	Downloads string

	ConfigFile  string
	SecretsFile string
	DBFile      string
	TmpIndex    string
	ToolIndex   string
}

// New resolves Paths beneath the given home directory override, or beneath
// the user's real home directory when override is empty.
func New(override string) (Paths, error) {
	home := override
	if home == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, fmt.Errorf("resolving home directory: %w", err)
		}
		home = h
	}
	root := filepath.Join(home, homeDirName)
	p := Paths{
		Home:      root,
		Packages:  filepath.Join(root, "packages"),
		Stacks:    filepath.Join(root, "stacks"),
		Prompts:   filepath.Join(root, "prompts"),
		Runtimes:  filepath.Join(root, "runtimes"),
		Binaries:  filepath.Join(root, "binaries"),
		Agents:    filepath.Join(root, "agents"),
		Store:     filepath.Join(root, "store"),
		Bins:      filepath.Join(root, "bins"),
		Locks:     filepath.Join(root, "locks"),
		Vault:     filepath.Join(root, "vault"),
		DB:        filepath.Join(root, "db"),
		Cache:     filepath.Join(root, "cache"),
		Config:    root,
		Logs:      filepath.Join(root, "logs"),
		Downloads: filepath.Join(root, "cache", "downloads"),
	}
	p.ConfigFile = filepath.Join(root, "rudi.json")
	p.SecretsFile = filepath.Join(root, "secrets.json")
	p.DBFile = filepath.Join(p.DB, "rudi.db")
	p.TmpIndex = filepath.Join(p.Cache, "registry.json")
	p.ToolIndex = filepath.Join(p.Cache, "tool-index.json")
	return p, nil
}

// EnsureDirectories creates every directory in Paths that does not yet
// exist. It is idempotent.
func (p Paths) EnsureDirectories() error {
	dirs := []string{
		p.Home, p.Packages, p.Stacks, p.Prompts, p.Runtimes, p.Binaries,
		p.Agents, p.Store, p.Bins, p.Locks, p.Vault, p.DB, p.Cache, p.Logs,
		p.Downloads,
	}
	for _, kind := range []string{"stacks", "prompts", "runtimes", "binaries", "agents"} {
		dirs = append(dirs, filepath.Join(p.Locks, kind))
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}
	return nil
}

// LockFilePath returns the per-package lockfile path for the given kind and
// name, applying the "binary" -> "binaries" pluralisation rule.
func (p Paths) LockFilePath(kind, name string) string {
	return filepath.Join(p.Locks, pluralizeKind(kind), name+".lock.yaml")
}

// InstallDir returns the install directory for a given kind/name pair.
func (p Paths) InstallDir(kind, name string) string {
	switch kind {
	case KindStack:
		return filepath.Join(p.Stacks, name)
	case KindPrompt:
		return filepath.Join(p.Prompts, name)
	case KindRuntime:
		return filepath.Join(p.Runtimes, name)
	case KindBinary:
		return filepath.Join(p.Binaries, name)
	case KindAgent:
		return filepath.Join(p.Agents, name)
	default:
		return filepath.Join(p.Packages, kind, name)
	}
}

func pluralizeKind(kind string) string {
	switch kind {
	case KindBinary:
		return "binaries"
	default:
		return kind + "s"
	}
}

// Package kinds, per spec.md §3.
const (
	KindStack   = "stack"
	KindPrompt  = "prompt"
	KindRuntime = "runtime"
	KindBinary  = "binary"
	KindAgent   = "agent"
)

// AllKinds lists the five package kinds in the fixed search order used by
// the registry client.
var AllKinds = []string{KindStack, KindPrompt, KindRuntime, KindBinary, KindAgent}

func isValidKind(k string) bool {
	for _, v := range AllKinds {
		if v == k {
			return true
		}
	}
	return false
}

// ParsePackageID splits a fully qualified or short package ID into its kind
// and name. A short ID with no "<kind>:" prefix defaults to "stack". An ID
// prefixed with a string that is not one of the five known kinds is treated
// as an unprefixed name only when the prefix isn't followed by a colon;
// otherwise it fails with InvalidPackageID.
func ParsePackageID(id string) (kind, name string, err error) {
	if id == "" {
		return "", "", &rudierr.InvalidPackageID{ID: id}
	}
	if idx := strings.Index(id, ":"); idx >= 0 {
		prefix, rest := id[:idx], id[idx+1:]
		if !isValidKind(prefix) {
			return "", "", &rudierr.InvalidPackageID{ID: id}
		}
		if rest == "" {
			return "", "", &rudierr.InvalidPackageID{ID: id}
		}
		return prefix, rest, nil
	}
	return KindStack, id, nil
}

// CreatePackageID composes a fully qualified package ID from its kind and
// name. ParsePackageID(CreatePackageID(kind, name)) returns (kind, name)
// for any known kind.
func CreatePackageID(kind, name string) string {
	return kind + ":" + name
}

// PlatformArch returns the "<os>-<arch>" platform tag for the current
// process, normalising GOARCH values to "x64" or "arm64". Other
// architectures pass through unchanged.
func PlatformArch() string {
	return osArch(runtime.GOOS, runtime.GOARCH)
}

func osArch(goos, goarch string) string {
	arch := goarch
	switch goarch {
	case "amd64":
		arch = "x64"
	case "arm64":
		arch = "arm64"
	}
	return goos + "-" + arch
}
