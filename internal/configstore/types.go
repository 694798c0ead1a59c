// Package configstore owns the single atomic JSON document describing
// installed runtimes, stacks, binaries, and required secrets, per
// spec.md §4.F.
package configstore

// SecretProvider identifies where a secret's value is read from.
type SecretProvider string

const (
	ProviderKeychain    SecretProvider = "keychain"
	ProviderSecretsFile SecretProvider = "secrets.json"
	ProviderEnv         SecretProvider = "env"
)

// LaunchConfig is the resolved process-launch shape for a stack, derived by
// createLaunchConfig.
type LaunchConfig struct {
	Bin  string   `json:"bin"`
	Args []string `json:"args"`
	Cwd  string   `json:"cwd"`
}

// SecretRequirement is one entry in StackInfo.Secrets: the secret's name and
// whether component G must refuse to spawn the stack when it's unconfigured.
type SecretRequirement struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
}

// StackInfo is one installed stack's config-store record.
type StackInfo struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Version     string              `json:"version"`
	Path        string              `json:"path"`
	Command     []string            `json:"command,omitempty"`
	Runtime     string              `json:"runtime,omitempty"`
	Launch      LaunchConfig        `json:"launch"`
	Secrets     []SecretRequirement `json:"secrets,omitempty"`
	Tools       []ToolInfo          `json:"tools,omitempty"`
	InstalledAt string              `json:"installedAt"`
}

// SecretNames returns the bare names of info's declared secrets, for callers
// (the MCP indexer, agent registration) that only need the name list.
func (s StackInfo) SecretNames() []string {
	names := make([]string, len(s.Secrets))
	for i, req := range s.Secrets {
		names[i] = req.Name
	}
	return names
}

// ToolInfo is one normalized MCP tool descriptor, per spec.md §4.G.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"inputSchema"`
}

// RuntimeInfo is one installed runtime's config-store record.
type RuntimeInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	Path        string `json:"path"`
	InstalledAt string `json:"installedAt"`
}

// BinaryInfo is one installed standalone binary's config-store record.
type BinaryInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	Path        string `json:"path"`
	InstalledAt string `json:"installedAt"`
}

// SecretMeta tracks a secret's configuration status without storing its
// value — values live behind whatever SecretProvider is named here.
type SecretMeta struct {
	Name        string         `json:"name"`
	Stack       string         `json:"stack,omitempty"`
	Provider    SecretProvider `json:"provider"`
	Configured  bool           `json:"configured"`
	Required    bool           `json:"required"`
	LastUpdated string         `json:"lastUpdated,omitempty"`
}

// Config is the single JSON document persisted at <home>/<app>.json.
type Config struct {
	Version       int                    `json:"version"`
	SchemaVersion int                    `json:"schemaVersion"`
	Installed     bool                   `json:"installed"`
	InstalledAt   string                 `json:"installedAt"`
	UpdatedAt     string                 `json:"updatedAt"`
	Stacks        map[string]StackInfo   `json:"stacks"`
	Runtimes      map[string]RuntimeInfo `json:"runtimes"`
	Binaries      map[string]BinaryInfo  `json:"binaries"`
	Secrets       map[string]SecretMeta  `json:"secrets"`
}

const configVersion = 1
const schemaVersion = 1

// createRudiConfig returns the default empty configuration document, stamped
// with the instant it was first created.
func createRudiConfig(now string) Config {
	return Config{
		Version:       configVersion,
		SchemaVersion: schemaVersion,
		Installed:     true,
		InstalledAt:   now,
		UpdatedAt:     now,
		Stacks:        map[string]StackInfo{},
		Runtimes:      map[string]RuntimeInfo{},
		Binaries:      map[string]BinaryInfo{},
		Secrets:       map[string]SecretMeta{},
	}
}

// StackAddInfo is the caller-supplied shape for addStack, before launch
// config derivation and secret registration.
type StackAddInfo struct {
	Name    string
	Version string
	Path    string
	Command []string
	Runtime string
	Secrets []string
}
