// Package agents detects installed third-party AI-agent clients and
// writes/removes MCP server entries in their config files, per spec.md
// §4.H.
package agents

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ConfigFormat names the on-disk encoding of an agent's config file.
type ConfigFormat string

const (
	FormatJSON ConfigFormat = "json"
	FormatTOML ConfigFormat = "toml"
)

// Definition is one entry in the fixed nine-agent table.
type Definition struct {
	ID         string
	Name       string
	MCPKey     string // "mcpServers" | "context_servers" | "servers" | "mcp_servers" (TOML)
	Format     ConfigFormat
	IsAnthropic bool // carries type:"stdio" in its MCP entry
	candidatePaths func() []string
}

// CandidatePaths returns this agent's per-OS candidate config file paths,
// in priority order, with "~" and environment variables expanded.
func (d Definition) CandidatePaths() []string {
	return d.candidatePaths()
}

// ConfigPath returns the first existing candidate path, or "" if none
// exist — the registrar's definition of "installed".
func (d Definition) ConfigPath() (string, bool) {
	for _, p := range d.CandidatePaths() {
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

// DefaultConfigPath returns the first candidate path regardless of whether
// it exists yet, for first-time registration.
func (d Definition) DefaultConfigPath() string {
	paths := d.CandidatePaths()
	if len(paths) == 0 {
		return ""
	}
	return paths[0]
}

func home() string {
	h, _ := os.UserHomeDir()
	return h
}

func expand(p string) string {
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(home(), strings.TrimPrefix(p, "~/"))
	}
	return p
}

// Table is the fixed table of nine third-party agents.
var Table = []Definition{
	{
		ID: "claude_code", Name: "Claude Code", MCPKey: "mcpServers", Format: FormatJSON, IsAnthropic: true,
		candidatePaths: func() []string { return []string{expand("~/.claude.json")} },
	},
	{
		ID: "claude_desktop", Name: "Claude Desktop", MCPKey: "mcpServers", Format: FormatJSON, IsAnthropic: true,
		candidatePaths: func() []string { return []string{claudeDesktopConfigPath()} },
	},
	{
		ID: "cursor", Name: "Cursor", MCPKey: "mcpServers", Format: FormatJSON,
		candidatePaths: func() []string { return []string{expand("~/.cursor/mcp.json")} },
	},
	{
		ID: "codex", Name: "Codex CLI", MCPKey: "mcp_servers", Format: FormatTOML,
		candidatePaths: func() []string { return []string{expand("~/.codex/config.toml")} },
	},
	{
		ID: "gemini", Name: "Gemini CLI", MCPKey: "mcpServers", Format: FormatJSON,
		candidatePaths: func() []string { return []string{expand("~/.gemini/settings.json")} },
	},
	{
		ID: "cline", Name: "Cline", MCPKey: "mcpServers", Format: FormatJSON,
		candidatePaths: func() []string { return []string{clineConfigPath()} },
	},
	{
		ID: "zed", Name: "Zed", MCPKey: "context_servers", Format: FormatJSON,
		candidatePaths: func() []string { return []string{expand("~/.config/zed/settings.json")} },
	},
	{
		ID: "github_copilot", Name: "GitHub Copilot", MCPKey: "servers", Format: FormatJSON,
		candidatePaths: func() []string { return []string{expand("~/.config/github-copilot/mcp.json")} },
	},
	{
		ID: "windsurf", Name: "Windsurf", MCPKey: "mcpServers", Format: FormatJSON,
		candidatePaths: func() []string { return []string{expand("~/.codeium/windsurf/mcp_config.json")} },
	},
}

// clineConfigPath locates Cline's settings inside VS Code's per-extension
// globalStorage, the same layout VS Code uses for every extension.
func clineConfigPath() string {
	const globalStorage = "saoudrizwan.claude-dev/settings/cline_mcp_settings.json"
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home(), "Library", "Application Support", "Code", "User", "globalStorage", globalStorage)
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "Code", "User", "globalStorage", globalStorage)
	default:
		return filepath.Join(home(), ".config", "Code", "User", "globalStorage", globalStorage)
	}
}

func claudeDesktopConfigPath() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home(), "Library", "Application Support", "Claude", "claude_desktop_config.json")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "Claude", "claude_desktop_config.json")
	default:
		return filepath.Join(home(), ".config", "Claude", "claude_desktop_config.json")
	}
}

// ByID looks up a table entry by its stable id.
func ByID(id string) (Definition, bool) {
	for _, d := range Table {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}

// Filter returns the subset of Table whose IDs are in ids, preserving
// Table's order. A nil/empty ids returns the full Table.
func Filter(ids []string) []Definition {
	if len(ids) == 0 {
		return Table
	}
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []Definition
	for _, d := range Table {
		if want[d.ID] {
			out = append(out, d)
		}
	}
	return out
}
