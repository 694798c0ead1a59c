package agents

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rudi-cli/rudi/internal/configstore"
)

// StackManifest is the minimal shape of a stack's manifest this package
// needs to build an MCP entry, independent of the full manifest.Stack type.
type StackManifest struct {
	Command []string
	MCP     *LegacyMCP // legacy "mcp" object form
}

// LegacyMCP is the pre-command-array manifest shape: {command, args, entry?}.
type LegacyMCP struct {
	Command string
	Args    []string
	Entry   string
}

// RegisterResult is one agent's outcome from a register/unregister call.
type RegisterResult struct {
	Success    bool   `json:"success"`
	Skipped    bool   `json:"skipped,omitempty"`
	Reason     string `json:"reason,omitempty"`
	ConfigPath string `json:"configPath,omitempty"`
	Error      string `json:"error,omitempty"`
}

// buildMcpConfig derives the MCP entry for a stack from its manifest, per
// spec.md §4.H. Returns ok=false when the stack declares no launchable
// command (not an MCP stack) — callers should skip silently.
func buildMcpConfig(m StackManifest, installPath string, env map[string]string) (McpEntry, bool) {
	var bin string
	var args []string

	switch {
	case len(m.Command) > 0:
		bin, args = m.Command[0], append([]string{}, m.Command[1:]...)
	case m.MCP != nil:
		bin, args = m.MCP.Command, append([]string{}, m.MCP.Args...)
	default:
		return McpEntry{}, false
	}

	args = configstore.ResolvePathLikeArgs(args, installPath)
	bin, args = optimizeCompiledEntry(bin, args, installPath)

	return McpEntry{Command: bin, Args: args, Env: env}, true
}

// optimizeCompiledEntry rewrites an "npx tsx <src>.ts" invocation to the
// compiled "node <dist>.js" sibling when that build artifact exists,
// per spec.md §4.H's compiled-entry optimisation.
func optimizeCompiledEntry(bin string, args []string, installPath string) (string, []string) {
	if filepath.Base(bin) != "npx" {
		return bin, args
	}
	hasTsx := false
	var tsFile string
	for _, a := range args {
		if a == "tsx" {
			hasTsx = true
			continue
		}
		if strings.HasSuffix(a, ".ts") {
			tsFile = a
		}
	}
	if !hasTsx || tsFile == "" {
		return bin, args
	}

	compiled := compiledSiblingPath(tsFile)
	if compiled == "" {
		return bin, args
	}
	abs := compiled
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(installPath, abs)
	}
	if _, err := os.Stat(abs); err != nil {
		return bin, args
	}
	return "node", []string{abs}
}

// compiledSiblingPath maps "src/X.ts" to "dist/X.js"; returns "" if the
// path doesn't follow that convention.
func compiledSiblingPath(tsPath string) string {
	parts := strings.SplitN(filepath.ToSlash(tsPath), "/", 2)
	if len(parts) != 2 || parts[0] != "src" {
		return ""
	}
	rest := strings.TrimSuffix(parts[1], ".ts")
	return filepath.Join("dist", rest+".js")
}

// applyAnthropicQuirk sets type:"stdio" on entries destined for Anthropic's
// own agents, per spec.md §4.H's agent-family quirk.
func applyAnthropicQuirk(entry McpEntry, d Definition) McpEntry {
	if d.IsAnthropic {
		entry.Type = "stdio"
	}
	return entry
}

// RegisterMcpAll inserts or replaces stackID's MCP entry in every installed
// agent (optionally filtered to targetAgents), per spec.md §4.H.
func RegisterMcpAll(stackID, installPath string, manifest StackManifest, env map[string]string, targetAgents []string) map[string]RegisterResult {
	results := make(map[string]RegisterResult)
	entry, ok := buildMcpConfig(manifest, installPath, env)
	if !ok {
		for _, d := range Filter(targetAgents) {
			results[d.ID] = RegisterResult{Skipped: true, Reason: "stack has no launchable command"}
		}
		return results
	}

	for _, d := range Filter(targetAgents) {
		configPath, installed := d.ConfigPath()
		if !installed {
			results[d.ID] = RegisterResult{Skipped: true, Reason: "agent not installed"}
			continue
		}

		agentEntry := applyAnthropicQuirk(entry, d)

		var err error
		if d.Format == FormatTOML {
			err = writeTOMLEntry(configPath, stackID, tomlMcpEntry{Command: agentEntry.Command, Args: agentEntry.Args, Env: agentEntry.Env})
		} else {
			err = writeJSONEntry(configPath, d.MCPKey, stackID, agentEntry)
		}

		if err != nil {
			results[d.ID] = RegisterResult{Error: err.Error(), ConfigPath: configPath}
			continue
		}
		results[d.ID] = RegisterResult{Success: true, ConfigPath: configPath}
	}
	return results
}

// UnregisterMcpAll removes stackID's MCP entry from every installed agent
// (optionally filtered), a no-op (skipped:true) where the key or entry is
// absent, per spec.md §4.H.
func UnregisterMcpAll(stackID string, targetAgents []string) map[string]RegisterResult {
	results := make(map[string]RegisterResult)
	for _, d := range Filter(targetAgents) {
		configPath, installed := d.ConfigPath()
		if !installed {
			results[d.ID] = RegisterResult{Skipped: true, Reason: "agent not installed"}
			continue
		}

		var has bool
		var err error
		if d.Format == FormatTOML {
			has = hasTOMLEntry(configPath, stackID)
			if has {
				err = removeTOMLEntry(configPath, stackID)
			}
		} else {
			has = hasJSONEntry(configPath, d.MCPKey, stackID)
			if has {
				err = removeJSONEntry(configPath, d.MCPKey, stackID)
			}
		}

		if !has {
			results[d.ID] = RegisterResult{Skipped: true, Reason: "entry not present", ConfigPath: configPath}
			continue
		}
		if err != nil {
			results[d.ID] = RegisterResult{Error: err.Error(), ConfigPath: configPath}
			continue
		}
		results[d.ID] = RegisterResult{Success: true, ConfigPath: configPath}
	}
	return results
}

// RegistrationStatus is one agent's current registration state for a
// stack, as reported by GetMcpRegistrationSummary.
type RegistrationStatus struct {
	AgentID    string `json:"agentId"`
	AgentName  string `json:"agentName"`
	Installed  bool   `json:"installed"`
	Registered bool   `json:"registered"`
	ConfigPath string `json:"configPath,omitempty"`
}

// GetMcpRegistrationSummary reports, without mutating anything, whether
// stackID is registered in each agent's config. An empty stackID reports
// installed/not-installed status only.
func GetMcpRegistrationSummary(stackID string) []RegistrationStatus {
	out := make([]RegistrationStatus, 0, len(Table))
	for _, d := range Table {
		st := RegistrationStatus{AgentID: d.ID, AgentName: d.Name}
		configPath, installed := d.ConfigPath()
		st.Installed = installed
		if !installed || stackID == "" {
			out = append(out, st)
			continue
		}
		st.ConfigPath = configPath
		if d.Format == FormatTOML {
			st.Registered = hasTOMLEntry(configPath, stackID)
		} else {
			st.Registered = hasJSONEntry(configPath, d.MCPKey, stackID)
		}
		out = append(out, st)
	}
	return out
}
