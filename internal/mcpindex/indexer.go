package mcpindex

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rudi-cli/rudi/internal/configstore"
)

// Tool is a normalized MCP tool descriptor.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"inputSchema"`
}

// StackResult is the outcome of indexing one stack.
type StackResult struct {
	ID             string
	Tools          []Tool
	Error          string
	MissingSecrets []string
}

// SecretResolver answers whether a stack's declared secrets are all
// configured, and resolves their values for the subprocess environment.
type SecretResolver interface {
	IsConfigured(name string) bool
	Value(name string) (string, bool)
}

// Indexer spawns each installed stack and asks it for its tool inventory.
type Indexer struct {
	Secrets           SecretResolver
	BundledRuntimeBin func(tag string) []string // PATH-prepend dirs for a runtime tag
	Timeout           time.Duration
	ClientName        string
	ClientVersion     string
}

// New builds an Indexer with the spec's default 15s per-stack timeout.
func New(secrets SecretResolver) *Indexer {
	return &Indexer{
		Secrets: secrets, Timeout: defaultTimeout,
		ClientName: "rudi", ClientVersion: "1.0.0",
	}
}

// IndexStack spawns one stack, performs the MCP handshake, calls
// tools/list, and returns its normalized tool inventory. Spawn errors,
// missing secrets, non-zero exits, and timeouts are all captured in
// StackResult.Error rather than propagated, per spec.md §4.G.
func (idx *Indexer) IndexStack(stackID string, launch configstore.LaunchConfig, secretNames []string) StackResult {
	var missing []string
	for _, s := range secretNames {
		if idx.Secrets == nil || !idx.Secrets.IsConfigured(s) {
			missing = append(missing, s)
		}
	}
	if len(missing) > 0 {
		return StackResult{
			ID: stackID, MissingSecrets: missing,
			Error: fmt.Sprintf("Missing required secrets: %s", strings.Join(missing, ", ")),
		}
	}

	if launch.Bin != "" {
		if _, err := exec.LookPath(launch.Bin); err != nil {
			if _, statErr := os.Stat(launch.Bin); statErr != nil {
				return StackResult{ID: stackID, Error: fmt.Sprintf("launch binary not found: %s", launch.Bin)}
			}
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), idx.effectiveTimeout())
	defer cancel()

	cmd := exec.CommandContext(ctx, launch.Bin, launch.Args...)
	cmd.Dir = launch.Cwd
	cmd.Env = idx.buildEnv(secretNames)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return StackResult{ID: stackID, Error: err.Error()}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return StackResult{ID: stackID, Error: err.Error()}
	}
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return StackResult{ID: stackID, Error: fmt.Sprintf("spawn failed: %v", err)}
	}
	defer func() {
		_ = stdin.Close()
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}()

	client := newStdioClient(cmd, stdin, stdout)
	go client.readLoop()

	if _, err := client.call(ctx, "initialize", map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": idx.ClientName, "version": idx.ClientVersion},
	}); err != nil {
		return StackResult{ID: stackID, Error: timeoutOrErr(ctx, err, idx.effectiveTimeout())}
	}

	if err := client.notify("notifications/initialized", map[string]any{}); err != nil {
		return StackResult{ID: stackID, Error: err.Error()}
	}

	result, err := client.call(ctx, "tools/list", map[string]any{})
	if err != nil {
		return StackResult{ID: stackID, Error: timeoutOrErr(ctx, err, idx.effectiveTimeout())}
	}

	return StackResult{ID: stackID, Tools: normalizeTools(result)}
}

func timeoutOrErr(ctx context.Context, err error, timeout time.Duration) string {
	if ctx.Err() != nil {
		return fmt.Sprintf("Timeout after %dms", timeout.Milliseconds())
	}
	return err.Error()
}

func (idx *Indexer) effectiveTimeout() time.Duration {
	if idx.Timeout <= 0 {
		return defaultTimeout
	}
	return idx.Timeout
}

func (idx *Indexer) buildEnv(secretNames []string) []string {
	env := os.Environ()
	for _, name := range secretNames {
		if idx.Secrets == nil {
			continue
		}
		if v, ok := idx.Secrets.Value(name); ok {
			env = append(env, name+"="+v)
		}
	}
	if idx.BundledRuntimeBin != nil {
		var prepend []string
		for _, tag := range []string{"node", "python"} {
			prepend = append(prepend, idx.BundledRuntimeBin(tag)...)
		}
		if len(prepend) > 0 {
			env = prependPath(env, prepend)
		}
	}
	return env
}

func prependPath(env []string, dirs []string) []string {
	for i, e := range env {
		if strings.HasPrefix(e, "PATH=") {
			env[i] = "PATH=" + strings.Join(dirs, string(os.PathListSeparator)) + string(os.PathListSeparator) + strings.TrimPrefix(e, "PATH=")
			return env
		}
	}
	return append(env, "PATH="+strings.Join(dirs, string(os.PathListSeparator)))
}

// normalizeTools maps a raw tools/list result into Tool values, filling
// defaults per spec.md §4.G: description falls back to name, inputSchema
// falls back to an empty object schema.
func normalizeTools(raw json.RawMessage) []Tool {
	var parsed struct {
		Tools []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			InputSchema any    `json:"inputSchema"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil
	}
	out := make([]Tool, 0, len(parsed.Tools))
	for _, t := range parsed.Tools {
		desc := t.Description
		if desc == "" {
			desc = t.Name
		}
		schema := t.InputSchema
		if schema == nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out = append(out, Tool{Name: t.Name, Description: desc, InputSchema: schema})
	}
	return out
}

// DefaultCwd resolves launch.Cwd, falling back to stackPath when unset.
func DefaultCwd(launch configstore.LaunchConfig, stackPath string) string {
	if launch.Cwd != "" {
		return launch.Cwd
	}
	return stackPath
}
