package agents

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
)

// tomlMcpEntry mirrors the fields Codex expects under
// [mcp_servers.<id>] — command, args, and an optional env table.
type tomlMcpEntry struct {
	Command string            `toml:"command"`
	Args    []string          `toml:"args,omitempty"`
	Env     map[string]string `toml:"env,omitempty"`
}

func tableHeader(stackID string) string {
	return fmt.Sprintf("[mcp_servers.%s]", tomlQuoteKeyIfNeeded(stackID))
}

func tomlQuoteKeyIfNeeded(s string) string {
	for _, r := range s {
		if !(r == '-' || r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return fmt.Sprintf("%q", s)
		}
	}
	return s
}

// tableBlockRegexp finds an existing "[mcp_servers.<id>]" table (with the
// id quoted the same way tableHeader quotes it), its own
// "[mcp_servers.<id>.…]" sub-tables, and everything up to (but not
// including) the next other table header, or EOF.
func tableBlockRegexp(stackID string) *regexp.Regexp {
	header := tableHeader(stackID)
	sub := regexp.QuoteMeta(strings.TrimSuffix(header, "]") + ".")
	return regexp.MustCompile(`(?m)^` + regexp.QuoteMeta(header) + `[ \t\r]*(?:\n|\z)(?:(?:[^\[\n][^\n]*|` + sub + `[^\n]*)?(?:\n|\z))*`)
}

// writeTOMLEntry patches configPath, adding or replacing the
// "[mcp_servers.<stackID>]" table, preserving a blank line before each
// table header — the convention this agent's config uses.
func writeTOMLEntry(configPath, stackID string, entry tomlMcpEntry) error {
	content, err := readConfigFile(configPath)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	var body bytes.Buffer
	body.WriteString(tableHeader(stackID))
	body.WriteString("\n")
	env := entry.Env
	entry.Env = nil
	enc := toml.NewEncoder(&body)
	if err := enc.Encode(entry); err != nil {
		return fmt.Errorf("encoding MCP entry: %w", err)
	}
	if len(env) > 0 {
		body.WriteString("\n" + strings.TrimSuffix(tableHeader(stackID), "]") + ".env]\n")
		if err := toml.NewEncoder(&body).Encode(env); err != nil {
			return fmt.Errorf("encoding MCP entry env: %w", err)
		}
	}
	block := body.String()

	re := tableBlockRegexp(stackID)
	var next string
	if loc := re.FindStringIndex(content); loc != nil {
		rest := content[loc[1]:]
		if rest != "" {
			block += "\n"
		}
		next = content[:loc[0]] + block + rest
	} else {
		trimmed := strings.TrimRight(content, "\n")
		if trimmed == "" {
			next = block
		} else {
			next = trimmed + "\n\n" + block
		}
	}

	return writeConfigFile(configPath, next)
}

// removeTOMLEntry deletes the "[mcp_servers.<stackID>]" table and its
// body, a no-op if absent.
func removeTOMLEntry(configPath, stackID string) error {
	content, err := readConfigFile(configPath)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if content == "" {
		return nil
	}
	re := tableBlockRegexp(stackID)
	loc := re.FindStringIndex(content)
	if loc == nil {
		return nil
	}
	next := content[:loc[0]] + content[loc[1]:]
	next = strings.TrimRight(next, "\n") + "\n"
	return writeConfigFile(configPath, next)
}

// hasTOMLEntry reports whether "[mcp_servers.<stackID>]" exists.
func hasTOMLEntry(configPath, stackID string) bool {
	content, err := readConfigFile(configPath)
	if err != nil || content == "" {
		return false
	}
	return tableBlockRegexp(stackID).MatchString(content)
}

// parseTOMLDocument decodes the whole of configPath into a generic map,
// returning an empty map when the file does not exist.
func parseTOMLDocument(configPath string) (map[string]any, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}
	var doc map[string]any
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", configPath, err)
	}
	return doc, nil
}
