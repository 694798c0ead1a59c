package agents

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// McpEntry is the MCP server entry written into a JSON-format agent's
// config file, under its MCPKey.
type McpEntry struct {
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Type    string            `json:"type,omitempty"`
	URL     string            `json:"url,omitempty"`
}

// writeJSONEntry patches entry into configPath under "/<mcpKey>/<stackID>".
// The file is read as JSONC but written back as standard JSON, so any
// comments in it are not kept.
func writeJSONEntry(configPath, mcpKey, stackID string, entry McpEntry) error {
	content, err := readConfigFile(configPath)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if content == "" {
		content = "{}"
	}

	root, err := hujson.Parse([]byte(content))
	if err != nil {
		return fmt.Errorf("parsing config %s: %w", configPath, err)
	}

	entryPtr := "/" + jsonPointerEscape(mcpKey) + "/" + jsonPointerEscape(stackID)
	op := "add"
	if root.Find(entryPtr) != nil {
		op = "replace"
	}

	topKeyPtr := "/" + jsonPointerEscape(mcpKey)
	if root.Find(topKeyPtr) == nil {
		topKeyPatch := fmt.Sprintf(`[{"op":"add","path":%q,"value":{}}]`, topKeyPtr)
		if err := root.Patch([]byte(topKeyPatch)); err != nil {
			return fmt.Errorf("creating config key %q: %w", mcpKey, err)
		}
	}

	valueJSON, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding entry: %w", err)
	}
	patch := fmt.Sprintf(`[{"op":%q,"path":%q,"value":%s}]`, op, entryPtr, valueJSON)
	if err := root.Patch([]byte(patch)); err != nil {
		return fmt.Errorf("writing MCP entry: %w", err)
	}

	return writeConfigFile(configPath, string(finalizeConfig(&root)))
}

// removeJSONEntry removes the "/<mcpKey>/<stackID>" entry, a no-op if
// either the file, the key, or the entry is missing.
func removeJSONEntry(configPath, mcpKey, stackID string) error {
	content, err := readConfigFile(configPath)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if content == "" {
		return nil
	}

	root, err := hujson.Parse([]byte(content))
	if err != nil {
		return fmt.Errorf("parsing config %s: %w", configPath, err)
	}

	entryPtr := "/" + jsonPointerEscape(mcpKey) + "/" + jsonPointerEscape(stackID)
	if root.Find(entryPtr) == nil {
		return nil
	}

	patch := fmt.Sprintf(`[{"op":"remove","path":%q}]`, entryPtr)
	if err := root.Patch([]byte(patch)); err != nil {
		return fmt.Errorf("removing MCP entry: %w", err)
	}

	return writeConfigFile(configPath, string(finalizeConfig(&root)))
}

// hasJSONEntry reports whether "/<mcpKey>/<stackID>" exists in configPath.
func hasJSONEntry(configPath, mcpKey, stackID string) bool {
	content, err := readConfigFile(configPath)
	if err != nil || content == "" {
		return false
	}
	root, err := hujson.Parse([]byte(content))
	if err != nil {
		return false
	}
	entryPtr := "/" + jsonPointerEscape(mcpKey) + "/" + jsonPointerEscape(stackID)
	return root.Find(entryPtr) != nil
}

func finalizeConfig(root *hujson.Value) []byte {
	root.Format()
	removeTrailingCommas(root)
	root.Standardize()
	return root.Pack()
}

func readConfigFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

func writeConfigFile(path string, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func jsonPointerEscape(s string) string {
	result := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '~':
			result = append(result, '~', '0')
		case '/':
			result = append(result, '~', '1')
		default:
			result = append(result, s[i])
		}
	}
	return string(result)
}

func removeTrailingCommas(v *hujson.Value) {
	switch vv := v.Value.(type) {
	case *hujson.Object:
		for i := range vv.Members {
			removeTrailingCommas(&vv.Members[i].Name)
			removeTrailingCommas(&vv.Members[i].Value)
		}
		if len(vv.Members) > 0 {
			vv.Members[len(vv.Members)-1].Value.AfterExtra = nil
		}
	case *hujson.Array:
		for i := range vv.Elements {
			removeTrailingCommas(&vv.Elements[i])
		}
		if len(vv.Elements) > 0 {
			vv.Elements[len(vv.Elements)-1].AfterExtra = nil
		}
	}
}
