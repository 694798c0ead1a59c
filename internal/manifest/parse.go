package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseStackFile loads a stack.yaml/manifest.yaml (or .json) file, applies
// normalisation, and validates it against the stack JSON Schema.
func ParseStackFile(path string) (*StackManifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading stack manifest %s: %w", path, err)
	}
	return ParseStackBytes(raw, path, isJSON(path))
}

// ParseStackBytes parses raw stack-manifest bytes already loaded from disk
// (used by the registry client, which downloads manifest.json over HTTP).
func ParseStackBytes(raw []byte, source string, jsonFormat bool) (*StackManifest, error) {
	generic, err := decodeGeneric(raw, jsonFormat)
	if err != nil {
		return nil, fmt.Errorf("parsing stack manifest %s: %w", source, err)
	}
	normalizeStackDoc(generic)

	docJSON, err := toJSONBytes(generic)
	if err != nil {
		return nil, err
	}
	if err := validate(KindStack, source, mustAny(docJSON)); err != nil {
		return nil, err
	}

	var m StackManifest
	if err := json.Unmarshal(docJSON, &m); err != nil {
		return nil, fmt.Errorf("decoding stack manifest %s: %w", source, err)
	}
	m.Extra = extraFields(generic, knownStackFields)
	return &m, nil
}

// ParsePromptFile loads a prompt manifest and its sibling prompt.md, if the
// manifest has no inline template.
func ParsePromptFile(path string) (*PromptManifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading prompt manifest %s: %w", path, err)
	}
	m, err := ParsePromptBytes(raw, path, isJSON(path))
	if err != nil {
		return nil, err
	}
	if m.Template == "" {
		sidecar := filepath.Join(filepath.Dir(path), "prompt.md")
		if data, err := os.ReadFile(sidecar); err == nil {
			m.Template = string(data)
		}
	}
	return m, nil
}

// ParsePromptBytes parses raw prompt-manifest bytes.
func ParsePromptBytes(raw []byte, source string, jsonFormat bool) (*PromptManifest, error) {
	generic, err := decodeGeneric(raw, jsonFormat)
	if err != nil {
		return nil, fmt.Errorf("parsing prompt manifest %s: %w", source, err)
	}
	normalizeIDField(generic, prefixPrompt)

	docJSON, err := toJSONBytes(generic)
	if err != nil {
		return nil, err
	}
	if err := validate(KindPrompt, source, mustAny(docJSON)); err != nil {
		return nil, err
	}

	var m PromptManifest
	if err := json.Unmarshal(docJSON, &m); err != nil {
		return nil, fmt.Errorf("decoding prompt manifest %s: %w", source, err)
	}
	return &m, nil
}

// ParseRuntimeFile loads a runtime manifest.
func ParseRuntimeFile(path string) (*RuntimeManifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading runtime manifest %s: %w", path, err)
	}
	return ParseRuntimeBytes(raw, path, isJSON(path))
}

// ParseRuntimeBytes parses raw runtime-manifest bytes.
func ParseRuntimeBytes(raw []byte, source string, jsonFormat bool) (*RuntimeManifest, error) {
	generic, err := decodeGeneric(raw, jsonFormat)
	if err != nil {
		return nil, fmt.Errorf("parsing runtime manifest %s: %w", source, err)
	}
	normalizeIDField(generic, prefixRuntime)

	docJSON, err := toJSONBytes(generic)
	if err != nil {
		return nil, err
	}
	if err := validate(KindRuntime, source, mustAny(docJSON)); err != nil {
		return nil, err
	}

	var m RuntimeManifest
	if err := json.Unmarshal(docJSON, &m); err != nil {
		return nil, fmt.Errorf("decoding runtime manifest %s: %w", source, err)
	}
	return &m, nil
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

func decodeGeneric(raw []byte, jsonFormat bool) (map[string]any, error) {
	var generic map[string]any
	if jsonFormat {
		if err := json.Unmarshal(raw, &generic); err != nil {
			return nil, err
		}
		return generic, nil
	}
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return generic, nil
}

func toJSONBytes(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("re-encoding manifest as json: %w", err)
	}
	return data, nil
}

func mustAny(data []byte) any {
	v, err := decodeToAny(data)
	if err != nil {
		// Already round-tripped through json.Marshal above, so this can't
		// realistically fail; treat as empty document rather than panic.
		return map[string]any{}
	}
	return v
}

// normalizeStackDoc ensures the id has the "stack:" prefix, coerces a
// singleton "command" string into a one-element array, and folds legacy
// singular requirement fields ("runtime", "tools"), found either at the
// document root or under "requires", into their plural form.
func normalizeStackDoc(doc map[string]any) {
	normalizeIDField(doc, prefixStack)

	if cmd, ok := doc["command"].(string); ok {
		doc["command"] = []any{cmd}
	}

	reqRaw, _ := doc["requires"].(map[string]any)
	if reqRaw == nil {
		reqRaw = map[string]any{}
	}
	if legacy, ok := doc["runtime"].(string); ok && legacy != "" {
		reqRaw["runtimes"] = appendUnique(toStringSlice(reqRaw["runtimes"]), legacy)
	}
	if legacy, ok := doc["tools"]; ok {
		reqRaw["binaries"] = appendUnique(toStringSlice(reqRaw["binaries"]), toStringSlice(legacy)...)
	}
	if legacy, ok := reqRaw["runtime"].(string); ok && legacy != "" {
		reqRaw["runtimes"] = appendUnique(toStringSlice(reqRaw["runtimes"]), legacy)
	}
	if legacy, ok := reqRaw["tools"]; ok {
		reqRaw["binaries"] = appendUnique(toStringSlice(reqRaw["binaries"]), toStringSlice(legacy)...)
	}
	for _, key := range []string{"runtimes", "binaries", "agents", "npm", "pip", "secrets"} {
		if singleton, ok := reqRaw[key].(string); ok {
			reqRaw[key] = []any{singleton}
		}
	}
	if len(reqRaw) > 0 {
		doc["requires"] = reqRaw
	}
}

func normalizeIDField(doc map[string]any, prefix string) {
	id, _ := doc["id"].(string)
	if id == "" {
		return
	}
	if !strings.Contains(id, ":") {
		doc["id"] = prefix + id
	}
}

func toStringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{vv}
	default:
		return nil
	}
}

func appendUnique(base []string, add ...string) []any {
	seen := make(map[string]bool, len(base))
	out := make([]any, 0, len(base)+len(add))
	for _, b := range base {
		if !seen[b] {
			seen[b] = true
			out = append(out, b)
		}
	}
	for _, a := range add {
		if a != "" && !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	return out
}

var knownStackFields = map[string]bool{
	"id": true, "name": true, "version": true, "description": true,
	"requires": true, "inputs": true, "outputs": true, "entry": true,
	"command": true, "runtime": true, "tools": true,
}

// extraFields captures any top-level document keys not modelled by
// StackManifest, so round-tripping a manifest never silently drops fields
// the registry may have written that this version of rudi doesn't know
// about yet.
func extraFields(doc map[string]any, known map[string]bool) map[string]json.RawMessage {
	out := map[string]json.RawMessage{}
	for k, v := range doc {
		if known[k] {
			continue
		}
		data, err := json.Marshal(v)
		if err != nil {
			continue
		}
		out[k] = data
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
