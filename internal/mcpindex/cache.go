package mcpindex

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CacheEntry is one stack's cached tool inventory.
type CacheEntry struct {
	IndexedAt      string   `json:"indexedAt"`
	Tools          []Tool   `json:"tools"`
	Error          string   `json:"error,omitempty"`
	MissingSecrets []string `json:"missingSecrets,omitempty"`
}

// cacheVersion is the tool-index cache document's schema version, per
// spec.md §3.
const cacheVersion = 1

// Cache is the top-level tool-index cache document, written atomically to
// paths.ToolIndex.
type Cache struct {
	Version   int                   `json:"version"`
	UpdatedAt string                `json:"updatedAt"`
	ByStack   map[string]CacheEntry `json:"byStack"`
}

// BuildCache converts a batch of StackResult into a Cache document with a
// fresh UpdatedAt/IndexedAt timestamp.
func BuildCache(results []StackResult) Cache {
	now := time.Now().UTC().Format(time.RFC3339)
	c := Cache{Version: cacheVersion, UpdatedAt: now, ByStack: map[string]CacheEntry{}}
	for _, r := range results {
		c.ByStack[r.ID] = CacheEntry{IndexedAt: now, Tools: r.Tools, Error: r.Error, MissingSecrets: r.MissingSecrets}
	}
	return c
}

// WriteCache serialises c to path via temp-file-then-rename, with mode
// 0600 on the temp file, per spec.md §4.G.
func WriteCache(path string, c Cache) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling tool index cache: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing tool index cache: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("saving tool index cache: %w", err)
	}
	return nil
}

// ReadCache loads a previously written Cache, or an empty Cache if the file
// doesn't yet exist.
func ReadCache(path string) (Cache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Cache{Version: cacheVersion, ByStack: map[string]CacheEntry{}}, nil
		}
		return Cache{}, err
	}
	var c Cache
	if err := json.Unmarshal(data, &c); err != nil {
		return Cache{}, fmt.Errorf("parsing tool index cache: %w", err)
	}
	return c, nil
}
