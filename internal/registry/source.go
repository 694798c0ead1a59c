package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// SourceContentsBaseURL is the registry-hosting platform's contents-API
// base, used to list and fetch individual files of a stack/prompt's source
// directory, per spec.md §4.B.
const SourceContentsBaseURL = "https://api.registry.rudi.dev/contents"

// contentsEntry mirrors one element of the directory-listing response.
type contentsEntry struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // "file" | "dir"
	DownloadURL string `json:"download_url"`
}

var (
	optionalSourceFiles = []string{"package.json", ".env.example", "tsconfig.json", "requirements.txt"}
	recursiveSourceDirs = []string{"src", "dist", "node", "python", "lib"}
)

// DownloadSource implements the source-directory download strategy from
// spec.md §4.B: single-file ".md" descriptors are fetched verbatim, and
// directory descriptors are listed via the contents API, with
// "manifest.json" required, a handful of optional sibling files, and a
// fixed set of subdirectories recursed into when present.
func (c *Client) DownloadSource(ctx context.Context, repoPath, destDir string) error {
	if strings.HasSuffix(repoPath, ".md") {
		return c.downloadSingleFile(ctx, repoPath, filepath.Join(destDir, filepath.Base(repoPath)))
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	entries, err := c.listContents(ctx, repoPath)
	if err != nil {
		return err
	}

	if !hasFile(entries, "manifest.json") {
		return fmt.Errorf("source directory %s is missing manifest.json", repoPath)
	}
	if err := c.downloadEntry(ctx, entries, "manifest.json", destDir); err != nil {
		return err
	}
	for _, name := range optionalSourceFiles {
		if hasFile(entries, name) {
			if err := c.downloadEntry(ctx, entries, name, destDir); err != nil {
				return err
			}
		}
	}
	for _, dirName := range recursiveSourceDirs {
		if hasDir(entries, dirName) {
			if err := c.downloadDirRecursive(ctx, path.Join(repoPath, dirName), filepath.Join(destDir, dirName)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Client) downloadDirRecursive(ctx context.Context, repoPath, destDir string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	entries, err := c.listContents(ctx, repoPath)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Type == "dir" {
			if err := c.downloadDirRecursive(ctx, path.Join(repoPath, e.Name), filepath.Join(destDir, e.Name)); err != nil {
				return err
			}
			continue
		}
		if err := c.downloadFile(ctx, e.DownloadURL, filepath.Join(destDir, e.Name)); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) contentsBaseURL() string {
	if c.ContentsBaseURL != "" {
		return c.ContentsBaseURL
	}
	return SourceContentsBaseURL
}

func (c *Client) listContents(ctx context.Context, repoPath string) ([]contentsEntry, error) {
	url := c.contentsBaseURL() + "/" + strings.TrimPrefix(repoPath, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("listing contents of %s: status %d", repoPath, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var entries []contentsEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing contents listing for %s: %w", repoPath, err)
	}
	return entries, nil
}

func (c *Client) downloadEntry(ctx context.Context, entries []contentsEntry, name, destDir string) error {
	for _, e := range entries {
		if e.Name == name && e.Type == "file" {
			return c.downloadFile(ctx, e.DownloadURL, filepath.Join(destDir, name))
		}
	}
	return fmt.Errorf("entry %s not found in listing", name)
}

func (c *Client) downloadSingleFile(ctx context.Context, repoPath, destPath string) error {
	url := c.contentsBaseURL() + "/" + strings.TrimPrefix(repoPath, "/") + "?raw=1"
	return c.downloadFile(ctx, url, destPath)
}

func hasFile(entries []contentsEntry, name string) bool {
	for _, e := range entries {
		if e.Name == name && e.Type == "file" {
			return true
		}
	}
	return false
}

func hasDir(entries []contentsEntry, name string) bool {
	for _, e := range entries {
		if e.Name == name && e.Type == "dir" {
			return true
		}
	}
	return false
}
