package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestDownloadSourceFetchesManifestAndRecursiveDirs(t *testing.T) {
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/stacks/demo", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]contentsEntry{
			{Name: "manifest.json", Type: "file", DownloadURL: srvURL + "/raw/manifest.json"},
			{Name: "src", Type: "dir"},
		})
	})
	mux.HandleFunc("/stacks/demo/src", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]contentsEntry{
			{Name: "index.js", Type: "file", DownloadURL: srvURL + "/raw/index.js"},
		})
	})
	mux.HandleFunc("/raw/manifest.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"stack:demo"}`))
	})
	mux.HandleFunc("/raw/index.js", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`console.log("hi")`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	c := &Client{HTTPClient: srv.Client(), ContentsBaseURL: srv.URL}
	destDir := t.TempDir()
	if err := c.DownloadSource(context.Background(), "stacks/demo", destDir); err != nil {
		t.Fatalf("DownloadSource: %v", err)
	}
	if _, err := os.Stat(filepath.Join(destDir, "manifest.json")); err != nil {
		t.Errorf("manifest.json missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(destDir, "src", "index.js")); err != nil {
		t.Errorf("src/index.js missing: %v", err)
	}
}

func TestDownloadSourceSingleMarkdownFile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/prompts/release-notes.md", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# Release notes template"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := &Client{HTTPClient: srv.Client(), ContentsBaseURL: srv.URL}
	destDir := t.TempDir()
	if err := c.DownloadSource(context.Background(), "prompts/release-notes.md", destDir); err != nil {
		t.Fatalf("DownloadSource: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(destDir, "release-notes.md"))
	if err != nil {
		t.Fatalf("reading downloaded markdown: %v", err)
	}
	if string(data) != "# Release notes template" {
		t.Errorf("unexpected content: %s", data)
	}
}
