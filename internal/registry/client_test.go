package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func sampleIndex() Index {
	return Index{
		Stacks: KindBucket{
			Official: []PackageDescriptor{
				{ID: "stack:release-notes", Name: "Release Notes", Version: "1.0.0", Description: "Summarize a release", Tags: []string{"writing"}},
			},
			Community: []PackageDescriptor{
				{ID: "stack:pr-reviewer", Name: "PR Reviewer", Version: "0.3.0"},
			},
		},
		Binaries: KindBucket{
			Official: []PackageDescriptor{
				{ID: "binary:ripgrep", Name: "ripgrep", Version: "13.0.0"},
			},
		},
	}
}

func TestClientIndexUsesFreshCache(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "cache.json")
	idx := sampleIndex()
	data, _ := json.Marshal(idx)
	if err := os.WriteFile(cachePath, data, 0o644); err != nil {
		t.Fatal(err)
	}

	c := &Client{CachePath: cachePath, HTTPClient: http.DefaultClient}
	got, err := c.Index(context.Background(), false)
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if len(got.Stacks.Official) != 1 || got.Stacks.Official[0].ID != "stack:release-notes" {
		t.Errorf("unexpected index contents: %+v", got.Stacks)
	}
}

func TestClientIndexStaleCacheFetchesRemote(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "cache.json")
	old := sampleIndex()
	data, _ := json.Marshal(old)
	if err := os.WriteFile(cachePath, data, 0o644); err != nil {
		t.Fatal(err)
	}
	stale := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(cachePath, stale, stale); err != nil {
		t.Fatal(err)
	}

	remoteIdx := sampleIndex()
	remoteIdx.Stacks.Official[0].Version = "2.0.0"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(remoteIdx)
	}))
	defer srv.Close()

	c := &Client{CachePath: cachePath, IndexURL: srv.URL, HTTPClient: srv.Client()}
	got, err := c.Index(context.Background(), false)
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if got.Stacks.Official[0].Version != "2.0.0" {
		t.Errorf("expected refreshed version 2.0.0, got %s", got.Stacks.Official[0].Version)
	}
}

func TestClientIndexFallsBackToLocalOnFetchFailure(t *testing.T) {
	dir := t.TempDir()
	localPath := filepath.Join(dir, "local.json")
	idx := sampleIndex()
	data, _ := json.Marshal(idx)
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		t.Fatal(err)
	}

	c := &Client{
		CachePath:      filepath.Join(dir, "missing-cache.json"),
		IndexURL:       "http://127.0.0.1:1", // unreachable
		LocalIndexPath: localPath,
		HTTPClient:     &http.Client{Timeout: 200 * time.Millisecond},
	}
	got, err := c.Index(context.Background(), false)
	if err != nil {
		t.Fatalf("expected fallback to local index, got error: %v", err)
	}
	if got.Stacks.Official[0].ID != "stack:release-notes" {
		t.Errorf("unexpected fallback contents: %+v", got)
	}
}

func TestClientSearch(t *testing.T) {
	idx := sampleIndex()
	c := &Client{}
	hits := c.Search(&idx, "review", "")
	if len(hits) != 1 || hits[0].Descriptor.ID != "stack:pr-reviewer" {
		t.Errorf("Search = %+v, want single pr-reviewer hit", hits)
	}
}

func TestClientGetPackageByBareName(t *testing.T) {
	idx := sampleIndex()
	c := &Client{}
	d, kind, ok := c.GetPackage(&idx, "ripgrep")
	if !ok {
		t.Fatal("expected to find ripgrep")
	}
	if kind != "binary" || d.ID != "binary:ripgrep" {
		t.Errorf("GetPackage = %+v/%s, want binary:ripgrep", d, kind)
	}
}

func TestClientGetPackageMissing(t *testing.T) {
	idx := sampleIndex()
	c := &Client{}
	if _, _, ok := c.GetPackage(&idx, "stack:does-not-exist"); ok {
		t.Error("expected missing package lookup to fail")
	}
}
