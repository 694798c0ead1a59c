package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rudi-cli/rudi/internal/rpaths"
	"github.com/rudi-cli/rudi/internal/rudierr"
)

const (
	cacheMaxAge   = 24 * time.Hour
	defaultURL    = "https://registry.rudi.dev/index.json"
	httpTimeout   = 60 * time.Second
	lruCacheSize  = 512
)

// Client fetches, caches and searches the registry index, and downloads
// package artifacts.
type Client struct {
	IndexURL        string
	CachePath       string
	LocalIndexPath  string
	UseLocal        bool
	HTTPClient      *http.Client
	ContentsBaseURL string // overrides SourceContentsBaseURL when non-empty; mainly for tests

	descCache *lru.Cache[string, PackageDescriptor]
}

// NewClient builds a Client rooted at the given rudi paths. localIndexPath,
// when non-empty, is the development-override index consulted per
// spec.md §4.B; useLocal mirrors the USE_LOCAL_REGISTRY env toggle.
func NewClient(p rpaths.Paths, localIndexPath string, useLocal bool) *Client {
	cache, _ := lru.New[string, PackageDescriptor](lruCacheSize)
	return &Client{
		IndexURL:       defaultURL,
		CachePath:      p.TmpIndex,
		LocalIndexPath: localIndexPath,
		UseLocal:       useLocal,
		HTTPClient:     &http.Client{Timeout: httpTimeout},
		descCache:      cache,
	}
}

// Index returns the current registry index, respecting the local-override
// and cache-freshness rules from spec.md §4.B:
//   - the local index wins when useLocal is set and its mtime is newer than
//     the cache (or refresh is forced);
//   - otherwise a cache hit younger than 24h is returned as-is;
//   - otherwise the client fetches over HTTP and refreshes the cache;
//   - on fetch failure it falls back to the local index if present, else
//     returns RegistryUnavailable.
func (c *Client) Index(ctx context.Context, forceRefresh bool) (*Index, error) {
	if c.UseLocal && c.LocalIndexPath != "" {
		if c.localNewerThanCache() || forceRefresh {
			if idx, err := c.readLocalIndex(); err == nil {
				return idx, nil
			}
		}
	}

	if !forceRefresh {
		if idx, ok := c.readCacheIfFresh(); ok {
			return idx, nil
		}
	}

	idx, err := c.fetchAndCache(ctx)
	if err == nil {
		return idx, nil
	}

	if c.LocalIndexPath != "" {
		if local, lerr := c.readLocalIndex(); lerr == nil {
			return local, nil
		}
	}
	return nil, &rudierr.RegistryUnavailable{Cause: err}
}

func (c *Client) localNewerThanCache() bool {
	localInfo, err := os.Stat(c.LocalIndexPath)
	if err != nil {
		return false
	}
	cacheInfo, err := os.Stat(c.CachePath)
	if err != nil {
		// No cache yet: local wins.
		return true
	}
	return localInfo.ModTime().After(cacheInfo.ModTime())
}

func (c *Client) readLocalIndex() (*Index, error) {
	data, err := os.ReadFile(c.LocalIndexPath)
	if err != nil {
		return nil, err
	}
	return decodeIndex(data)
}

func (c *Client) readCacheIfFresh() (*Index, bool) {
	info, err := os.Stat(c.CachePath)
	if err != nil {
		return nil, false
	}
	if time.Since(info.ModTime()) > cacheMaxAge {
		return nil, false
	}
	data, err := os.ReadFile(c.CachePath)
	if err != nil {
		return nil, false
	}
	idx, err := decodeIndex(data)
	if err != nil {
		return nil, false
	}
	return idx, true
}

func (c *Client) fetchAndCache(ctx context.Context) (*Index, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.IndexURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &rudierr.DownloadFailed{URL: c.IndexURL, Status: resp.StatusCode}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	idx, err := decodeIndex(data)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(c.CachePath), 0o755); err == nil {
		_ = os.WriteFile(c.CachePath, data, 0o644)
	}
	return idx, nil
}

func decodeIndex(data []byte) (*Index, error) {
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parsing registry index: %w", err)
	}
	return &idx, nil
}

// Search performs a case-insensitive substring match over id, name,
// description, and the space-joined tags of every descriptor, optionally
// restricted to one kind. Without a kind filter every kind is searched in
// the fixed order from rpaths.AllKinds.
func (c *Client) Search(idx *Index, query string, kind string) []SearchHit {
	q := strings.ToLower(query)
	var hits []SearchHit
	kinds := rpaths.AllKinds
	if kind != "" {
		kinds = []string{kind}
	}
	for _, k := range kinds {
		bucket := idx.bucket(k)
		if bucket == nil {
			continue
		}
		for _, d := range bucket.All() {
			haystack := strings.ToLower(strings.Join([]string{
				d.ID, d.Name, d.Description, strings.Join(d.Tags, " "),
			}, " "))
			if strings.Contains(haystack, q) {
				hits = append(hits, SearchHit{Kind: k, Descriptor: d})
			}
		}
	}
	return hits
}

// GetPackage resolves a bare or fully-qualified id to its descriptor. When
// the id has no "<kind>:" prefix every kind is scanned. A descriptor
// matches when its own id equals the query exactly, or when its id with any
// valid kind prefix stripped equals the (unprefixed) query name.
func (c *Client) GetPackage(idx *Index, id string) (*PackageDescriptor, string, bool) {
	if c.descCache != nil {
		if d, ok := c.descCache.Get(id); ok {
			kind, _, _ := rpaths.ParsePackageID(d.ID)
			return &d, kind, true
		}
	}

	wantKind, wantName, err := rpaths.ParsePackageID(id)
	kinds := rpaths.AllKinds
	explicitKind := err == nil && strings.Contains(id, ":")
	if explicitKind {
		kinds = []string{wantKind}
	}

	for _, k := range kinds {
		bucket := idx.bucket(k)
		if bucket == nil {
			continue
		}
		for _, d := range bucket.All() {
			name := stripKindPrefix(d.ID)
			if d.ID == id || (explicitKind && name == wantName) || (!explicitKind && name == id) {
				if c.descCache != nil {
					c.descCache.Add(id, d)
				}
				return &d, k, true
			}
		}
	}
	return nil, "", false
}

func stripKindPrefix(id string) string {
	for _, k := range rpaths.AllKinds {
		if strings.HasPrefix(id, k+":") {
			return strings.TrimPrefix(id, k+":")
		}
	}
	return id
}
