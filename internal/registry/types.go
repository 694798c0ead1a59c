// Package registry implements the registry client: index fetch and cache,
// package search and lookup, and artifact download/extraction into the
// content-addressed install directories under $HOME/.rudi/.
package registry

import "encoding/json"

// DownloadEntry is one artifact download hint for a specific platform tag.
type DownloadEntry struct {
	URL    string `json:"url"`
	Type   string `json:"type,omitempty"` // zip|tar.gz|tgz|tar.xz
	Binary string `json:"binary,omitempty"`
}

// PackageDescriptor is one entry in the registry index, as defined in
// spec.md §3.
type PackageDescriptor struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Path        string   `json:"path,omitempty"`

	NPMPackage string   `json:"npmPackage,omitempty"`
	PipPackage string   `json:"pipPackage,omitempty"`
	Binary     string   `json:"binary,omitempty"`
	Binaries   []string `json:"binaries,omitempty"`

	Downloads map[string][]DownloadEntry `json:"downloads,omitempty"`

	// Legacy single-URL variant.
	Upstream map[string]string `json:"upstream,omitempty"`
	Extract  map[string]string `json:"extract,omitempty"`

	Requires PackageRequires `json:"requires,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// PackageRequires mirrors manifest.Requires for descriptors fetched
// straight from the registry index (before any manifest parsing happens).
type PackageRequires struct {
	Runtimes []string `json:"runtimes,omitempty"`
	Binaries []string `json:"binaries,omitempty"`
	Agents   []string `json:"agents,omitempty"`

	// Legacy singular fallbacks, per spec.md §4.D.
	Runtime string `json:"runtime,omitempty"`
	Tools   []string `json:"tools,omitempty"`
}

// KindBucket holds the official/community split for one package kind.
type KindBucket struct {
	Official  []PackageDescriptor `json:"official"`
	Community []PackageDescriptor `json:"community"`
}

// Index is the top-level registry document, keyed by pluralised kind.
type Index struct {
	Stacks   KindBucket `json:"stacks"`
	Prompts  KindBucket `json:"prompts"`
	Runtimes KindBucket `json:"runtimes"`
	Binaries KindBucket `json:"binaries"`
	Agents   KindBucket `json:"agents"`
}

// bucket returns the KindBucket for a singular kind name ("stack", not
// "stacks"), or nil if the kind is unknown.
func (idx *Index) bucket(kind string) *KindBucket {
	switch kind {
	case "stack":
		return &idx.Stacks
	case "prompt":
		return &idx.Prompts
	case "runtime":
		return &idx.Runtimes
	case "binary":
		return &idx.Binaries
	case "agent":
		return &idx.Agents
	default:
		return nil
	}
}

// All returns every descriptor in a bucket (official then community).
func (b KindBucket) All() []PackageDescriptor {
	out := make([]PackageDescriptor, 0, len(b.Official)+len(b.Community))
	out = append(out, b.Official...)
	out = append(out, b.Community...)
	return out
}

// SearchHit is a search result with its kind attached.
type SearchHit struct {
	Kind       string
	Descriptor PackageDescriptor
}
