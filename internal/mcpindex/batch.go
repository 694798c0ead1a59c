package mcpindex

import "github.com/rudi-cli/rudi/internal/configstore"

// StackSpec is the minimal shape the batch indexer needs for one stack.
type StackSpec struct {
	ID      string
	Launch  configstore.LaunchConfig
	Secrets []string
}

// IndexAll indexes every stack sequentially, to bound memory and avoid
// saturating stdio, per spec.md §4.G, and returns one StackResult per spec.
func (idx *Indexer) IndexAll(stacks []StackSpec) []StackResult {
	results := make([]StackResult, 0, len(stacks))
	for _, s := range stacks {
		results = append(results, idx.IndexStack(s.ID, s.Launch, s.Secrets))
	}
	return results
}
