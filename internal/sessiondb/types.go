package sessiondb

import "time"

// Project groups sessions by provider-scoped working directory.
type Project struct {
	ID          string
	Provider    string
	ProjectDir  string
	DisplayName string
	CreatedAt   time.Time
}

// Session is one imported conversation.
type Session struct {
	ID                string
	ProjectID         string
	Provider          string
	ProviderSessionID string
	Title             string
	Model             string
	Cwd               string
	StartedAt         time.Time
	EndedAt           time.Time
	TurnCount         int
	TotalCostUSD      float64
}

// Turn is one user+assistant exchange within a Session.
type Turn struct {
	ID              string
	SessionID       string
	TurnNumber      int
	Role            string
	UserText        string
	AssistantText   string
	InputTokens     int
	OutputTokens    int
	CacheReadTokens int
	CostUSD         float64
	ToolsUsed       []string // JSON-encoded into tools_used
}

// ImportResult summarises one provider import run.
type ImportResult struct {
	SessionsImported int
	SessionsSkipped  int
	TurnsImported    int
	Errors           []string
}

// ImportOptions controls dedup/title-inference behavior shared by all
// three provider importers, per spec.md §4.I.
type ImportOptions struct {
	SkipExisting bool
	SkipDead     bool
	InferTitles  bool
}
