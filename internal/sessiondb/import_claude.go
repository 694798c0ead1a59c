package sessiondb

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// claudeEvent is one line of a Claude-style transcript:
// ~/.claude/projects/<projectDir>/<sessionId>.jsonl.
type claudeEvent struct {
	Type    string `json:"type"` // "user" | "assistant"
	Message struct {
		Role    string              `json:"role"`
		Model   string              `json:"model"`
		Content []claudeContentPart `json:"content"`
		Usage   struct {
			InputTokens          int `json:"input_tokens"`
			OutputTokens         int `json:"output_tokens"`
			CacheReadInputTokens int `json:"cache_read_input_tokens"`
		} `json:"usage"`
	} `json:"message"`
	Cwd       string `json:"cwd"`
	Timestamp string `json:"timestamp"`
}

type claudeContentPart struct {
	Type  string `json:"type"` // "text" | "tool_use" | "tool_result"
	Text  string `json:"text"`
	Name  string `json:"name"` // tool name, when type == tool_use
}

// ImportClaudeProject imports every session under
// ~/.claude/projects/<projectDir>/*.jsonl.
func (db *DB) ImportClaudeProject(projectDir string, opts ImportOptions) (ImportResult, error) {
	var result ImportResult

	files, err := filepath.Glob(filepath.Join(projectDir, "*.jsonl"))
	if err != nil {
		return result, fmt.Errorf("listing claude transcripts: %w", err)
	}

	projectID, err := db.UpsertProject("claude", projectDir, filepath.Base(projectDir))
	if err != nil {
		return result, err
	}

	for _, f := range files {
		sessionID := strings.TrimSuffix(filepath.Base(f), ".jsonl")
		if opts.SkipExisting {
			exists, err := db.SessionExists("claude", sessionID)
			if err != nil {
				result.Errors = append(result.Errors, err.Error())
				continue
			}
			if exists {
				result.SessionsSkipped++
				continue
			}
		}

		session, turns, err := parseClaudeTranscript(f, projectID, sessionID, opts)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", f, err))
			continue
		}
		if opts.SkipDead && len(turns) == 0 {
			result.SessionsSkipped++
			continue
		}

		if err := db.priceTurns("claude", session.Model, turns); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", f, err))
			continue
		}

		if _, err := db.InsertSession(session, turns); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", f, err))
			continue
		}
		result.SessionsImported++
		result.TurnsImported += len(turns)
	}

	return result, nil
}

func parseClaudeTranscript(path, projectID, sessionID string, opts ImportOptions) (Session, []Turn, error) {
	f, err := os.Open(path)
	if err != nil {
		return Session{}, nil, err
	}
	defer f.Close()

	session := Session{Provider: "claude", ProviderSessionID: sessionID, ProjectID: projectID}
	var turns []Turn
	var pending *Turn
	turnNum := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev claudeEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			continue
		}
		if session.Cwd == "" {
			session.Cwd = ev.Cwd
		}
		if session.Model == "" && ev.Message.Model != "" {
			session.Model = ev.Message.Model
		}

		switch ev.Type {
		case "user":
			if pending != nil {
				turns = append(turns, *pending)
			}
			turnNum++
			text := claudeText(ev.Message.Content)
			pending = &Turn{TurnNumber: turnNum, Role: "user", UserText: text}
			if opts.InferTitles && session.Title == "" && text != "" {
				session.Title = truncate(text, 100)
			}
		case "assistant":
			if pending == nil {
				turnNum++
				pending = &Turn{TurnNumber: turnNum, Role: "user"}
			}
			pending.AssistantText += claudeText(ev.Message.Content)
			pending.InputTokens += ev.Message.Usage.InputTokens
			pending.OutputTokens += ev.Message.Usage.OutputTokens
			pending.CacheReadTokens += ev.Message.Usage.CacheReadInputTokens
			pending.ToolsUsed = append(pending.ToolsUsed, claudeToolNames(ev.Message.Content)...)
		}
	}
	if pending != nil {
		turns = append(turns, *pending)
	}
	if err := scanner.Err(); err != nil {
		return session, turns, err
	}

	return session, turns, nil
}

// claudeText joins the text parts of a message, dropping tool_result
// parts per spec.md §4.I's Provider A rule.
func claudeText(parts []claudeContentPart) string {
	var sb strings.Builder
	for _, p := range parts {
		if p.Type != "text" {
			continue
		}
		sb.WriteString(p.Text)
	}
	return sb.String()
}

func claudeToolNames(parts []claudeContentPart) []string {
	var names []string
	for _, p := range parts {
		if p.Type == "tool_use" && p.Name != "" {
			names = append(names, p.Name)
		}
	}
	return names
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
