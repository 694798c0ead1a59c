package sessiondb

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// codexEvent is one line of a Codex-style transcript:
// ~/.codex/sessions/YYYY/MM/DD/<uuid>.jsonl.
type codexEvent struct {
	Type      string `json:"type"` // "session_meta" | "turn_context" | "event_msg"
	Timestamp string `json:"timestamp"`
	Payload   struct {
		Model string `json:"model"`
		Cwd   string `json:"cwd"`
	} `json:"payload"`
	EventMsg struct {
		Type    string `json:"type"` // "user_message" | "function_call" | "agent_message"
		Message string `json:"message"`
		Name    string `json:"name"` // function name, for function_call
		LastTokenUsage struct {
			InputTokens      int `json:"input_tokens"`
			OutputTokens     int `json:"output_tokens"`
			CachedInputTokens int `json:"cached_input_tokens"`
		} `json:"last_token_usage"`
	} `json:"event_msg"`
}

// ImportCodexSessions imports every *.jsonl transcript beneath root
// (the ~/.codex/sessions tree, walked recursively by date).
func (db *DB) ImportCodexSessions(root string, opts ImportOptions) (ImportResult, error) {
	var result ImportResult

	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() && strings.HasSuffix(path, ".jsonl") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("walking codex sessions: %w", err)
	}

	projectID, err := db.UpsertProject("codex", root, filepath.Base(root))
	if err != nil {
		return result, err
	}

	for _, f := range files {
		sessionID := strings.TrimSuffix(filepath.Base(f), ".jsonl")
		if opts.SkipExisting {
			exists, err := db.SessionExists("codex", sessionID)
			if err != nil {
				result.Errors = append(result.Errors, err.Error())
				continue
			}
			if exists {
				result.SessionsSkipped++
				continue
			}
		}

		session, turns, err := parseCodexTranscript(f, projectID, sessionID, opts)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", f, err))
			continue
		}
		if opts.SkipDead && len(turns) == 0 {
			result.SessionsSkipped++
			continue
		}

		if err := db.priceTurns("codex", session.Model, turns); err != nil {
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

func parseCodexTranscript(path, projectID, sessionID string, opts ImportOptions) (Session, []Turn, error) {
	f, err := os.Open(path)
	if err != nil {
		return Session{}, nil, err
	}
	defer f.Close()

	session := Session{Provider: "codex", ProviderSessionID: sessionID, ProjectID: projectID}
	var turns []Turn
	var pending *Turn
	turnNum := 0

	// Each event's last_token_usage is that event's own usage; it is added
	// to the current turn. No running-total field is read.

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev codexEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			continue
		}

		switch ev.Type {
		case "session_meta", "turn_context":
			if ev.Payload.Model != "" {
				session.Model = ev.Payload.Model
			}
			if ev.Payload.Cwd != "" {
				session.Cwd = ev.Payload.Cwd
			}
		case "event_msg":
			switch ev.EventMsg.Type {
			case "user_message":
				if pending != nil {
					turns = append(turns, *pending)
				}
				turnNum++
				pending = &Turn{TurnNumber: turnNum, Role: "user", UserText: ev.EventMsg.Message}
				if opts.InferTitles && session.Title == "" && ev.EventMsg.Message != "" {
					session.Title = truncate(ev.EventMsg.Message, 100)
				}
			case "agent_message":
				if pending == nil {
					turnNum++
					pending = &Turn{TurnNumber: turnNum, Role: "user"}
				}
				pending.AssistantText += ev.EventMsg.Message
			case "function_call":
				if pending != nil && ev.EventMsg.Name != "" {
					pending.ToolsUsed = append(pending.ToolsUsed, ev.EventMsg.Name)
				}
			}

			if pending != nil {
				u := ev.EventMsg.LastTokenUsage
				pending.InputTokens += u.InputTokens
				pending.OutputTokens += u.OutputTokens
				pending.CacheReadTokens += u.CachedInputTokens
			}
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
