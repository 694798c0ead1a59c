package sessiondb

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
)

// ImportGeminiSessions imports every logs.json document beneath root (the
// ~/.gemini/tmp/<sessionId>/ tree). Each subdirectory name is the
// provider session id.
func (db *DB) ImportGeminiSessions(root string, opts ImportOptions) (ImportResult, error) {
	var result ImportResult

	entries, err := os.ReadDir(root)
	if err != nil {
		return result, fmt.Errorf("listing gemini sessions: %w", err)
	}

	projectID, err := db.UpsertProject("gemini", root, filepath.Base(root))
	if err != nil {
		return result, err
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sessionID := e.Name()
		logsPath := filepath.Join(root, sessionID, "logs.json")
		if _, err := os.Stat(logsPath); err != nil {
			continue
		}

		if opts.SkipExisting {
			exists, err := db.SessionExists("gemini", sessionID)
			if err != nil {
				result.Errors = append(result.Errors, err.Error())
				continue
			}
			if exists {
				result.SessionsSkipped++
				continue
			}
		}

		session, turns, err := parseGeminiLog(logsPath, projectID, sessionID, opts)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", logsPath, err))
			continue
		}
		if opts.SkipDead && len(turns) == 0 {
			result.SessionsSkipped++
			continue
		}

		if err := db.priceTurns("gemini", session.Model, turns); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", logsPath, err))
			continue
		}

		if _, err := db.InsertSession(session, turns); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", logsPath, err))
			continue
		}
		result.SessionsImported++
		result.TurnsImported += len(turns)
	}

	return result, nil
}

// parseGeminiLog handles the two documented shapes — a flat array of
// messages, or {messages:[...]} — by sniffing with gjson rather than
// committing to one struct, per spec.md §4.I's Provider C description.
func parseGeminiLog(path, projectID, sessionID string, opts ImportOptions) (Session, []Turn, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Session{}, nil, err
	}

	root := gjson.ParseBytes(data)
	messages := root
	if root.IsObject() {
		messages = root.Get("messages")
	}
	if !messages.IsArray() {
		return Session{}, nil, fmt.Errorf("unrecognized gemini log shape")
	}

	session := Session{Provider: "gemini", ProviderSessionID: sessionID, ProjectID: projectID}
	var turns []Turn
	var pending *Turn
	turnNum := 0

	for _, msg := range messages.Array() {
		role := msg.Get("role").String()
		text := firstNonEmpty(msg.Get("content").String(), msg.Get("text").String())
		model := msg.Get("model").String()
		if model != "" && session.Model == "" {
			session.Model = model
		}

		switch role {
		case "user":
			if pending != nil {
				turns = append(turns, *pending)
			}
			turnNum++
			pending = &Turn{TurnNumber: turnNum, Role: "user", UserText: text}
			if opts.InferTitles && session.Title == "" && text != "" {
				session.Title = truncate(text, 100)
			}
		case "model", "assistant":
			if pending == nil {
				turnNum++
				pending = &Turn{TurnNumber: turnNum, Role: "user"}
			}
			pending.AssistantText += text
			pending.InputTokens += int(msg.Get("usage.promptTokenCount").Int())
			pending.OutputTokens += int(msg.Get("usage.candidatesTokenCount").Int())
		}
	}
	if pending != nil {
		turns = append(turns, *pending)
	}

	return session, turns, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
