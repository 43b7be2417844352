// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package sessionstore_test

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/keepsake-ci/keepsake/lib/clock"
	"github.com/keepsake-ci/keepsake/lib/sessionstore"
)

// testBase is the fixed "now" for every test clock. Seeded records
// place themselves relative to it.
var testBase = time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC)

func testClock() *clock.FakeClock {
	return clock.Fake(testBase)
}

func millisAgo(d time.Duration) int64 {
	return testBase.Add(-d).UnixMilli()
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

// The seed helpers write records straight into the flat-file layout,
// the way the agent runtime itself would. Their paths are deliberately
// spelled out rather than shared with the store under test, so a
// layout regression fails loudly.

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating %s: %v", filepath.Dir(path), err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("encoding %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func seedProject(t *testing.T, root string, project sessionstore.Project) {
	t.Helper()
	writeJSON(t, filepath.Join(root, "project", project.ID+".json"), project)
}

func seedSession(t *testing.T, root string, session sessionstore.Session) {
	t.Helper()
	writeJSON(t, filepath.Join(root, "session", session.ProjectID, session.ID+".json"), session)
}

func seedMessage(t *testing.T, root string, message sessionstore.Message) {
	t.Helper()
	writeJSON(t, filepath.Join(root, "message", message.SessionID(), message.ID()+".json"), message)
}

func seedPart(t *testing.T, root string, part sessionstore.Part) {
	t.Helper()
	writeJSON(t, filepath.Join(root, "part", part.MessageID(), part.ID()+".json"), part)
}

func seedTodos(t *testing.T, root, sessionID string, todos []sessionstore.TodoItem) {
	t.Helper()
	writeJSON(t, filepath.Join(root, "todo", sessionID+".json"), todos)
}

func makeProject(id, worktree string) sessionstore.Project {
	return sessionstore.Project{
		ID:       id,
		Worktree: worktree,
		VCS:      "git",
		Time:     sessionstore.TimeInfo{Created: millisAgo(days(90)), Updated: millisAgo(0)},
	}
}

func makeSession(id, projectID, directory string, created, updated int64) sessionstore.Session {
	return sessionstore.Session{
		ID:        id,
		ProjectID: projectID,
		Directory: directory,
		Title:     "session " + id,
		Version:   "1.0.0",
		Time:      sessionstore.TimeInfo{Created: created, Updated: updated},
	}
}

func makeChildSession(id, parentID, projectID, directory string, created, updated int64) sessionstore.Session {
	session := makeSession(id, projectID, directory, created, updated)
	session.ParentID = &parentID
	return session
}

func makeUserMessage(id, sessionID, agent string, created int64) sessionstore.Message {
	return sessionstore.Message{
		Role: sessionstore.RoleUser,
		User: &sessionstore.UserMessage{
			ID:        id,
			SessionID: sessionID,
			Role:      sessionstore.RoleUser,
			Time:      sessionstore.MessageTime{Created: created},
			Agent:     agent,
		},
	}
}

func makeAssistantMessage(id, sessionID string, created int64) sessionstore.Message {
	return sessionstore.Message{
		Role: sessionstore.RoleAssistant,
		Assistant: &sessionstore.AssistantMessage{
			ID:        id,
			SessionID: sessionID,
			Role:      sessionstore.RoleAssistant,
			Time:      sessionstore.MessageTime{Created: created},
			Model:     &sessionstore.ModelRef{ProviderID: "anthropic", ModelID: "claude"},
			Tokens:    sessionstore.TokenUsage{Input: 100, Output: 50},
		},
	}
}

func makeTextPart(id, sessionID, messageID, text string) sessionstore.Part {
	return sessionstore.Part{
		Type: sessionstore.PartTypeText,
		Text: &sessionstore.TextPart{
			ID:        id,
			SessionID: sessionID,
			MessageID: messageID,
			Type:      sessionstore.PartTypeText,
			Text:      text,
		},
	}
}

func makeReasoningPart(id, sessionID, messageID, text string) sessionstore.Part {
	return sessionstore.Part{
		Type: sessionstore.PartTypeReasoning,
		Reasoning: &sessionstore.ReasoningPart{
			ID:        id,
			SessionID: sessionID,
			MessageID: messageID,
			Type:      sessionstore.PartTypeReasoning,
			Text:      text,
		},
	}
}

func makeToolPart(id, sessionID, messageID, tool string, status sessionstore.ToolStatus, output string) sessionstore.Part {
	return sessionstore.Part{
		Type: sessionstore.PartTypeTool,
		Tool: &sessionstore.ToolPart{
			ID:        id,
			SessionID: sessionID,
			MessageID: messageID,
			Type:      sessionstore.PartTypeTool,
			Tool:      tool,
			State: sessionstore.ToolState{
				Status: status,
				Output: output,
			},
		},
	}
}

// newFileStore returns a flat-file store over a fresh temp root.
func newFileStore(t *testing.T) (*sessionstore.FileStore, string) {
	t.Helper()
	root := t.TempDir()
	return sessionstore.NewFileStore(root, slog.New(slog.DiscardHandler)), root
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
