// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

// White-box tests: seeding the database-backed store means playing the
// agent runtime and inserting rows directly, which needs the pool.

package sessionstore

import (
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"zombiezen.com/go/sqlite/sqlitex"
)

func newSQLiteTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := openSQLiteStore(filepath.Join(t.TempDir(), databaseFileName), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("openSQLiteStore: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return store
}

func insertRow(t *testing.T, store *SQLiteStore, query string, args ...any) {
	t.Helper()
	conn, err := store.pool.Take(context.Background())
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer store.pool.Put(conn)
	if err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{Args: args}); err != nil {
		t.Fatalf("seeding row: %v", err)
	}
}

func mustMarshal(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("encoding seed record: %v", err)
	}
	return string(data)
}

func insertProject(t *testing.T, store *SQLiteStore, project Project) string {
	t.Helper()
	data := mustMarshal(t, project)
	insertRow(t, store, "INSERT INTO project (id, data) VALUES (?, ?)", project.ID, data)
	return data
}

func insertSession(t *testing.T, store *SQLiteStore, session Session) string {
	t.Helper()
	data := mustMarshal(t, session)
	insertRow(t, store, "INSERT INTO session (id, project_id, data) VALUES (?, ?, ?)", session.ID, session.ProjectID, data)
	return data
}

func insertTodos(t *testing.T, store *SQLiteStore, sessionID string, todos []TodoItem) string {
	t.Helper()
	data := mustMarshal(t, todos)
	insertRow(t, store, "INSERT INTO todo (session_id, data) VALUES (?, ?)", sessionID, data)
	return data
}

func sqliteSession(id, projectID string) Session {
	return Session{
		ID:        id,
		ProjectID: projectID,
		Directory: "/work/alpha",
		Title:     "session " + id,
		Version:   "1.2.0",
		Time:      TimeInfo{Created: 1770000000000, Updated: 1770000100000},
	}
}

func TestSQLiteFindProjectByDirectory(t *testing.T) {
	store := newSQLiteTestStore(t)
	insertProject(t, store, Project{ID: "p1", Worktree: "/work/alpha"})
	insertProject(t, store, Project{ID: "p2", Worktree: "/work/beta"})

	project, err := store.FindProjectByDirectory(context.Background(), "/work/beta")
	if err != nil {
		t.Fatalf("FindProjectByDirectory: %v", err)
	}
	if project == nil || project.ID != "p2" {
		t.Fatalf("project = %+v, want p2", project)
	}

	project, err = store.FindProjectByDirectory(context.Background(), "/work/gamma")
	if err != nil {
		t.Fatalf("FindProjectByDirectory (absent): %v", err)
	}
	if project != nil {
		t.Fatalf("project = %+v, want nil", project)
	}
}

func TestSQLiteSessions(t *testing.T) {
	store := newSQLiteTestStore(t)
	insertSession(t, store, sqliteSession("ses_0a1", "p1"))
	insertSession(t, store, sqliteSession("ses_0a2", "p1"))
	insertSession(t, store, sqliteSession("ses_0b1", "p2"))

	sessions, err := store.ListSessionsForProject(context.Background(), "p1")
	if err != nil {
		t.Fatalf("ListSessionsForProject: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(sessions))
	}

	session, err := store.GetSession(context.Background(), "p1", "ses_0a2")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if session == nil || session.Title != "session ses_0a2" {
		t.Fatalf("session = %+v", session)
	}

	session, err = store.GetSession(context.Background(), "p1", "ses_0ff")
	if err != nil {
		t.Fatalf("GetSession (absent): %v", err)
	}
	if session != nil {
		t.Fatalf("session = %+v, want nil", session)
	}
}

func TestSQLiteMessagesOrdered(t *testing.T) {
	store := newSQLiteTestStore(t)

	for _, id := range []string{"msg_0a3", "msg_0a1", "msg_0a2"} {
		message := Message{Role: RoleUser, User: &UserMessage{
			ID:        id,
			SessionID: "ses_0a1",
			Role:      RoleUser,
			Time:      MessageTime{Created: 1770000000000},
			Agent:     "build",
		}}
		if err := store.AppendMessage(context.Background(), message); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	messages, err := store.GetSessionMessages(context.Background(), "ses_0a1")
	if err != nil {
		t.Fatalf("GetSessionMessages: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("got %d messages, want 3", len(messages))
	}
	for i, want := range []string{"msg_0a1", "msg_0a2", "msg_0a3"} {
		if messages[i].ID() != want {
			t.Errorf("messages[%d] = %s, want %s", i, messages[i].ID(), want)
		}
	}
}

func TestSQLitePartsAndTodos(t *testing.T) {
	store := newSQLiteTestStore(t)

	part := Part{Type: PartTypeText, Text: &TextPart{
		ID:        "prt_0a1",
		SessionID: "ses_0a1",
		MessageID: "msg_0a1",
		Type:      PartTypeText,
		Text:      "hello",
	}}
	if err := store.AppendPart(context.Background(), part); err != nil {
		t.Fatalf("AppendPart: %v", err)
	}

	parts, err := store.GetMessageParts(context.Background(), "msg_0a1")
	if err != nil {
		t.Fatalf("GetMessageParts: %v", err)
	}
	if len(parts) != 1 || parts[0].Text.Text != "hello" {
		t.Fatalf("parts = %+v", parts)
	}

	insertTodos(t, store, "ses_0a1", []TodoItem{
		{ID: "1", Content: "write tests", Status: TodoStatusInProgress},
	})
	todos, err := store.GetSessionTodos(context.Background(), "ses_0a1")
	if err != nil {
		t.Fatalf("GetSessionTodos: %v", err)
	}
	if len(todos) != 1 || todos[0].Status != TodoStatusInProgress {
		t.Fatalf("todos = %+v", todos)
	}

	todos, err = store.GetSessionTodos(context.Background(), "ses_0ff")
	if err != nil {
		t.Fatalf("GetSessionTodos (absent): %v", err)
	}
	if len(todos) != 0 {
		t.Fatalf("todos = %+v, want empty", todos)
	}
}

func TestSQLiteDeleteSession(t *testing.T) {
	store := newSQLiteTestStore(t)

	sessionData := insertSession(t, store, sqliteSession("ses_0a1", "p1"))
	todoData := insertTodos(t, store, "ses_0a1", []TodoItem{{ID: "1", Content: "x", Status: TodoStatusPending}})

	message := Message{Role: RoleUser, User: &UserMessage{
		ID: "msg_0a1", SessionID: "ses_0a1", Role: RoleUser,
		Time: MessageTime{Created: 1770000000000},
	}}
	if err := store.AppendMessage(context.Background(), message); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	part := Part{Type: PartTypeText, Text: &TextPart{
		ID: "prt_0a1", SessionID: "ses_0a1", MessageID: "msg_0a1",
		Type: PartTypeText, Text: "hello",
	}}
	if err := store.AppendPart(context.Background(), part); err != nil {
		t.Fatalf("AppendPart: %v", err)
	}

	// Freed bytes are the stored payload lengths.
	expected := int64(len(sessionData) + len(todoData) + len(mustMarshal(t, message)) + len(mustMarshal(t, part)))

	freed, err := store.DeleteSession(context.Background(), "p1", "ses_0a1")
	if err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if freed != expected {
		t.Errorf("freed = %d, want %d", freed, expected)
	}

	session, err := store.GetSession(context.Background(), "p1", "ses_0a1")
	if err != nil || session != nil {
		t.Errorf("session survived deletion: %+v, %v", session, err)
	}
	messages, err := store.GetSessionMessages(context.Background(), "ses_0a1")
	if err != nil || len(messages) != 0 {
		t.Errorf("messages survived deletion: %d, %v", len(messages), err)
	}

	// Idempotent: a second delete frees nothing and does not fail.
	freed, err = store.DeleteSession(context.Background(), "p1", "ses_0a1")
	if err != nil {
		t.Fatalf("second DeleteSession: %v", err)
	}
	if freed != 0 {
		t.Errorf("second delete freed %d, want 0", freed)
	}
}

func TestOpenSelectsSQLiteBackend(t *testing.T) {
	root := t.TempDir()
	store, err := Open(Config{
		DataRoot:     root,
		AgentVersion: "1.1.53",
		Logger:       slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	if _, ok := store.(*SQLiteStore); !ok {
		t.Fatalf("backend = %T, want *SQLiteStore at the threshold version", store)
	}
}

func TestOpenProbeSelectsSQLiteBackend(t *testing.T) {
	// No version known, but the database file exists: the probe must
	// pick the database backend.
	root := t.TempDir()
	first, err := Open(Config{DataRoot: root, AgentVersion: "1.2.0"})
	if err != nil {
		t.Fatalf("Open (creating database): %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	store, err := Open(Config{DataRoot: root})
	if err != nil {
		t.Fatalf("Open (probe): %v", err)
	}
	defer store.Close()

	if _, ok := store.(*SQLiteStore); !ok {
		t.Fatalf("backend = %T, want *SQLiteStore when the database file exists", store)
	}
}
