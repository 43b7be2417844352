// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package sessionstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/keepsake-ci/keepsake/lib/sessionstore"
)

func TestFindProjectByDirectory(t *testing.T) {
	store, root := newFileStore(t)
	seedProject(t, root, makeProject("p1", "/work/alpha"))
	seedProject(t, root, makeProject("p2", "/work/beta"))

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
		t.Fatalf("project = %+v, want nil for unknown directory", project)
	}
}

func TestFindProjectByDirectoryEmptyTree(t *testing.T) {
	store, _ := newFileStore(t)

	project, err := store.FindProjectByDirectory(context.Background(), "/work/alpha")
	if err != nil {
		t.Fatalf("FindProjectByDirectory on empty tree: %v", err)
	}
	if project != nil {
		t.Fatalf("project = %+v, want nil", project)
	}
}

func TestListSessionsForProject(t *testing.T) {
	store, root := newFileStore(t)
	seedSession(t, root, makeSession("ses_0a1", "p1", "/work/alpha", millisAgo(days(2)), millisAgo(days(1))))
	seedSession(t, root, makeSession("ses_0a2", "p1", "/work/alpha", millisAgo(days(5)), millisAgo(days(4))))
	seedSession(t, root, makeChildSession("ses_0a3", "ses_0a1", "p1", "/work/alpha", millisAgo(days(1)), millisAgo(days(1))))
	seedSession(t, root, makeSession("ses_0b1", "p2", "/work/beta", millisAgo(days(1)), millisAgo(days(1))))

	sessions, err := store.ListSessionsForProject(context.Background(), "p1")
	if err != nil {
		t.Fatalf("ListSessionsForProject: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("got %d sessions, want 3 (main and child, this project only)", len(sessions))
	}

	sessions, err = store.ListSessionsForProject(context.Background(), "p9")
	if err != nil {
		t.Fatalf("ListSessionsForProject (absent): %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("got %d sessions for unknown project, want 0", len(sessions))
	}
}

func TestListSessionsSkipsCorruptRecord(t *testing.T) {
	store, root := newFileStore(t)
	seedSession(t, root, makeSession("ses_0a1", "p1", "/work/alpha", millisAgo(days(2)), millisAgo(days(1))))
	corrupt := filepath.Join(root, "session", "p1", "ses_0a2.json")
	if err := os.WriteFile(corrupt, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("writing corrupt record: %v", err)
	}

	sessions, err := store.ListSessionsForProject(context.Background(), "p1")
	if err != nil {
		t.Fatalf("ListSessionsForProject: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != "ses_0a1" {
		t.Fatalf("sessions = %+v, want just ses_0a1", sessions)
	}
}

func TestGetSession(t *testing.T) {
	store, root := newFileStore(t)
	seedSession(t, root, makeSession("ses_0a1", "p1", "/work/alpha", millisAgo(days(2)), millisAgo(days(1))))

	session, err := store.GetSession(context.Background(), "p1", "ses_0a1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if session == nil || session.Title != "session ses_0a1" {
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

func TestGetSessionMessagesOrdered(t *testing.T) {
	store, root := newFileStore(t)
	// Seed in reverse: the store must come back in id (creation)
	// order regardless of write order.
	seedMessage(t, root, makeAssistantMessage("msg_0a3", "ses_0a1", millisAgo(time.Hour)))
	seedMessage(t, root, makeUserMessage("msg_0a1", "ses_0a1", "build", millisAgo(3*time.Hour)))
	seedMessage(t, root, makeUserMessage("msg_0a2", "ses_0a1", "review", millisAgo(2*time.Hour)))

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

	messages, err = store.GetSessionMessages(context.Background(), "ses_0ff")
	if err != nil {
		t.Fatalf("GetSessionMessages (absent): %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("got %d messages for unknown session, want 0", len(messages))
	}
}

func TestGetMessageParts(t *testing.T) {
	store, root := newFileStore(t)
	seedPart(t, root, makeTextPart("prt_0a2", "ses_0a1", "msg_0a1", "second"))
	seedPart(t, root, makeTextPart("prt_0a1", "ses_0a1", "msg_0a1", "first"))

	parts, err := store.GetMessageParts(context.Background(), "msg_0a1")
	if err != nil {
		t.Fatalf("GetMessageParts: %v", err)
	}
	if len(parts) != 2 {
		t.Fatalf("got %d parts, want 2", len(parts))
	}
	if parts[0].ID() != "prt_0a1" || parts[1].ID() != "prt_0a2" {
		t.Errorf("parts out of order: %s, %s", parts[0].ID(), parts[1].ID())
	}
}

func TestGetSessionTodos(t *testing.T) {
	store, root := newFileStore(t)
	seedTodos(t, root, "ses_0a1", []sessionstore.TodoItem{
		{ID: "1", Content: "write tests", Status: sessionstore.TodoStatusCompleted},
		{ID: "2", Content: "fix lint", Status: sessionstore.TodoStatusPending, Priority: "high"},
	})

	todos, err := store.GetSessionTodos(context.Background(), "ses_0a1")
	if err != nil {
		t.Fatalf("GetSessionTodos: %v", err)
	}
	if len(todos) != 2 || todos[1].Priority != "high" {
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

func TestDeleteSession(t *testing.T) {
	store, root := newFileStore(t)
	seedSession(t, root, makeSession("ses_0a1", "p1", "/work/alpha", millisAgo(days(2)), millisAgo(days(1))))
	seedMessage(t, root, makeUserMessage("msg_0a1", "ses_0a1", "build", millisAgo(time.Hour)))
	seedPart(t, root, makeTextPart("prt_0a1", "ses_0a1", "msg_0a1", "hello"))
	seedPart(t, root, makeToolPart("prt_0a2", "ses_0a1", "msg_0a1", "bash", sessionstore.ToolStatusCompleted, "done"))
	seedTodos(t, root, "ses_0a1", []sessionstore.TodoItem{{ID: "1", Content: "x", Status: sessionstore.TodoStatusPending}})

	// The untouched session proves deletion stays scoped.
	seedSession(t, root, makeSession("ses_0b1", "p1", "/work/alpha", millisAgo(days(2)), millisAgo(days(1))))
	seedMessage(t, root, makeUserMessage("msg_0b1", "ses_0b1", "build", millisAgo(time.Hour)))

	expected := fileSize(t, filepath.Join(root, "session", "p1", "ses_0a1.json")) +
		fileSize(t, filepath.Join(root, "message", "ses_0a1", "msg_0a1.json")) +
		fileSize(t, filepath.Join(root, "part", "msg_0a1", "prt_0a1.json")) +
		fileSize(t, filepath.Join(root, "part", "msg_0a1", "prt_0a2.json")) +
		fileSize(t, filepath.Join(root, "todo", "ses_0a1.json"))

	freed, err := store.DeleteSession(context.Background(), "p1", "ses_0a1")
	if err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if freed != expected {
		t.Errorf("freed = %d bytes, want %d", freed, expected)
	}

	session, err := store.GetSession(context.Background(), "p1", "ses_0a1")
	if err != nil || session != nil {
		t.Errorf("session survived deletion: %+v, %v", session, err)
	}
	messages, err := store.GetSessionMessages(context.Background(), "ses_0a1")
	if err != nil || len(messages) != 0 {
		t.Errorf("messages survived deletion: %d, %v", len(messages), err)
	}
	parts, err := store.GetMessageParts(context.Background(), "msg_0a1")
	if err != nil || len(parts) != 0 {
		t.Errorf("parts survived deletion: %d, %v", len(parts), err)
	}

	// The other session is untouched.
	other, err := store.GetSessionMessages(context.Background(), "ses_0b1")
	if err != nil || len(other) != 1 {
		t.Errorf("unrelated session damaged by delete: %d messages, %v", len(other), err)
	}
}

func TestDeleteSessionIdempotent(t *testing.T) {
	store, root := newFileStore(t)
	seedSession(t, root, makeSession("ses_0a1", "p1", "/work/alpha", millisAgo(days(2)), millisAgo(days(1))))

	if _, err := store.DeleteSession(context.Background(), "p1", "ses_0a1"); err != nil {
		t.Fatalf("first DeleteSession: %v", err)
	}
	freed, err := store.DeleteSession(context.Background(), "p1", "ses_0a1")
	if err != nil {
		t.Fatalf("second DeleteSession: %v", err)
	}
	if freed != 0 {
		t.Errorf("second delete freed %d bytes, want 0", freed)
	}

	// A session that never existed is also fine.
	if _, err := store.DeleteSession(context.Background(), "p1", "ses_0ff"); err != nil {
		t.Fatalf("DeleteSession of never-written session: %v", err)
	}
}

func TestAppendMessageAndPart(t *testing.T) {
	store, root := newFileStore(t)

	message := makeUserMessage("msg_0a1", "ses_0a1", "keepsake", millisAgo(0))
	if err := store.AppendMessage(context.Background(), message); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	part := makeTextPart("prt_0a1", "ses_0a1", "msg_0a1", "Event: push")
	if err := store.AppendPart(context.Background(), part); err != nil {
		t.Fatalf("AppendPart: %v", err)
	}

	// The records land at the layout paths the runtime reads.
	for _, path := range []string{
		filepath.Join(root, "message", "ses_0a1", "msg_0a1.json"),
		filepath.Join(root, "part", "msg_0a1", "prt_0a1.json"),
	} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected record at %s: %v", path, err)
		}
	}

	messages, err := store.GetSessionMessages(context.Background(), "ses_0a1")
	if err != nil || len(messages) != 1 {
		t.Fatalf("reading back message: %d, %v", len(messages), err)
	}
	if messages[0].Agent() != "keepsake" {
		t.Errorf("agent = %q", messages[0].Agent())
	}

	parts, err := store.GetMessageParts(context.Background(), "msg_0a1")
	if err != nil || len(parts) != 1 {
		t.Fatalf("reading back part: %d, %v", len(parts), err)
	}
	if parts[0].Text.Text != "Event: push" {
		t.Errorf("part text = %q", parts[0].Text.Text)
	}
}

func TestAppendRejectsIncompleteRecords(t *testing.T) {
	store, _ := newFileStore(t)

	err := store.AppendMessage(context.Background(), makeUserMessage("", "ses_0a1", "a", 0))
	if err == nil {
		t.Error("AppendMessage accepted a message without an id")
	}
	err = store.AppendPart(context.Background(), makeTextPart("prt_0a1", "ses_0a1", "", "x"))
	if err == nil {
		t.Error("AppendPart accepted a part without a message id")
	}
}

func TestOpenSelectsFileBackend(t *testing.T) {
	root := t.TempDir()
	store, err := sessionstore.Open(sessionstore.Config{
		DataRoot:     root,
		AgentVersion: "1.1.52",
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	if _, ok := store.(*sessionstore.FileStore); !ok {
		t.Fatalf("backend = %T, want *FileStore for a pre-threshold version", store)
	}
}

func TestOpenRequiresDataRoot(t *testing.T) {
	if _, err := sessionstore.Open(sessionstore.Config{}); err == nil {
		t.Fatal("Open accepted an empty DataRoot")
	}
}

func fileSize(t *testing.T, path string) int64 {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	return info.Size()
}
