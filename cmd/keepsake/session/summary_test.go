// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/keepsake-ci/keepsake/lib/sessionstore"
)

func TestSummaryWriteCommand_AppendsSummary(t *testing.T) {
	root := t.TempDir()
	directory := "/work/repo"
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	t.Setenv("KEEPSAKE_CONFIG", "")

	seedTranscriptFixture(t, root, directory)

	command := SummaryCommand()
	err := command.Execute(context.Background(), []string{
		"write",
		"--data-root", root,
		"--directory", directory,
		"--event-type", "push",
		"--repo", "acme/widgets",
		"--ref", "refs/heads/main",
		"--cache-status", "hit",
		"--commits", "abc1234,def5678",
		"ses_1",
	}, logger)
	if err != nil {
		t.Fatalf("summary write: %v", err)
	}

	store := sessionstore.NewFileStore(root, logger)
	messages, err := store.GetSessionMessages(context.Background(), "ses_1")
	if err != nil {
		t.Fatalf("loading messages: %v", err)
	}

	// The fixture seeds two messages; writeback appends a third.
	if len(messages) != 3 {
		t.Fatalf("len(messages) = %d, want 3", len(messages))
	}

	var summary *sessionstore.Message
	for i := range messages {
		if messages[i].Agent() == sessionstore.SummaryAgent {
			summary = &messages[i]
		}
	}
	if summary == nil {
		t.Fatal("no message with the writeback agent identity")
	}
	if summary.Role != sessionstore.RoleUser {
		t.Errorf("summary role = %q, want %q", summary.Role, sessionstore.RoleUser)
	}

	parts, err := store.GetMessageParts(context.Background(), summary.ID())
	if err != nil {
		t.Fatalf("loading summary parts: %v", err)
	}
	if len(parts) != 1 {
		t.Fatalf("len(parts) = %d, want 1", len(parts))
	}
	text := parts[0].Text.Text
	for _, want := range []string{
		"Event: push",
		"Repo: acme/widgets",
		"Ref: refs/heads/main",
		"Cache: hit",
		"Commits created: abc1234, def5678",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("summary text missing %q\n\nFull text:\n%s", want, text)
		}
	}
}

func TestSummaryWriteCommand_UnknownSession(t *testing.T) {
	root := t.TempDir()
	directory := "/work/repo"
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	t.Setenv("KEEPSAKE_CONFIG", "")

	seedTranscriptFixture(t, root, directory)

	command := SummaryCommand()
	err := command.Execute(context.Background(), []string{
		"write",
		"--data-root", root,
		"--directory", directory,
		"ses_nope",
	}, logger)
	if err == nil {
		t.Fatal("summary write = nil, want error for unknown session")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %q, want 'not found'", err.Error())
	}
}
