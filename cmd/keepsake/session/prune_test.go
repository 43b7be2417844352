// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/keepsake-ci/keepsake/lib/sessionstore"
)

func TestWritePruneResult(t *testing.T) {
	result := sessionstore.PruneResult{
		PrunedCount:      2,
		PrunedSessionIDs: []string{"ses_old1", "ses_old2"},
		RemainingCount:   5,
		FreedBytes:       3 << 20,
	}

	var buffer bytes.Buffer
	writePruneResult(&buffer, result)
	output := buffer.String()

	for _, want := range []string{
		"pruned 2 sessions",
		"3.0 MB freed",
		"5 remaining",
		"ses_old1",
		"ses_old2",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("prune output missing %q\n\nFull output:\n%s", want, output)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1 << 10, "1.0 KB"},
		{3 << 20, "3.0 MB"},
		{2 << 30, "2.0 GB"},
	}

	for _, test := range tests {
		if got := formatBytes(test.bytes); got != test.want {
			t.Errorf("formatBytes(%d) = %q, want %q", test.bytes, got, test.want)
		}
	}
}

func TestPruneCommand_AppliesPolicy(t *testing.T) {
	root := t.TempDir()
	directory := "/work/repo"
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	t.Setenv("KEEPSAKE_CONFIG", "")

	// Two main sessions updated in the past. With --max-sessions 1 and
	// --max-age-days 0 only the most recently updated survives.
	older := time.Now().Add(-48 * time.Hour).UnixMilli()
	newer := time.Now().Add(-24 * time.Hour).UnixMilli()

	writeJSON(t, filepath.Join(root, "project", "prj_1.json"), sessionstore.Project{
		ID:       "prj_1",
		Worktree: directory,
		Time:     sessionstore.TimeInfo{Created: older, Updated: newer},
	})
	writeJSON(t, filepath.Join(root, "session", "prj_1", "ses_old.json"), sessionstore.Session{
		ID:        "ses_old",
		ProjectID: "prj_1",
		Directory: directory,
		Title:     "old work",
		Time:      sessionstore.TimeInfo{Created: older, Updated: older},
	})
	writeJSON(t, filepath.Join(root, "session", "prj_1", "ses_new.json"), sessionstore.Session{
		ID:        "ses_new",
		ProjectID: "prj_1",
		Directory: directory,
		Title:     "recent work",
		Time:      sessionstore.TimeInfo{Created: newer, Updated: newer},
	})

	command := PruneCommand()
	err := command.Execute(context.Background(), []string{
		"--data-root", root,
		"--directory", directory,
		"--max-sessions", "1",
		"--max-age-days", "0",
	}, logger)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}

	store := sessionstore.NewFileStore(root, logger)
	sessions, err := store.ListSessionsForProject(context.Background(), "prj_1")
	if err != nil {
		t.Fatalf("listing after prune: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("len(sessions) = %d after prune, want 1", len(sessions))
	}
	if sessions[0].ID != "ses_new" {
		t.Errorf("surviving session = %q, want %q", sessions[0].ID, "ses_new")
	}
}
