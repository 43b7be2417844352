// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package harness

import (
	"context"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/keepsake-ci/keepsake/lib/sessionstore"
)

func TestSearchTerms(t *testing.T) {
	tests := []struct {
		name        string
		title       string
		instruction string
		want        []string
	}{
		{
			name:        "title then instruction order",
			title:       "Scheduler test flakes on arm64",
			instruction: "please fix the flaky scheduler test",
			want:        []string{"scheduler", "test", "flakes", "arm64", "flaky"},
		},
		{
			name:  "short words and stopwords dropped",
			title: "fix it so that this would work here",
			want:  []string{"work"},
		},
		{
			name:  "case folded and deduplicated",
			title: "Scheduler SCHEDULER scheduler",
			want:  []string{"scheduler"},
		},
		{
			name:  "identifier characters stay in-word",
			title: "panic in lib/uploader during retry_loop",
			want:  []string{"panic", "lib/uploader", "during", "retry_loop"},
		},
		{
			name:  "surrounding punctuation trimmed",
			title: `crash in "uploader." (again)`,
			want:  []string{"crash", "uploader", "again"},
		},
		{
			name:  "term cap",
			title: "alpha1 bravo2 charlie3 delta4 echo5 foxtrot6 golf7",
			want:  []string{"alpha1", "bravo2", "charlie3", "delta4", "echo5"},
		},
		{
			name: "empty trigger",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := searchTerms(tt.title, tt.instruction)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("searchTerms(%q, %q) = %v, want %v", tt.title, tt.instruction, got, tt.want)
			}
		})
	}
}

func TestBuildRunContext(t *testing.T) {
	directory := t.TempDir()
	root := t.TempDir()
	store := sessionstore.NewFileStore(root, slog.New(slog.DiscardHandler))
	logger := slog.New(slog.DiscardHandler)

	seedProject(t, root, sessionstore.Project{
		ID:       "prj_ctx",
		Worktree: directory,
		VCS:      "git",
		Time:     sessionstore.TimeInfo{Created: millisAgo(days(30)), Updated: millisAgo(days(1))},
	})

	older := makeSession("ses_0ctx1", "prj_ctx", directory, millisAgo(days(10)), millisAgo(days(10)))
	older.Title = "Pin the worker pool size"
	seedSession(t, root, older)
	seedAssistantMessage(t, root, sessionstore.AssistantMessage{
		ID:        "msg_0ctx1",
		SessionID: "ses_0ctx1",
		Time:      sessionstore.MessageTime{Created: millisAgo(days(10))},
	})
	seedTextPart(t, root, sessionstore.TextPart{
		ID:        "prt_0ctx1",
		SessionID: "ses_0ctx1",
		MessageID: "msg_0ctx1",
		Text:      "Fixed the scheduler race by pinning the worker pool size.",
	})

	newer := makeSession("ses_0ctx2", "prj_ctx", directory, millisAgo(days(1)), millisAgo(days(1)))
	newer.Title = "Quiet the arm64 builder"
	seedSession(t, root, newer)
	seedAssistantMessage(t, root, sessionstore.AssistantMessage{
		ID:        "msg_0ctx2",
		SessionID: "ses_0ctx2",
		Time:      sessionstore.MessageTime{Created: millisAgo(days(1))},
	})
	seedTextPart(t, root, sessionstore.TextPart{
		ID:        "prt_0ctx2",
		SessionID: "ses_0ctx2",
		MessageID: "msg_0ctx2",
		Text:      "The scheduler flakes most often on the arm64 builder.",
	})

	data := buildRunContext(context.Background(), store, logger, commentEvent(), directory, "keepsake")

	if data.Repo != "octo/widgets" || data.EventKind != "issue_comment" || data.Number != 7 {
		t.Errorf("trigger fields = %q %q %d", data.Repo, data.EventKind, data.Number)
	}
	if data.Instruction != "please fix the flaky scheduler test" {
		t.Errorf("instruction = %q, want the mention stripped", data.Instruction)
	}

	if len(data.Sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(data.Sessions))
	}
	if data.Sessions[0].Title != "Quiet the arm64 builder" {
		t.Errorf("first overview = %q, want most recently updated", data.Sessions[0].Title)
	}
	if data.Sessions[0].Messages != 1 {
		t.Errorf("message count = %d", data.Sessions[0].Messages)
	}
	if data.Sessions[0].Updated.UnixMilli() != millisAgo(days(1)) {
		t.Errorf("updated = %v", data.Sessions[0].Updated)
	}

	// Both parts match "scheduler"; the second also matches "flakes"
	// and "arm64" but a part is excerpted at most once.
	if len(data.Excerpts) != 2 {
		t.Fatalf("excerpts = %d, want 2: %+v", len(data.Excerpts), data.Excerpts)
	}
	var texts []string
	for _, excerpt := range data.Excerpts {
		texts = append(texts, excerpt.Text)
		if excerpt.Role != string(sessionstore.RoleAssistant) {
			t.Errorf("excerpt role = %q", excerpt.Role)
		}
	}
	joined := strings.Join(texts, "\n")
	if !strings.Contains(joined, "scheduler race") {
		t.Errorf("excerpts missing older session hit:\n%s", joined)
	}
	if !strings.Contains(joined, "arm64 builder") {
		t.Errorf("excerpts missing newer session hit:\n%s", joined)
	}
}

func TestBuildRunContextEmptyStore(t *testing.T) {
	root := t.TempDir()
	store := sessionstore.NewFileStore(root, slog.New(slog.DiscardHandler))

	data := buildRunContext(context.Background(), store, slog.New(slog.DiscardHandler), commentEvent(), t.TempDir(), "keepsake")
	if len(data.Sessions) != 0 || len(data.Excerpts) != 0 {
		t.Errorf("fresh store produced context: %+v", data)
	}
	if data.Title != "Scheduler test flakes on arm64" {
		t.Errorf("title = %q", data.Title)
	}
}
