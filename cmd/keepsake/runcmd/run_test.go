// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package runcmd

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/keepsake-ci/keepsake/lib/archive"
	"github.com/keepsake-ci/keepsake/lib/harness"
	"github.com/keepsake-ci/keepsake/lib/runtime"
	"github.com/keepsake-ci/keepsake/lib/sessionstore"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// clearJobEnvironment blanks the config and GitHub Actions variables
// so tests control exactly what the command sees.
func clearJobEnvironment(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"KEEPSAKE_CONFIG",
		"GITHUB_EVENT_NAME",
		"GITHUB_EVENT_PATH",
		"GITHUB_REPOSITORY",
		"GITHUB_REF",
		"GITHUB_RUN_ID",
		"GITHUB_ACTOR",
		"GITHUB_TOKEN",
	} {
		t.Setenv(name, "")
	}
}

func writePayload(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "event.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing payload: %v", err)
	}
	return path
}

func TestRunCommand_RequiresActionsEnvironment(t *testing.T) {
	clearJobEnvironment(t)

	err := Command().Execute(context.Background(), nil, discardLogger())
	if err == nil {
		t.Fatal("expected an error outside a GitHub Actions environment")
	}
	if !strings.Contains(err.Error(), "GITHUB_EVENT_NAME") {
		t.Errorf("error = %q, want mention of GITHUB_EVENT_NAME", err)
	}
}

func TestRunCommand_RejectsPositionalArgs(t *testing.T) {
	clearJobEnvironment(t)

	err := Command().Execute(context.Background(), []string{"stray"}, discardLogger())
	if err == nil {
		t.Fatal("expected an error for positional arguments")
	}
	if !strings.Contains(err.Error(), "unexpected arguments") {
		t.Errorf("error = %q, want unexpected arguments", err)
	}
}

func TestRunCommand_EditedCommentExitsCleanly(t *testing.T) {
	clearJobEnvironment(t)
	t.Setenv("GITHUB_EVENT_NAME", "issue_comment")
	t.Setenv("GITHUB_REPOSITORY", "acme/widgets")
	t.Setenv("GITHUB_EVENT_PATH", writePayload(t, `{"action": "edited"}`))

	if err := Command().Execute(context.Background(), nil, discardLogger()); err != nil {
		t.Fatalf("edited comment should exit cleanly, got %v", err)
	}
}

func TestRunCommand_UnaddressedCommentSkips(t *testing.T) {
	clearJobEnvironment(t)
	t.Setenv("GITHUB_EVENT_NAME", "issue_comment")
	t.Setenv("GITHUB_REPOSITORY", "acme/widgets")
	t.Setenv("GITHUB_EVENT_PATH", writePayload(t, `{
		"action": "created",
		"issue": {"number": 7, "title": "flaky deploy", "html_url": "https://github.com/acme/widgets/issues/7"},
		"comment": {"body": "any update on this?"}
	}`))

	// No runtime binary is configured; the gate must short-circuit
	// before the command ever needs one.
	if err := Command().Execute(context.Background(), nil, discardLogger()); err != nil {
		t.Fatalf("unaddressed comment should skip cleanly, got %v", err)
	}
}

func TestRunCommand_MissingRuntimeBinary(t *testing.T) {
	clearJobEnvironment(t)
	t.Setenv("GITHUB_EVENT_NAME", "issue_comment")
	t.Setenv("GITHUB_REPOSITORY", "acme/widgets")
	t.Setenv("GITHUB_EVENT_PATH", writePayload(t, `{
		"action": "created",
		"issue": {"number": 7, "title": "flaky deploy", "html_url": "https://github.com/acme/widgets/issues/7"},
		"comment": {"body": "@keepsake please look into the timeout"}
	}`))

	err := Command().Execute(context.Background(), nil, discardLogger())
	if err == nil {
		t.Fatal("expected an error when no runtime binary is configured")
	}
	if !strings.Contains(err.Error(), "runtime.binary") {
		t.Errorf("error = %q, want mention of runtime.binary", err)
	}
}

func TestWriteOutcome(t *testing.T) {
	outcome := &harness.Outcome{
		Event:        &harness.RunEvent{Kind: harness.EventPush, Repo: "acme/widgets"},
		CacheStatus:  archive.CacheHit,
		SessionID:    "ses_0123456789",
		Result:       runtime.Result{ExitCode: 0, Duration: 92 * time.Second},
		Tokens:       &sessionstore.TokenUsage{Input: 1200, Output: 340},
		Commits:      []string{"abc1234", "def5678"},
		Pruned:       sessionstore.PruneResult{PrunedCount: 2},
		ArchiveSaved: true,
		Reported:     true,
	}

	var buf bytes.Buffer
	writeOutcome(&buf, outcome)
	output := buf.String()

	for _, want := range []string{
		"Event:",
		"push",
		"Repo:",
		"acme/widgets",
		"Cache:",
		"hit",
		"Exit:",
		"0 after 1m32s",
		"Session:",
		"ses_0123456789",
		"input=1200 output=340",
		"abc1234, def5678",
		"2 sessions",
		"saved",
		"posted",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("outcome output missing %q:\n%s", want, output)
		}
	}
}

func TestWriteOutcome_SparseRun(t *testing.T) {
	outcome := &harness.Outcome{
		Event:       &harness.RunEvent{Kind: harness.EventSchedule},
		CacheStatus: archive.CacheMiss,
		Result:      runtime.Result{ExitCode: 1, Duration: 3 * time.Second},
	}

	var buf bytes.Buffer
	writeOutcome(&buf, outcome)
	output := buf.String()

	for _, want := range []string{"schedule", "miss", "1 after 3s", "not saved", "not posted"} {
		if !strings.Contains(output, want) {
			t.Errorf("outcome output missing %q:\n%s", want, output)
		}
	}
	for _, absent := range []string{"Session:", "Tokens:", "Commits:", "Pruned:", "Repo:"} {
		if strings.Contains(output, absent) {
			t.Errorf("outcome output has %q for a run without it:\n%s", absent, output)
		}
	}
}
