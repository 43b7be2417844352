// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package harness

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/keepsake-ci/keepsake/lib/clock"
	"github.com/keepsake-ci/keepsake/lib/config"
	"github.com/keepsake-ci/keepsake/lib/github"
	"github.com/keepsake-ci/keepsake/lib/prompt"
	"github.com/keepsake-ci/keepsake/lib/runtime"
	"github.com/keepsake-ci/keepsake/lib/secret"
	"github.com/keepsake-ci/keepsake/lib/sessionstore"
)

var testBase = time.Date(2026, time.April, 2, 10, 0, 0, 0, time.UTC)

func millisAgo(d time.Duration) int64 {
	return testBase.Add(-d).UnixMilli()
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

// writeJSON writes a record the way the agent runtime's flat-file
// backend lays them out, creating parent directories as needed.
func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
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

func seedUserMessage(t *testing.T, root string, message sessionstore.UserMessage) {
	t.Helper()
	message.Role = sessionstore.RoleUser
	writeJSON(t, filepath.Join(root, "message", message.SessionID, message.ID+".json"), message)
}

func seedAssistantMessage(t *testing.T, root string, message sessionstore.AssistantMessage) {
	t.Helper()
	message.Role = sessionstore.RoleAssistant
	writeJSON(t, filepath.Join(root, "message", message.SessionID, message.ID+".json"), message)
}

func seedTextPart(t *testing.T, root string, part sessionstore.TextPart) {
	t.Helper()
	part.Type = sessionstore.PartTypeText
	writeJSON(t, filepath.Join(root, "part", part.MessageID, part.ID+".json"), part)
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

// fakeRunner is a runtime.Runner that records its invocation and
// simulates the agent by calling a hook, the way the real runtime
// writes its session store as a side effect of running.
type fakeRunner struct {
	invocation *runtime.Invocation
	result     runtime.Result
	err        error
	onRun      func(invocation runtime.Invocation)
}

func (r *fakeRunner) Run(ctx context.Context, invocation runtime.Invocation) (*runtime.Result, error) {
	r.invocation = &invocation
	if r.onRun != nil {
		r.onRun(invocation)
	}
	if r.err != nil {
		return nil, r.err
	}
	result := r.result
	return &result, nil
}

// lifecycleFixture is the shared setup for lifecycle tests: an
// isolated XDG environment, a config pointing at a temp data root
// with the flat-file backend pinned, and default prompts.
type lifecycleFixture struct {
	cfg       *config.Config
	dataRoot  string
	directory string
	clk       *clock.FakeClock
	prompts   *prompt.Library
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("KEEPSAKE_AGE_IDENTITY", "")

	dataRoot := filepath.Join(t.TempDir(), "storage")
	cfg := config.Default()
	cfg.Environment = config.CI
	cfg.Storage.DataRoot = dataRoot
	cfg.Storage.AgentVersion = "1.0.0"
	cfg.Runtime.Binary = "keepsake-test-agent"

	prompts, err := prompt.Load("")
	if err != nil {
		t.Fatalf("loading prompts: %v", err)
	}

	return &lifecycleFixture{
		cfg:       cfg,
		dataRoot:  dataRoot,
		directory: t.TempDir(),
		clk:       clock.Fake(testBase),
		prompts:   prompts,
	}
}

func (f *lifecycleFixture) options(runner runtime.Runner, event *RunEvent) Options {
	return Options{
		Config:    f.cfg,
		Event:     event,
		Directory: f.directory,
		Runner:    runner,
		Prompts:   f.prompts,
		Clock:     f.clk,
	}
}

// seedPriorWork records one finished session with a searchable text
// part, as a previous run would have left it.
func (f *lifecycleFixture) seedPriorWork(t *testing.T, updated int64) {
	t.Helper()
	f.seedPriorWorkAt(t, f.dataRoot, updated)
}

// seedPriorWorkAt writes the same records under an arbitrary root,
// for tests that stage data outside the live data root first.
func (f *lifecycleFixture) seedPriorWorkAt(t *testing.T, root string, updated int64) {
	t.Helper()
	seedProject(t, root, sessionstore.Project{
		ID:       "prj_ci",
		Worktree: f.directory,
		VCS:      "git",
		Time:     sessionstore.TimeInfo{Created: millisAgo(days(120)), Updated: updated},
	})
	session := makeSession("ses_0prior1", "prj_ci", f.directory, updated, updated)
	session.Title = "Pin the worker pool size"
	seedSession(t, root, session)
	seedAssistantMessage(t, root, sessionstore.AssistantMessage{
		ID:        "msg_0prior1",
		SessionID: "ses_0prior1",
		Time:      sessionstore.MessageTime{Created: updated},
		Tokens:    sessionstore.TokenUsage{Input: 50, Output: 20},
	})
	seedTextPart(t, root, sessionstore.TextPart{
		ID:        "prt_0prior1",
		SessionID: "ses_0prior1",
		MessageID: "msg_0prior1",
		Text:      "Fixed the scheduler race by pinning the worker pool size.",
	})
}

func commentEvent() *RunEvent {
	return &RunEvent{
		Kind:        EventIssueComment,
		Action:      "created",
		Repo:        "octo/widgets",
		Ref:         "main",
		Number:      7,
		Title:       "Scheduler test flakes on arm64",
		Body:        "The scheduler integration test times out roughly once a day.",
		Instruction: "@keepsake please fix the flaky scheduler test",
		Actor:       "maintainer",
		RunID:       "90210",
	}
}

// newReportClient wires a github.Client at a TLS test server.
func newReportClient(t *testing.T, server *httptest.Server) *github.Client {
	t.Helper()
	token, err := secret.NewFromBytes([]byte("test-token"))
	if err != nil {
		t.Fatalf("creating token: %v", err)
	}
	t.Cleanup(func() { token.Close() })

	client, err := github.NewClient(github.Config{
		BaseURL:    server.URL,
		Token:      token,
		HTTPClient: server.Client(),
	})
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}
	return client
}
