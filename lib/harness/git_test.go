// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package harness

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// gitCommand runs git in dir with a fixed author identity so commits
// work without host-level git configuration.
func gitCommand(t *testing.T, dir string, args ...string) {
	t.Helper()
	command := exec.Command("git", append([]string{"-C", dir}, args...)...)
	command.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Test",
		"GIT_AUTHOR_EMAIL=test@test.local",
		"GIT_COMMITTER_NAME=Test",
		"GIT_COMMITTER_EMAIL=test@test.local",
	)
	if output, err := command.CombinedOutput(); err != nil {
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, output)
	}
}

// initWorkRepo creates a repository with one initial commit and
// returns its path.
func initWorkRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	gitCommand(t, dir, "init")
	if err := os.WriteFile(filepath.Join(dir, "README"), []byte("test\n"), 0o644); err != nil {
		t.Fatalf("write README: %v", err)
	}
	gitCommand(t, dir, "add", "README")
	gitCommand(t, dir, "commit", "-m", "initial")
	return dir
}

func commitFile(t *testing.T, dir, name, message string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(name+"\n"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	gitCommand(t, dir, "add", name)
	gitCommand(t, dir, "commit", "-m", message)
}

func TestGitHead(t *testing.T) {
	dir := initWorkRepo(t)

	head := gitHead(context.Background(), dir)
	if len(head) != 40 {
		t.Fatalf("head = %q, want a full hash", head)
	}
	for _, r := range head {
		if !strings.ContainsRune("0123456789abcdef", r) {
			t.Fatalf("head = %q, want hex", head)
		}
	}
}

func TestGitCommitsSince(t *testing.T) {
	dir := initWorkRepo(t)
	base := gitHead(context.Background(), dir)

	commitFile(t, dir, "first.txt", "first change")
	commitFile(t, dir, "second.txt", "second change")

	commits := gitCommitsSince(context.Background(), dir, base)
	if len(commits) != 2 {
		t.Fatalf("commits = %v, want 2", commits)
	}
	for _, commit := range commits {
		if len(commit) != shortHashLength {
			t.Errorf("commit %q, want %d-char short hash", commit, shortHashLength)
		}
	}
	// rev-list emits newest first.
	if commits[0] == commits[1] {
		t.Errorf("duplicate commits: %v", commits)
	}
	head := gitHead(context.Background(), dir)
	if !strings.HasPrefix(head, commits[0]) {
		t.Errorf("first commit %q is not the current head %q", commits[0], head)
	}
}

func TestGitCommitsSinceNoBase(t *testing.T) {
	dir := initWorkRepo(t)
	if commits := gitCommitsSince(context.Background(), dir, ""); commits != nil {
		t.Errorf("commits without a base = %v, want nil", commits)
	}
}

func TestGitHelpersOutsideRepository(t *testing.T) {
	dir := t.TempDir()
	if head := gitHead(context.Background(), dir); head != "" {
		t.Errorf("head outside a repository = %q", head)
	}
	if commits := gitCommitsSince(context.Background(), dir, "abc123"); commits != nil {
		t.Errorf("commits outside a repository = %v", commits)
	}
}
