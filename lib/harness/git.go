// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package harness

import (
	"context"
	"os/exec"
	"strings"
)

// shortHashLength truncates commit hashes for the run summary.
const shortHashLength = 12

// gitHead returns the commit HEAD points at in dir, or "" when dir is
// not a git checkout (or git is unavailable). Commit accounting is
// best-effort and never fails a run.
func gitHead(ctx context.Context, dir string) string {
	output, err := exec.CommandContext(ctx, "git", "-C", dir, "rev-parse", "HEAD").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(output))
}

// gitCommitsSince lists the commits reachable from HEAD but not from
// since, newest first, as short hashes: the commits created during
// the run. Empty when since is unknown or the listing fails.
func gitCommitsSince(ctx context.Context, dir, since string) []string {
	if since == "" {
		return nil
	}
	output, err := exec.CommandContext(ctx, "git", "-C", dir, "rev-list", since+"..HEAD").Output()
	if err != nil {
		return nil
	}

	var commits []string
	for _, hash := range strings.Fields(string(output)) {
		if len(hash) > shortHashLength {
			hash = hash[:shortHashLength]
		}
		commits = append(commits, hash)
	}
	return commits
}
