// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"fmt"
)

// GetIssue retrieves a single issue by number. Works for pull requests
// too (every PR is an issue), though GetPullRequest returns the richer
// PR fields.
func (client *Client) GetIssue(ctx context.Context, owner, repo string, number int) (*Issue, error) {
	var issue Issue
	path := fmt.Sprintf("/repos/%s/%s/issues/%d", owner, repo, number)
	if err := client.get(ctx, path, &issue); err != nil {
		return nil, fmt.Errorf("getting issue %s/%s#%d: %w", owner, repo, number, err)
	}
	return &issue, nil
}
