// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"fmt"
	"strings"
)

// commentRequest is the JSON body for creating or updating a comment.
type commentRequest struct {
	Body string `json:"body"`
}

// ListIssueComments returns a paginated iterator over the comments on
// an issue or pull request, oldest first.
func (client *Client) ListIssueComments(ctx context.Context, owner, repo string, number int) *PageIterator[Comment] {
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/comments?per_page=100", owner, repo, number)
	return list[Comment](client, path)
}

// CreateIssueComment posts a new comment on an issue or pull request.
func (client *Client) CreateIssueComment(ctx context.Context, owner, repo string, number int, body string) (*Comment, error) {
	var comment Comment
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/comments", owner, repo, number)
	if err := client.post(ctx, path, commentRequest{Body: body}, &comment); err != nil {
		return nil, fmt.Errorf("creating comment on %s/%s#%d: %w", owner, repo, number, err)
	}
	return &comment, nil
}

// UpdateIssueComment replaces the body of an existing comment.
func (client *Client) UpdateIssueComment(ctx context.Context, owner, repo string, commentID int64, body string) (*Comment, error) {
	var comment Comment
	path := fmt.Sprintf("/repos/%s/%s/issues/comments/%d", owner, repo, commentID)
	if err := client.patch(ctx, path, commentRequest{Body: body}, &comment); err != nil {
		return nil, fmt.Errorf("updating comment %d on %s/%s: %w", commentID, owner, repo, err)
	}
	return &comment, nil
}

// UpsertRunReport posts or refreshes the run report comment on an
// issue or pull request. The marker is an invisible HTML comment the
// caller embeds in the body; if an existing comment on the thread
// contains it, that comment is updated in place, so repeated runs on
// the same PR keep a single report instead of stacking new comments.
//
// The body must already contain the marker, or subsequent upserts
// will not find the comment they created.
func (client *Client) UpsertRunReport(ctx context.Context, owner, repo string, number int, marker, body string) (*Comment, error) {
	if marker == "" {
		return nil, fmt.Errorf("upserting run report on %s/%s#%d: empty marker", owner, repo, number)
	}
	if !strings.Contains(body, marker) {
		return nil, fmt.Errorf("upserting run report on %s/%s#%d: body does not contain marker %q", owner, repo, number, marker)
	}

	iterator := client.ListIssueComments(ctx, owner, repo, number)
	for {
		comments, err := iterator.Next(ctx)
		if err != nil {
			return nil, fmt.Errorf("upserting run report on %s/%s#%d: listing comments: %w", owner, repo, number, err)
		}
		if comments == nil {
			break
		}
		for _, existing := range comments {
			if strings.Contains(existing.Body, marker) {
				return client.UpdateIssueComment(ctx, owner, repo, existing.ID, body)
			}
		}
	}

	return client.CreateIssueComment(ctx, owner, repo, number, body)
}
