// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package github

import "time"

// User is a GitHub user reference. Appears in issue authors, PR
// authors, and comment authors.
type User struct {
	Login   string `json:"login"`
	ID      int64  `json:"id"`
	Type    string `json:"type"` // "User" or "Bot"
	HTMLURL string `json:"html_url"`
}

// Label is a GitHub issue/PR label.
type Label struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Branch is a git branch reference on a pull request.
type Branch struct {
	Ref string `json:"ref"` // branch name
	SHA string `json:"sha"` // head commit SHA
}

// Issue is a GitHub issue. A run triggered by an issue comment fetches
// the issue to give the agent the full discussion context.
type Issue struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	State     string     `json:"state"` // "open" or "closed"
	HTMLURL   string     `json:"html_url"`
	User      User       `json:"user"`
	Labels    []Label    `json:"labels"`
	Assignees []User     `json:"assignees"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at"`
}

// Comment is a GitHub issue or PR comment.
type Comment struct {
	ID        int64     `json:"id"`
	Body      string    `json:"body"`
	HTMLURL   string    `json:"html_url"`
	User      User      `json:"user"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PullRequest is a GitHub pull request.
type PullRequest struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	State     string     `json:"state"` // "open" or "closed"
	HTMLURL   string     `json:"html_url"`
	User      User       `json:"user"`
	Head      Branch     `json:"head"`
	Base      Branch     `json:"base"`
	Draft     bool       `json:"draft"`
	Merged    bool       `json:"merged"`
	Labels    []Label    `json:"labels"`
	Assignees []User     `json:"assignees"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at"`
	MergedAt  *time.Time `json:"merged_at"`
}
