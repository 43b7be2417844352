// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package harness

// Minimal GitHub event payload shapes. The Actions event file carries
// far more than this; only the fields normalization reads are
// declared, so payload format drift elsewhere never breaks parsing.

type ghUser struct {
	Login string `json:"login"`
}

type ghRepository struct {
	FullName      string `json:"full_name"`
	DefaultBranch string `json:"default_branch"`
}

type ghBranch struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

type ghIssue struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	HTMLURL string `json:"html_url"`
	User    ghUser `json:"user"`
}

type ghComment struct {
	Body    string `json:"body"`
	HTMLURL string `json:"html_url"`
	User    ghUser `json:"user"`
}

type ghIssueCommentPayload struct {
	Action     string       `json:"action"`
	Issue      ghIssue      `json:"issue"`
	Comment    ghComment    `json:"comment"`
	Repository ghRepository `json:"repository"`
	Sender     ghUser       `json:"sender"`
}

type ghPullRequest struct {
	Number  int      `json:"number"`
	Title   string   `json:"title"`
	Body    string   `json:"body"`
	HTMLURL string   `json:"html_url"`
	User    ghUser   `json:"user"`
	Head    ghBranch `json:"head"`
	Base    ghBranch `json:"base"`
	Merged  bool     `json:"merged"`
}

type ghPullRequestPayload struct {
	Action      string        `json:"action"`
	PullRequest ghPullRequest `json:"pull_request"`
	Repository  ghRepository  `json:"repository"`
	Sender      ghUser        `json:"sender"`
}

type ghCommit struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

type ghPushPayload struct {
	Ref        string       `json:"ref"`
	After      string       `json:"after"`
	Deleted    bool         `json:"deleted"`
	Repository ghRepository `json:"repository"`
	Sender     ghUser       `json:"sender"`
	HeadCommit *ghCommit    `json:"head_commit"`
}

type ghWorkflowDispatchPayload struct {
	Ref        string         `json:"ref"`
	Inputs     map[string]any `json:"inputs"`
	Repository ghRepository   `json:"repository"`
	Sender     ghUser         `json:"sender"`
}
