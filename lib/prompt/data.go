// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package prompt

import "time"

// RunData is the payload for the "run" template: everything the agent
// prompt says about the trigger and about prior sessions. The harness
// maps its normalized event and store reads into this flat shape so
// the template stays decoupled from both.
type RunData struct {
	// Repo is the "owner/name" repository slug.
	Repo string

	// EventKind names the trigger (issue_comment, pull_request, push,
	// schedule, workflow_dispatch).
	EventKind string

	// Ref is the git ref the run targets, when the event carries one.
	Ref string

	// Number is the issue or pull request number, 0 when the event
	// has none.
	Number int

	// Title and Body are the issue or pull request title and body.
	Title string
	Body  string

	// Actor is the login that triggered the run.
	Actor string

	// Instruction is the triggering comment with the mention stripped,
	// or empty for non-comment events.
	Instruction string

	// Sessions are overviews of recent prior sessions in this
	// repository, newest first.
	Sessions []SessionOverview

	// Excerpts are search hits from past sessions relevant to the
	// trigger.
	Excerpts []Excerpt
}

// SessionOverview is a compact description of one prior session.
type SessionOverview struct {
	ID       string
	Title    string
	Updated  time.Time
	Agents   []string
	Messages int
}

// Excerpt is one search hit shown to the agent as prior context.
type Excerpt struct {
	SessionID string
	Role      string
	Agent     string
	Text      string
}

// ReportData is the payload for the "report" template: the run-report
// comment posted back to the triggering issue or pull request. All
// display fields are preformatted strings; empty ones drop their row.
type ReportData struct {
	// Marker is the invisible HTML comment that lets the next run
	// find and update this comment.
	Marker string

	// Status is the headline outcome ("succeeded", "failed (exit 3)").
	Status string

	// SessionID identifies the session the run produced, when known.
	SessionID string

	// Duration is the formatted agent wall-clock time.
	Duration string

	// Tokens is the formatted token usage summary.
	Tokens string

	// Pruned is the formatted retention result.
	Pruned string

	// Archive is the formatted state archive result.
	Archive string
}
