// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package harness

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// EventKind names a normalized trigger event.
type EventKind string

const (
	EventIssueComment     EventKind = "issue_comment"
	EventPullRequest      EventKind = "pull_request"
	EventPush             EventKind = "push"
	EventSchedule         EventKind = "schedule"
	EventWorkflowDispatch EventKind = "workflow_dispatch"
)

// RunEvent is a normalized trigger: one flat shape regardless of
// which GitHub event produced it. Fields an event does not carry stay
// zero, and templates render around them.
type RunEvent struct {
	// Kind names the trigger event.
	Kind EventKind

	// Action refines the kind where GitHub distinguishes one
	// ("created", "opened", "merged"). Empty for kinds without
	// actions.
	Action string

	// Repo is the "owner/name" repository slug.
	Repo string

	// Ref is the git ref the run targets, with any refs/heads/ or
	// refs/tags/ prefix removed.
	Ref string

	// Number is the issue or pull request number, 0 when the event
	// has none.
	Number int

	// Title and Body describe the issue, pull request, or head
	// commit the event is about.
	Title string
	Body  string

	// Instruction is the text addressed to the agent: the triggering
	// comment, or the "instruction" input of a manual dispatch.
	Instruction string

	// Actor is the login that triggered the run.
	Actor string

	// PullRequest reports whether the event's thread is a pull
	// request rather than an issue.
	PullRequest bool

	// RunID identifies the CI run, for the writeback summary.
	RunID string
}

// Owner returns the repository owner half of the slug.
func (event *RunEvent) Owner() string {
	owner, _, _ := strings.Cut(event.Repo, "/")
	return owner
}

// Name returns the repository name half of the slug.
func (event *RunEvent) Name() string {
	_, name, _ := strings.Cut(event.Repo, "/")
	return name
}

// EventInputs are the trigger values the Actions runner provides
// through the environment for every job.
type EventInputs struct {
	// Name is the event name (GITHUB_EVENT_NAME).
	Name string

	// PayloadPath is the event payload file (GITHUB_EVENT_PATH).
	PayloadPath string

	// Repository is the "owner/name" slug (GITHUB_REPOSITORY).
	Repository string

	// Ref is the fully-qualified git ref (GITHUB_REF).
	Ref string

	// RunID identifies the workflow run (GITHUB_RUN_ID).
	RunID string

	// Actor is the login that initiated the run (GITHUB_ACTOR).
	Actor string
}

// InputsFromEnvironment reads the standard GitHub Actions trigger
// variables.
func InputsFromEnvironment() EventInputs {
	return EventInputs{
		Name:        os.Getenv("GITHUB_EVENT_NAME"),
		PayloadPath: os.Getenv("GITHUB_EVENT_PATH"),
		Repository:  os.Getenv("GITHUB_REPOSITORY"),
		Ref:         os.Getenv("GITHUB_REF"),
		RunID:       os.Getenv("GITHUB_RUN_ID"),
		Actor:       os.Getenv("GITHUB_ACTOR"),
	}
}

// LoadEvent reads and normalizes the trigger event for the current
// job. A nil event with a nil error means the trigger does not call
// for a run (an edited comment, an unmerged close) and the job should
// exit cleanly.
func LoadEvent() (*RunEvent, error) {
	inputs := InputsFromEnvironment()
	if inputs.Name == "" {
		return nil, fmt.Errorf("GITHUB_EVENT_NAME is not set; keepsake run expects a GitHub Actions environment")
	}

	var payload []byte
	if inputs.PayloadPath != "" {
		data, err := os.ReadFile(inputs.PayloadPath)
		if err != nil {
			return nil, fmt.Errorf("reading event payload: %w", err)
		}
		payload = data
	}
	return NormalizeEvent(inputs, payload)
}

// NormalizeEvent maps a raw trigger into a RunEvent. Payload fields
// win over the environment-derived defaults when both are present.
// Triggers that never warrant work (comment edits and deletions,
// unmerged pull request closes, branch deletions, event types
// keepsake has no behavior for) normalize to nil with no error.
func NormalizeEvent(inputs EventInputs, payload []byte) (*RunEvent, error) {
	event := &RunEvent{
		Repo:  inputs.Repository,
		Ref:   trimRefPrefix(inputs.Ref),
		Actor: inputs.Actor,
		RunID: inputs.RunID,
	}

	switch inputs.Name {
	case "issue_comment":
		var body ghIssueCommentPayload
		if err := json.Unmarshal(payload, &body); err != nil {
			return nil, fmt.Errorf("parsing issue_comment payload: %w", err)
		}
		// Edits and deletions never trigger work.
		if body.Action != "created" {
			return nil, nil
		}
		event.Kind = EventIssueComment
		event.Action = body.Action
		event.Number = body.Issue.Number
		event.Title = body.Issue.Title
		event.Body = body.Issue.Body
		event.Instruction = body.Comment.Body
		// The comments API does not distinguish issues from pull
		// requests; the thread URL does.
		event.PullRequest = strings.Contains(body.Issue.HTMLURL, "/pull/")
		override(&event.Repo, body.Repository.FullName)
		override(&event.Actor, body.Sender.Login)

	case "pull_request":
		var body ghPullRequestPayload
		if err := json.Unmarshal(payload, &body); err != nil {
			return nil, fmt.Errorf("parsing pull_request payload: %w", err)
		}
		switch body.Action {
		case "opened":
			event.Action = "opened"
		case "closed":
			if !body.PullRequest.Merged {
				return nil, nil
			}
			event.Action = "merged"
		default:
			return nil, nil
		}
		event.Kind = EventPullRequest
		event.Number = body.PullRequest.Number
		event.Title = body.PullRequest.Title
		event.Body = body.PullRequest.Body
		event.PullRequest = true
		override(&event.Ref, body.PullRequest.Head.Ref)
		override(&event.Repo, body.Repository.FullName)
		override(&event.Actor, body.Sender.Login)

	case "push":
		var body ghPushPayload
		if err := json.Unmarshal(payload, &body); err != nil {
			return nil, fmt.Errorf("parsing push payload: %w", err)
		}
		if body.Deleted {
			return nil, nil
		}
		event.Kind = EventPush
		if body.Ref != "" {
			event.Ref = trimRefPrefix(body.Ref)
		}
		if body.HeadCommit != nil {
			event.Title = firstLine(body.HeadCommit.Message)
		}
		override(&event.Repo, body.Repository.FullName)
		override(&event.Actor, body.Sender.Login)

	case "schedule":
		// The schedule payload carries nothing normalization needs;
		// everything comes from the environment.
		event.Kind = EventSchedule

	case "workflow_dispatch":
		var body ghWorkflowDispatchPayload
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &body); err != nil {
				return nil, fmt.Errorf("parsing workflow_dispatch payload: %w", err)
			}
		}
		event.Kind = EventWorkflowDispatch
		if body.Ref != "" {
			event.Ref = trimRefPrefix(body.Ref)
		}
		if instruction, ok := body.Inputs["instruction"].(string); ok {
			event.Instruction = instruction
		}
		override(&event.Repo, body.Repository.FullName)
		override(&event.Actor, body.Sender.Login)

	default:
		return nil, nil
	}

	if event.Repo == "" {
		return nil, fmt.Errorf("%s event carries no repository", inputs.Name)
	}
	return event, nil
}

// override replaces *field when value is non-empty.
func override(field *string, value string) {
	if value != "" {
		*field = value
	}
}

// trimRefPrefix strips the refs/heads/ or refs/tags/ prefix from a
// fully-qualified git ref.
func trimRefPrefix(ref string) string {
	for _, prefix := range []string{"refs/heads/", "refs/tags/"} {
		if trimmed, ok := strings.CutPrefix(ref, prefix); ok {
			return trimmed
		}
	}
	return ref
}

// firstLine returns the first line of a commit message, trimmed.
func firstLine(message string) string {
	if index := strings.IndexByte(message, '\n'); index >= 0 {
		message = message[:index]
	}
	return strings.TrimSpace(message)
}
