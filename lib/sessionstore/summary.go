// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package sessionstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/keepsake-ci/keepsake/lib/clock"
)

// SummaryAgent is the synthetic agent identity stamped on writeback
// messages, so a summary is recognizable as harness output rather than
// conversation.
const SummaryAgent = "keepsake"

// The sentinel model on writeback messages. No provider is ever called
// "system", which makes run summaries trivially filterable.
const (
	summaryProviderID = "system"
	summaryModelID    = "run-summary"
)

// RunSummary describes one harness run. Writeback renders a subset of
// it into the session; the harness also feeds it to the run-report
// comment, which is where RunID and Duration are surfaced.
type RunSummary struct {
	EventType      string
	Repo           string
	Ref            string
	RunID          string
	CacheStatus    string
	SessionIDs     []string
	CreatedPRs     []string
	CreatedCommits []string
	Duration       time.Duration
	TokenUsage     *TokenUsage
}

// WriteSessionSummary appends a closing run-summary message and text
// part to a session, in the runtime's native shape, so the next run's
// search finds what this one did. It never fails: a storage error is
// logged as a warning and swallowed, because a missing summary must
// not fail the CI job that produced the work.
func WriteSessionSummary(ctx context.Context, store Store, clk clock.Clock, logger *slog.Logger, sessionID string, summary RunSummary) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	now := clk.Now().UnixMilli()
	messageID := NewID(MessageIDPrefix, clk)
	message := Message{Role: RoleUser, User: &UserMessage{
		ID:        messageID,
		SessionID: sessionID,
		Role:      RoleUser,
		Time:      MessageTime{Created: now},
		Agent:     SummaryAgent,
		Model: &ModelRef{
			ProviderID: summaryProviderID,
			ModelID:    summaryModelID,
		},
	}}
	if err := store.AppendMessage(ctx, message); err != nil {
		logger.Warn("writing run summary message failed",
			"session_id", sessionID,
			"error", err,
		)
		return
	}

	part := Part{Type: PartTypeText, Text: &TextPart{
		ID:        NewID(PartIDPrefix, clk),
		SessionID: sessionID,
		MessageID: messageID,
		Type:      PartTypeText,
		Text:      renderRunSummary(summary),
	}}
	if err := store.AppendPart(ctx, part); err != nil {
		logger.Warn("writing run summary part failed",
			"session_id", sessionID,
			"error", err,
		)
	}
}

// renderRunSummary produces the summary text. The field order is
// fixed so the rendering is deterministic; optional fields are omitted
// entirely when empty, never rendered as a bare label.
func renderRunSummary(summary RunSummary) string {
	lines := []string{
		"Event: " + summary.EventType,
		"Repo: " + summary.Repo,
		"Ref: " + summary.Ref,
		"Cache: " + summary.CacheStatus,
	}
	if len(summary.SessionIDs) > 0 {
		lines = append(lines, "Sessions: "+strings.Join(summary.SessionIDs, ", "))
	}
	if len(summary.CreatedPRs) > 0 {
		lines = append(lines, "PRs created: "+strings.Join(summary.CreatedPRs, ", "))
	}
	if len(summary.CreatedCommits) > 0 {
		lines = append(lines, "Commits created: "+strings.Join(summary.CreatedCommits, ", "))
	}
	if tokens := summary.TokenUsage; tokens != nil && !tokensEmpty(tokens) {
		lines = append(lines, fmt.Sprintf(
			"Tokens: input=%d output=%d reasoning=%d cache-read=%d cache-write=%d",
			tokens.Input, tokens.Output, tokens.Reasoning,
			tokens.Cache.Read, tokens.Cache.Write,
		))
	}
	return strings.Join(lines, "\n")
}

func tokensEmpty(tokens *TokenUsage) bool {
	return tokens.Input == 0 && tokens.Output == 0 && tokens.Reasoning == 0 &&
		tokens.Cache.Read == 0 && tokens.Cache.Write == 0
}
