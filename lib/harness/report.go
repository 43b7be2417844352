// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/keepsake-ci/keepsake/lib/github"
	"github.com/keepsake-ci/keepsake/lib/prompt"
	"github.com/keepsake-ci/keepsake/lib/runtime"
	"github.com/keepsake-ci/keepsake/lib/sessionstore"
)

// reportMarker identifies keepsake's run-report comment, so
// successive runs on a thread update one comment instead of stacking
// new ones.
const reportMarker = "<!-- keepsake-run-report -->"

// postReport renders the report body and upserts it as a comment on
// the triggering issue or pull request.
func postReport(ctx context.Context, client *github.Client, prompts *prompt.Library, event *RunEvent, outcome *Outcome) error {
	body, err := prompts.Render("report", buildReportData(outcome))
	if err != nil {
		return fmt.Errorf("rendering run report: %w", err)
	}
	_, err = client.UpsertRunReport(ctx, event.Owner(), event.Name(), event.Number, reportMarker, body)
	return err
}

// buildReportData formats an outcome for the report template. Empty
// fields drop their row in the rendered table.
func buildReportData(outcome *Outcome) prompt.ReportData {
	return prompt.ReportData{
		Marker:    reportMarker,
		Status:    formatStatus(outcome.Result),
		SessionID: outcome.SessionID,
		Duration:  formatDuration(outcome.Result.Duration),
		Tokens:    formatTokens(outcome.Tokens),
		Pruned:    formatRetention(outcome.Pruned),
		Archive:   formatArchive(outcome),
	}
}

func formatStatus(result runtime.Result) string {
	if result.Success() {
		return "succeeded"
	}
	return fmt.Sprintf("failed (exit %d)", result.ExitCode)
}

func formatDuration(duration time.Duration) string {
	switch {
	case duration <= 0:
		return ""
	case duration < time.Second:
		return duration.Round(time.Millisecond).String()
	default:
		return duration.Round(time.Second).String()
	}
}

func formatTokens(tokens *sessionstore.TokenUsage) string {
	if tokens == nil {
		return ""
	}
	formatted := fmt.Sprintf("%d in / %d out", tokens.Input, tokens.Output)
	if tokens.Cache.Read > 0 {
		formatted += fmt.Sprintf(" (%d cached)", tokens.Cache.Read)
	}
	return formatted
}

func formatRetention(pruned sessionstore.PruneResult) string {
	if pruned.PrunedCount == 0 {
		return ""
	}
	return fmt.Sprintf("pruned %d, kept %d", pruned.PrunedCount, pruned.RemainingCount)
}

// formatArchive summarizes the state bracket: how the restore went
// and whether the save landed.
func formatArchive(outcome *Outcome) string {
	if outcome.CacheStatus == "" {
		return ""
	}
	if outcome.ArchiveSaved {
		return string(outcome.CacheStatus) + " / saved"
	}
	return string(outcome.CacheStatus) + " / save failed"
}
