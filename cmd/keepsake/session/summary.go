// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/keepsake-ci/keepsake/cmd/keepsake/cli"
	"github.com/keepsake-ci/keepsake/lib/clock"
	"github.com/keepsake-ci/keepsake/lib/sessionstore"
)

// --- summary ---

// SummaryCommand returns the top-level "summary" subcommand group.
func SummaryCommand() *cli.Command {
	return &cli.Command{
		Name:    "summary",
		Summary: "Run-summary writeback",
		Description: `Write run summaries into sessions so a later run's search finds
what an earlier one did. The run lifecycle does this automatically;
the subcommands exist for scripting and repair.`,
		Subcommands: []*cli.Command{
			summaryWriteCommand(),
		},
	}
}

type summaryWriteParams struct {
	cli.StoreConfig
	Directory   string        `json:"directory"   flag:"directory,d"  desc:"project directory (default: current directory)"`
	EventType   string        `json:"eventType"   flag:"event-type"   desc:"triggering event type" default:"manual"`
	Repo        string        `json:"repo"        flag:"repo"         desc:"owner/repo the run worked on"`
	Ref         string        `json:"ref"         flag:"ref"          desc:"git ref the run worked on"`
	RunID       string        `json:"runID"       flag:"run-id"       desc:"CI run identifier"`
	CacheStatus string        `json:"cacheStatus" flag:"cache-status" desc:"archive restore status (hit, miss, corrupt)"`
	Duration    time.Duration `json:"duration"    flag:"duration"     desc:"wall-clock run duration (e.g. 4m30s)"`
	Commits     []string      `json:"commits"     flag:"commits"      desc:"commit SHAs created by the run"`
	PRs         []string      `json:"prs"         flag:"prs"          desc:"pull request URLs created by the run"`
}

func summaryWriteCommand() *cli.Command {
	var params summaryWriteParams

	return &cli.Command{
		Name:    "write",
		Summary: "Append a run summary to a session",
		Description: `Append a synthetic closing message to a session describing a run:
event type, repo, ref, cache status, and whatever commits and PRs
the run produced. The message lands in the runtime's native shape,
so the next run's search treats it as ordinary session content.

The session must exist; everything past that point is best-effort,
matching the lifecycle's own writeback.`,
		Usage: "keepsake summary write <session-id> [flags]",
		Examples: []cli.Example{
			{
				Description: "Record a manual intervention",
				Command:     "keepsake summary write ses_8f3a1b2c4d --event-type manual --repo acme/widgets",
			},
			{
				Description: "Record a run with its commits",
				Command:     "keepsake summary write ses_8f3a1b2c4d --event-type push --ref refs/heads/main --commits abc1234,def5678",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one session ID argument\n\nUsage: keepsake summary write <session-id> [flags]")
			}
			sessionID := args[0]

			cfg, err := params.Load()
			if err != nil {
				return err
			}
			directory, err := cli.ResolveDirectory(params.Directory)
			if err != nil {
				return err
			}

			store, err := params.OpenStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			// Writeback itself never fails, so verify the target first:
			// writing a summary into a nonexistent session would strand
			// records nothing can list.
			project, err := store.FindProjectByDirectory(ctx, directory)
			if err != nil {
				return err
			}
			if project == nil {
				return fmt.Errorf("no project recorded for directory %s", directory)
			}
			session, err := store.GetSession(ctx, project.ID, sessionID)
			if err != nil {
				return err
			}
			if session == nil {
				return fmt.Errorf("session %s not found in %s", sessionID, directory)
			}

			sessionstore.WriteSessionSummary(ctx, store, clock.Real(), logger, sessionID, sessionstore.RunSummary{
				EventType:      params.EventType,
				Repo:           params.Repo,
				Ref:            params.Ref,
				RunID:          params.RunID,
				CacheStatus:    params.CacheStatus,
				CreatedPRs:     params.PRs,
				CreatedCommits: params.Commits,
				Duration:       params.Duration,
			})

			logger.Info("run summary written",
				"session_id", sessionID,
				"event_type", params.EventType,
			)
			return nil
		},
	}
}
