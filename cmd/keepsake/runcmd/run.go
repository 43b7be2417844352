// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

// Package runcmd implements "keepsake run", the CI entry point. It
// normalizes the GitHub Actions trigger from the job environment,
// decides whether the event calls for an agent run, and drives the
// full lifecycle: restore state, invoke the agent runtime, write the
// run summary back, prune, archive, and post the run report.
package runcmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/keepsake-ci/keepsake/cmd/keepsake/cli"
	"github.com/keepsake-ci/keepsake/lib/clock"
	"github.com/keepsake-ci/keepsake/lib/github"
	"github.com/keepsake-ci/keepsake/lib/harness"
	"github.com/keepsake-ci/keepsake/lib/prompt"
	"github.com/keepsake-ci/keepsake/lib/runtime"
	"github.com/keepsake-ci/keepsake/lib/secret"
)

type runParams struct {
	cli.StoreConfig

	Directory string `flag:"directory,d" desc:"working directory for the agent (default: current directory)"`
}

// Command returns the "run" command.
func Command() *cli.Command {
	var params runParams
	return &cli.Command{
		Name:    "run",
		Summary: "Run the agent lifecycle for the current CI job",
		Description: `Run reads the GitHub Actions environment (GITHUB_EVENT_NAME,
GITHUB_EVENT_PATH, and friends), normalizes the trigger, and runs the
agent against the checked-out repository. Around the invocation it
restores the state archive, assembles the prompt from prior sessions,
writes the run summary into the agent's session, prunes sessions past
the retention policy, saves the archive, and posts the run-report
comment.

Triggers that do not call for a run (an edited comment, a close
without a merge, a comment that does not address the configured
mention) exit cleanly without invoking the agent. The command fails
with the agent's exit code when the agent itself fails, so the job
step mirrors the run.`,
		Usage: "keepsake run [flags]",
		Examples: []cli.Example{
			{
				Description: "Run as a GitHub Actions step",
				Command:     "keepsake run --config keepsake.yaml",
			},
			{
				Description: "Run against a checkout outside the job workspace",
				Command:     "keepsake run --directory /srv/checkout",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected arguments: %v", args)
			}
			cfg, err := params.Load()
			if err != nil {
				return err
			}
			if params.DataRoot != "" {
				cfg.Storage.DataRoot = params.DataRoot
			}
			directory, err := cli.ResolveDirectory(params.Directory)
			if err != nil {
				return err
			}

			event, err := harness.LoadEvent()
			if err != nil {
				return err
			}
			if event == nil {
				logger.Info("trigger does not call for a run")
				return nil
			}
			if ok, reason := harness.ShouldRun(event, cfg.GitHub.Mention); !ok {
				logger.Info("run skipped", "event", event.Kind, "reason", reason)
				return nil
			}

			if cfg.Runtime.Binary == "" {
				return fmt.Errorf("no agent runtime configured: set runtime.binary in keepsake.yaml")
			}
			prompts, err := prompt.Load(cfg.Prompts.Dir)
			if err != nil {
				return err
			}

			clk := clock.Real()
			runner := runtime.NewExecRunner(cfg.Runtime.Binary, cfg.Runtime.Args, clk, logger)

			var reporter *github.Client
			if token := os.Getenv(cfg.GitHub.TokenEnv); token != "" {
				buffer, err := secret.NewFromBytes([]byte(token))
				if err != nil {
					return err
				}
				defer buffer.Close()
				reporter, err = github.NewClient(github.Config{
					BaseURL: cfg.GitHub.BaseURL,
					Token:   buffer,
					Clock:   clk,
					Logger:  logger,
				})
				if err != nil {
					return err
				}
			} else {
				logger.Warn("run reporting disabled: no token in environment",
					"env", cfg.GitHub.TokenEnv,
				)
			}

			outcome, err := harness.Run(ctx, harness.Options{
				Config:    cfg,
				Event:     event,
				Directory: directory,
				Runner:    runner,
				Prompts:   prompts,
				GitHub:    reporter,
				Clock:     clk,
				Logger:    logger,
			})
			if err != nil {
				return err
			}

			writeOutcome(os.Stdout, outcome)
			if !outcome.Result.Success() {
				logger.Error("agent runtime failed", "exit_code", outcome.Result.ExitCode)
				code := outcome.Result.ExitCode
				if code < 0 {
					// Killed by a signal; no exit code to mirror.
					code = 1
				}
				return &cli.ExitError{Code: code}
			}
			return nil
		},
	}
}

func writeOutcome(w io.Writer, outcome *harness.Outcome) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Event:\t%s\n", outcome.Event.Kind)
	if outcome.Event.Repo != "" {
		fmt.Fprintf(tw, "Repo:\t%s\n", outcome.Event.Repo)
	}
	fmt.Fprintf(tw, "Cache:\t%s\n", outcome.CacheStatus)
	fmt.Fprintf(tw, "Exit:\t%d after %s\n", outcome.Result.ExitCode, outcome.Result.Duration.Round(time.Second))
	if outcome.SessionID != "" {
		fmt.Fprintf(tw, "Session:\t%s\n", outcome.SessionID)
	}
	if tokens := outcome.Tokens; tokens != nil {
		fmt.Fprintf(tw, "Tokens:\tinput=%d output=%d\n", tokens.Input, tokens.Output)
	}
	if len(outcome.Commits) > 0 {
		fmt.Fprintf(tw, "Commits:\t%s\n", strings.Join(outcome.Commits, ", "))
	}
	if outcome.Pruned.PrunedCount > 0 {
		fmt.Fprintf(tw, "Pruned:\t%d sessions\n", outcome.Pruned.PrunedCount)
	}
	fmt.Fprintf(tw, "Archive:\t%s\n", savedWord(outcome.ArchiveSaved))
	fmt.Fprintf(tw, "Report:\t%s\n", postedWord(outcome.Reported))
	tw.Flush()
}

func savedWord(saved bool) string {
	if saved {
		return "saved"
	}
	return "not saved"
}

func postedWord(posted bool) string {
	if posted {
		return "posted"
	}
	return "not posted"
}
