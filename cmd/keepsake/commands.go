// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"

	browsecmd "github.com/keepsake-ci/keepsake/cmd/keepsake/browse"
	"github.com/keepsake-ci/keepsake/cmd/keepsake/cli"
	"github.com/keepsake-ci/keepsake/cmd/keepsake/runcmd"
	sessioncmd "github.com/keepsake-ci/keepsake/cmd/keepsake/session"
	statecmd "github.com/keepsake-ci/keepsake/cmd/keepsake/state"
	"github.com/keepsake-ci/keepsake/lib/version"
)

// rootCommand builds the complete keepsake command tree.
func rootCommand() *cli.Command {
	return &cli.Command{
		Name: "keepsake",
		Description: `Keepsake: session persistence for coding agents in CI.

Keepsake wraps an agent runtime in a CI job: it restores the agent's
session store from an archive before the run, invokes the agent for
the triggering event, and writes the store back afterward so later
runs remember earlier ones.`,
		Subcommands: []*cli.Command{
			runcmd.Command(),
			sessioncmd.Command(),
			sessioncmd.PruneCommand(),
			sessioncmd.SummaryCommand(),
			statecmd.Command(),
			browsecmd.Command(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, _ []string, _ *slog.Logger) error {
					fmt.Printf("keepsake %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Run the agent lifecycle inside a GitHub Actions job",
				Command:     "keepsake run --config keepsake.yaml",
			},
			{
				Description: "List recent sessions for the current repository",
				Command:     "keepsake sessions list",
			},
			{
				Description: "Search session transcripts for a phrase",
				Command:     "keepsake sessions search \"deploy timeout\"",
			},
			{
				Description: "Show one session's full transcript",
				Command:     "keepsake sessions show ses_0123456789",
			},
			{
				Description: "Browse sessions in an interactive terminal UI",
				Command:     "keepsake browse",
			},
			{
				Description: "Prune sessions past the retention policy",
				Command:     "keepsake prune --max-age-days 14",
			},
			{
				Description: "Save the agent state archive by hand",
				Command:     "keepsake state save --data-root /srv/agent/data",
			},
		},
	}
}
