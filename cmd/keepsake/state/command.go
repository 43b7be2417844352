// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

// Package state implements the "keepsake state" commands: bracketing
// the agent data root with archive save and restore, the same
// operations the run lifecycle performs around an agent invocation.
package state

import "github.com/keepsake-ci/keepsake/cmd/keepsake/cli"

// Command returns the "state" subcommand group.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "state",
		Summary: "Archive and restore the agent data root",
		Description: `Move the agent runtime's data root in and out of a single archive
file, for carrying session state across ephemeral CI runners. The
archive is compressed per blob and, when recipients are configured,
sealed with age.

"keepsake run" brackets every agent invocation with these same
operations; the explicit commands exist for cache plumbing and
debugging.`,
		Subcommands: []*cli.Command{
			saveCommand(),
			restoreCommand(),
		},
	}
}
