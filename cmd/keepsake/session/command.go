// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package session

import "github.com/keepsake-ci/keepsake/cmd/keepsake/cli"

// Command returns the "sessions" subcommand group.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "sessions",
		Summary: "Inspect the agent session store",
		Description: `Read the agent runtime's session store directly: list prior sessions
for a project directory, search their content, and dump a full
transcript.

These commands never invoke the agent runtime; they operate on the
store the runtime left on disk. The store location comes from
--data-root, the config file, or runtime discovery, in that order.`,
		Subcommands: []*cli.Command{
			listCommand(),
			searchCommand(),
			showCommand(),
		},
	}
}
