// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

// Package browse implements "keepsake browse", the interactive
// terminal browser over the agent's session store.
package browse

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/keepsake-ci/keepsake/cmd/keepsake/cli"
	"github.com/keepsake-ci/keepsake/lib/sessionui"
)

type browseParams struct {
	cli.StoreConfig

	Directory string `flag:"directory,d" desc:"project directory to browse (default: current directory)"`
}

// Command returns the "browse" command.
func Command() *cli.Command {
	var params browseParams
	return &cli.Command{
		Name:    "browse",
		Summary: "Browse sessions in an interactive terminal UI",
		Description: `Browse opens a two-pane terminal UI over the sessions recorded for a
project directory: a session list on the left, the selected
transcript on the right, with markdown rendering for message text
and collapsible tool output.

The browser reads the same store "keepsake sessions" reads, resolved
from --data-root, the config file, or runtime discovery, in that
order.`,
		Usage: "keepsake browse [flags]",
		Examples: []cli.Example{
			{
				Description: "Browse sessions for the current directory",
				Command:     "keepsake browse",
			},
			{
				Description: "Browse another project against an explicit data root",
				Command:     "keepsake browse --directory /work/widgets --data-root /srv/agent/data",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected arguments: %v", args)
			}
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return fmt.Errorf("browse requires a terminal; use \"keepsake sessions list\" in scripts")
			}
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

			source := sessionui.NewStoreSource(store, directory)
			program := tea.NewProgram(sessionui.NewModel(source), tea.WithAltScreen(), tea.WithMouseAllMotion())
			_, err = program.Run()
			return err
		},
	}
}
