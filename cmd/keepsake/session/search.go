// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/keepsake-ci/keepsake/cmd/keepsake/cli"
	"github.com/keepsake-ci/keepsake/lib/sessionstore"
)

// --- search ---

type searchParams struct {
	cli.StoreConfig
	cli.JSONOutput
	Directory     string `json:"directory"     flag:"directory,d"    desc:"project directory (default: current directory)"`
	Limit         int    `json:"limit"         flag:"limit,n"        desc:"global match budget (default: config search.limit)"`
	CaseSensitive bool   `json:"caseSensitive" flag:"case-sensitive" desc:"match case exactly"`
	Session       string `json:"session"       flag:"session"        desc:"restrict the search to one session ID"`
}

func searchCommand() *cli.Command {
	var params searchParams

	return &cli.Command{
		Name:    "search",
		Summary: "Search session content for a substring",
		Description: `Scan session transcripts for a substring and print excerpted
matches, grouped by session. Text and reasoning parts are searched
as-is; completed tool calls are searched as "name: output".

Sessions are visited most recently updated first and the scan stops
once the match budget is reached, so a search stays cheap no matter
how much history the store holds.`,
		Usage: "keepsake sessions search <query> [flags]",
		Examples: []cli.Example{
			{
				Description: "Find where a failing test was discussed",
				Command:     "keepsake sessions search 'TestArchiveRoundTrip'",
			},
			{
				Description: "Search one session only",
				Command:     "keepsake sessions search 'flaky' --session ses_8f3a1b2c4d",
			},
			{
				Description: "Raise the match budget and emit JSON",
				Command:     "keepsake sessions search 'timeout' --limit 50 --json",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one query argument\n\nUsage: keepsake sessions search <query> [flags]")
			}
			query := args[0]

			cfg, err := params.Load()
			if err != nil {
				return err
			}
			directory, err := cli.ResolveDirectory(params.Directory)
			if err != nil {
				return err
			}

			limit := params.Limit
			if limit <= 0 {
				limit = cfg.Search.Limit
			}

			store, err := params.OpenStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			results, err := sessionstore.SearchSessions(ctx, store, query, directory, sessionstore.SearchOptions{
				Limit:         limit,
				CaseSensitive: params.CaseSensitive,
				SessionID:     params.Session,
			})
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(results); done {
				return err
			}

			if len(results) == 0 {
				logger.Info("no matches found", "query", query)
				return nil
			}

			writeSearchResults(os.Stdout, results)
			return nil
		},
	}
}

func writeSearchResults(w io.Writer, results []sessionstore.SessionSearchResult) {
	for i, result := range results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s (%d matches)\n", result.SessionID, len(result.Matches))
		for _, match := range result.Matches {
			label := string(match.Role)
			if match.Agent != "" {
				label += "/" + match.Agent
			}
			fmt.Fprintf(w, "  [%s] %s\n", label, match.Excerpt)
		}
	}
}
