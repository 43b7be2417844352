// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package session

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
	"github.com/keepsake-ci/keepsake/lib/sessionstore"
)

// --- list ---

type listParams struct {
	cli.StoreConfig
	cli.JSONOutput
	Directory string `json:"directory" flag:"directory,d" desc:"project directory (default: current directory)"`
	Limit     int    `json:"limit"     flag:"limit,n"     desc:"maximum sessions to list (0 = all)"`
	From      string `json:"from"      flag:"from"        desc:"only sessions created on or after this date (YYYY-MM-DD)"`
	To        string `json:"to"        flag:"to"          desc:"only sessions created on or before this date (YYYY-MM-DD)"`
}

func listCommand() *cli.Command {
	var params listParams

	return &cli.Command{
		Name:    "list",
		Summary: "List main sessions for a project directory",
		Description: `List the main sessions recorded for a project directory, most
recently updated first. Child/branch sessions are an implementation
detail of the runtime and are never shown.

A directory no project has ever been created for yields an empty
list, not an error.`,
		Usage: "keepsake sessions list [flags]",
		Examples: []cli.Example{
			{
				Description: "List the five most recent sessions for the current directory",
				Command:     "keepsake sessions list --limit 5",
			},
			{
				Description: "List sessions for another checkout, as JSON",
				Command:     "keepsake sessions list --directory /work/repo --json",
			},
			{
				Description: "List sessions from a date range",
				Command:     "keepsake sessions list --from 2026-08-01 --to 2026-08-15",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return fmt.Errorf("expected no positional arguments, got %d", len(args))
			}

			cfg, err := params.Load()
			if err != nil {
				return err
			}
			directory, err := cli.ResolveDirectory(params.Directory)
			if err != nil {
				return err
			}

			opts := sessionstore.ListOptions{Limit: params.Limit}
			if params.From != "" {
				from, err := parseDate(params.From)
				if err != nil {
					return fmt.Errorf("parsing --from: %w", err)
				}
				opts.FromDate = from
			}
			if params.To != "" {
				to, err := parseDate(params.To)
				if err != nil {
					return fmt.Errorf("parsing --to: %w", err)
				}
				// Inclusive: cover the whole named day.
				opts.ToDate = to.Add(24*time.Hour - time.Millisecond)
			}

			store, err := params.OpenStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			overviews, err := sessionstore.ListSessions(ctx, store, directory, opts)
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(overviews); done {
				return err
			}

			if len(overviews) == 0 {
				logger.Info("no sessions found", "directory", directory)
				return nil
			}

			return writeSessionTable(os.Stdout, overviews)
		},
	}
}

func writeSessionTable(w io.Writer, overviews []sessionstore.SessionOverview) error {
	writer := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	fmt.Fprintf(writer, "ID\tUPDATED\tMSGS\tAGENTS\tTITLE\n")
	for _, overview := range overviews {
		fmt.Fprintf(writer, "%s\t%s\t%d\t%s\t%s\n",
			overview.ID,
			formatTimestamp(overview.Updated),
			overview.MessageCount,
			strings.Join(overview.Agents, ","),
			truncate(overview.Title, 60),
		)
	}
	return writer.Flush()
}

// parseDate parses a YYYY-MM-DD date flag value.
func parseDate(value string) (time.Time, error) {
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected YYYY-MM-DD, got %q", value)
	}
	return parsed, nil
}

// formatTimestamp renders a unix-millisecond instant for table output.
func formatTimestamp(unixMilli int64) string {
	return time.UnixMilli(unixMilli).Format("2006-01-02 15:04")
}

// truncate shortens a string to maxLength, appending "..." when it had
// to cut.
func truncate(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return s[:maxLength]
	}
	return s[:maxLength-3] + "..."
}
