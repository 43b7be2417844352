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
	"github.com/keepsake-ci/keepsake/lib/clock"
	"github.com/keepsake-ci/keepsake/lib/sessionstore"
)

// --- prune ---

type pruneParams struct {
	cli.StoreConfig
	cli.JSONOutput
	Directory   string `json:"directory"   flag:"directory,d"  desc:"project directory (default: current directory)"`
	MaxSessions int    `json:"maxSessions" flag:"max-sessions" desc:"keep this many most recent sessions (default: config retention.max_sessions)" default:"-1"`
	MaxAgeDays  int    `json:"maxAgeDays"  flag:"max-age-days" desc:"keep sessions updated within this many days (default: config retention.max_age_days)" default:"-1"`
}

// PruneCommand returns the top-level "prune" command.
func PruneCommand() *cli.Command {
	var params pruneParams

	return &cli.Command{
		Name:    "prune",
		Summary: "Apply the retention policy to stored sessions",
		Description: `Delete main sessions that fall outside the retention policy. The
policy is a union: sessions updated within the age window survive,
and the most recently updated sessions survive regardless of age, so
a long idle period never empties the store.

Child sessions are deleted exactly when their parent is, never
evaluated on their own. A deletion that fails is logged and skipped;
the run continues and reports only what was actually removed.`,
		Usage: "keepsake prune [flags]",
		Examples: []cli.Example{
			{
				Description: "Prune with the configured policy",
				Command:     "keepsake prune",
			},
			{
				Description: "Keep only the three most recent sessions, regardless of config",
				Command:     "keepsake prune --max-sessions 3 --max-age-days 0",
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

			opts := sessionstore.PruneOptions{
				MaxSessions: cfg.Retention.MaxSessions,
				MaxAgeDays:  cfg.Retention.MaxAgeDays,
			}
			if params.MaxSessions >= 0 {
				opts.MaxSessions = params.MaxSessions
			}
			if params.MaxAgeDays >= 0 {
				opts.MaxAgeDays = params.MaxAgeDays
			}

			store, err := params.OpenStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			result, err := sessionstore.PruneSessions(ctx, store, clock.Real(), logger, directory, opts)
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(result); done {
				return err
			}

			if result.PrunedCount == 0 {
				logger.Info("nothing to prune",
					"directory", directory,
					"remaining", result.RemainingCount,
				)
				return nil
			}

			writePruneResult(os.Stdout, result)
			return nil
		},
	}
}

func writePruneResult(w io.Writer, result sessionstore.PruneResult) {
	fmt.Fprintf(w, "pruned %d sessions (%s freed), %d remaining\n",
		result.PrunedCount, formatBytes(result.FreedBytes), result.RemainingCount)
	for _, id := range result.PrunedSessionIDs {
		fmt.Fprintf(w, "  %s\n", id)
	}
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(bytes int64) string {
	switch {
	case bytes >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(1<<30))
	case bytes >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(1<<20))
	case bytes >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
