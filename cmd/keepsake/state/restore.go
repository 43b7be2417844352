// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/keepsake-ci/keepsake/cmd/keepsake/cli"
	"github.com/keepsake-ci/keepsake/lib/archive"
	"github.com/keepsake-ci/keepsake/lib/clock"
	"github.com/keepsake-ci/keepsake/lib/harness"
)

// --- restore ---

type restoreParams struct {
	cli.StoreConfig
	Archive string `json:"archive" flag:"archive" desc:"archive file path (default: <data-root>.kpsk)"`
}

func restoreCommand() *cli.Command {
	var params restoreParams

	return &cli.Command{
		Name:    "restore",
		Summary: "Restore the agent data root from an archive",
		Description: `Unpack an archive into the data root. A missing archive is a cache
miss, not an error: the command reports it and exits zero so a cold
CI runner proceeds with an empty store. A corrupt or unreadable
archive is an error, and the data root is left untouched.`,
		Usage: "keepsake state restore [flags]",
		Examples: []cli.Example{
			{
				Description: "Restore from the default location",
				Command:     "keepsake state restore",
			},
			{
				Description: "Restore the CI cache before a run",
				Command:     "keepsake state restore --archive /cache/sessions.kpsk",
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
			dataRoot, _, err := params.ResolveDataRoot(ctx, cfg, logger)
			if err != nil {
				return err
			}
			archivePath := resolveArchivePath(params.Archive, cfg, dataRoot)

			archiver, cleanup, err := harness.NewArchiver(cfg, clock.Real(), logger)
			if err != nil {
				return err
			}
			defer cleanup()

			lock, err := archive.AcquireLock(dataRoot)
			if err != nil {
				return err
			}
			defer lock.Release()

			result, err := archiver.Restore(ctx, archivePath, dataRoot)
			if err != nil {
				return err
			}

			if result.Status == archive.CacheMiss {
				logger.Info("no archive found, starting cold", "path", archivePath)
				fmt.Fprintf(os.Stdout, "no archive at %s (cache miss)\n", archivePath)
				return nil
			}

			logger.Info("state archive restored",
				"path", archivePath,
				"files", result.Files,
				"bytes", result.Bytes,
			)
			fmt.Fprintf(os.Stdout, "restored %d files (%s) from %s\n",
				result.Files, formatBytes(result.Bytes), archivePath)
			return nil
		},
	}
}
