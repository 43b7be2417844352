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
	"github.com/keepsake-ci/keepsake/lib/config"
	"github.com/keepsake-ci/keepsake/lib/harness"
)

// --- save ---

type saveParams struct {
	cli.StoreConfig
	Archive string `json:"archive" flag:"archive" desc:"archive file path (default: <data-root>.kpsk)"`
}

func saveCommand() *cli.Command {
	var params saveParams

	return &cli.Command{
		Name:    "save",
		Summary: "Archive the agent data root",
		Description: `Write the entire data root into one archive file. The write is
atomic: an interrupted save leaves any previous archive intact. The
data root is locked for the duration, so a save never races another
keepsake process on the same store.`,
		Usage: "keepsake state save [flags]",
		Examples: []cli.Example{
			{
				Description: "Save to the default location next to the data root",
				Command:     "keepsake state save",
			},
			{
				Description: "Save to the CI cache path",
				Command:     "keepsake state save --archive /cache/sessions.kpsk",
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

			result, err := archiver.Save(ctx, dataRoot, archivePath)
			if err != nil {
				return err
			}

			logger.Info("state archive saved",
				"path", archivePath,
				"files", result.Files,
				"bytes", result.Bytes,
				"archive_bytes", result.ArchiveBytes,
			)
			fmt.Fprintf(os.Stdout, "saved %d files (%s) to %s (%s archived)\n",
				result.Files, formatBytes(result.Bytes), archivePath, formatBytes(result.ArchiveBytes))
			return nil
		},
	}
}

// resolveArchivePath picks the archive location: the flag, then the
// configured path, then the default next to the resolved data root.
func resolveArchivePath(flagValue string, cfg *config.Config, dataRoot string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := cfg.ArchivePath(); path != "" {
		return path
	}
	return config.DefaultArchivePath(dataRoot)
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
