// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"log/slog"
	"os"

	"golang.org/x/term"
)

// NewCommandLogger creates the structured logger for CLI command
// operations. When stderr is a terminal, uses slog.TextHandler for
// human-readable output. When stderr is piped or redirected (a CI job
// log, a script), uses slog.JSONHandler for machine-parseable output.
// verbose lowers the level to debug.
//
// Commands scope the logger with command-specific context via With():
//
//	logger := logger.With("command", "sessions/list", "directory", dir)
func NewCommandLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	options := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}

// StripVerbose removes every occurrence of the global --verbose flag
// from args and reports whether it was present. The flag is handled
// before dispatch because it configures the logger that the command
// tree itself runs under; per-command flag parsing happens too late
// for that.
func StripVerbose(args []string) ([]string, bool) {
	verbose := false
	remaining := args[:0:0]
	for _, arg := range args {
		if arg == "--verbose" {
			verbose = true
			continue
		}
		remaining = append(remaining, arg)
	}
	return remaining, verbose
}
