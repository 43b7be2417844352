// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for the keepsake
// binary.
//
// The central type is [Command], which represents a named subcommand
// with optional nested [Command.Subcommands], a params struct factory,
// and a Run function. Commands are assembled into a tree in
// cmd/keepsake and dispatched via [Command.Execute], which handles
// flag parsing, subcommand routing, and structured help output with
// examples.
//
// Flags are declared as struct tags on a params struct and bound with
// [BindFlags]; a command exposes its params through [Command.Params]
// and reads the populated fields in Run. Types that need manual
// binding implement [FlagBinder], the way [StoreConfig] does for the
// flags every store-touching command shares.
//
// When a user types an unknown subcommand or flag, the framework
// computes Levenshtein edit distance against all known names and
// suggests the closest match. This is implemented in suggest.go.
//
// The package also carries the harness-specific command plumbing:
//
//   - [StoreConfig]: the --config/--data-root flag pair plus the
//     resolution chain from configuration to an open session store.
//   - [JSONOutput]: the --json flag and conditional JSON emission for
//     commands that support scripting output.
//   - [NewCommandLogger]: the process-wide logger, text on a terminal
//     and JSON when piped into a CI log.
//   - [ExitError]: a non-zero exit without a redundant error line,
//     for commands whose failure is an outcome they already reported.
package cli
