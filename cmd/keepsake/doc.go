// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

// Keepsake is the CLI for persisting coding-agent sessions across CI
// runs. It provides the CI lifecycle entry point (run), read access
// to the agent's session store (sessions list, search, show; browse),
// store maintenance (prune, summary write), and state archiving
// (state save, restore).
package main
