// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for the keepsake
// CLI. It centralizes the one legitimate raw-stderr pattern that exists
// before the structured logger: fatal error reporting from main() when
// run() fails. All other output goes through the command logger.
package process
