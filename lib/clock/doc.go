// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// The retention engine's "now", record timestamps, id generation, and
// API retry backoff all read time through a Clock so tests can pin and
// advance it deterministically. Production code uses Real(); tests use
// Fake(initial) and Advance.
package clock
