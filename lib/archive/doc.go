// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

// Package archive moves a session data root across CI invocations as
// a single verified file.
//
// A run restores the previous archive before opening the store and
// saves a new one after retention has pruned. The format is a fixed
// header, a deterministic CBOR manifest, and one blob per file.
// Each blob is compressed by probing (zstd for record JSON, raw for
// the incompressible sqlite database), and each file carries a keyed
// BLAKE3 hash that restore verifies before writing anything into the
// data root.
//
// Archives can be sealed: with age recipients configured on save, the
// manifest and blobs are encrypted as one ciphertext, and a restore
// needs the matching identity. Transcripts carry repository content
// and tool output, so an archive leaving the runner for a shared
// cache service should not be readable by the service.
//
// [AcquireLock] guards a data root with an exclusive flock for the
// span of a run, so two jobs misconfigured onto one cache directory
// fail fast instead of interleaving writes.
package archive
