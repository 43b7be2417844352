// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

// Package sessionstore reads, searches, prunes, and appends to the
// agent runtime's on-disk session store.
//
// The store is the only state that survives between CI jobs: the
// archive layer restores it before the agent runs and saves it after.
// Everything in this package exists so that a fresh job can discover
// what earlier jobs did (listing and substring search), keep the tree
// from growing without bound (retention), and leave a machine-readable
// trace of its own run for the next job to find (run-summary
// writeback).
//
// # Data model
//
// A Project identifies one working-directory checkout. It owns
// Sessions, each one unit of agent work. A session with a parent is a
// child/branch session: an implementation detail of the runtime, never
// listed, and retained or pruned only as a consequence of its parent.
// Sessions own Messages (user or assistant), messages own Parts (text,
// reasoning, tool invocation, step-finish marker), and each session
// has at most one todo list. The record schema mirrors the runtime's
// own JSON byte for byte; this package must never write a shape the
// runtime would not produce itself.
//
// # Backends
//
// The runtime changed its storage format at release
// [SQLiteVersionThreshold]: older versions keep a flat-file tree,
//
//	<data-root>/project/<projectID>.json
//	<data-root>/session/<projectID>/<sessionID>.json
//	<data-root>/message/<sessionID>/<messageID>.json
//	<data-root>/part/<messageID>/<partID>.json
//	<data-root>/todo/<sessionID>.json
//
// while newer versions keep the same records in an embedded SQLite
// database. [Open] selects the backend once, from the runtime version
// when known and from a filesystem probe when not, and returns one
// [Store] interface so no call site knows which layout is underneath.
//
// # Failure tiers
//
// Absence (no project for a directory, no session for an id, no parts
// for a message) is a nil or empty result, never an error. Partial
// failures during a multi-record operation (one session failing to
// delete during a prune, a summary failing to write) are logged at
// warning level and skipped; the operation completes and reports only
// the work that succeeded. Genuine backend failures propagate to the
// caller, which is expected to degrade rather than fail the CI job.
package sessionstore
