// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

// Package harness orchestrates one CI run: it normalizes the GitHub
// Actions trigger event, brackets the agent runtime invocation with
// state archive restore and save, assembles the agent prompt from
// prior sessions, writes the run summary back into the session store,
// applies the retention policy, and upserts the run-report comment.
//
// The harness runs inside the CI job it serves. Trigger events arrive
// through what the Actions runner provides (the GITHUB_EVENT_PATH
// payload file and GITHUB_EVENT_NAME), not through a webhook
// listener; normalization brings every supported event into one
// RunEvent shape so the rest of the lifecycle is event-agnostic.
package harness
