// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

// Package github is a typed GitHub REST API client covering the
// endpoints a CI run touches: reading the issue or pull request that
// triggered it, listing and writing comments, and posting the run
// report. It handles authentication, rate limit tracking with
// preemptive backoff, pagination, and structured error classification.
//
// The client authenticates with a single token held in a secret.Buffer
// so the credential never lingers in ordinary heap strings. Rate limit
// state is tracked from response headers; when a request is rejected
// for rate limiting the client backs off once (honoring Retry-After or
// the reset timestamp) and retries before giving up.
//
// Mentions reports @-mentions in comment bodies by walking the
// markdown AST, so a login quoted inside a code fence, code span, or
// blockquote never counts as a trigger.
package github
