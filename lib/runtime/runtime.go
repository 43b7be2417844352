// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

// Package runtime invokes the external agent runtime. The harness
// hands it an assembled prompt and a working directory; the runtime
// process reads and writes its own session storage directly, so the
// only results that flow back here are the exit status and timing.
// Session content is read afterward through the session store.
//
// Runner is an interface so the harness lifecycle can be tested
// against a fake without spawning processes.
package runtime

import (
	"context"
	"io"
	"time"
)

// Invocation is one agent run request.
type Invocation struct {
	// Prompt is the assembled prompt text passed to the runtime.
	Prompt string

	// Directory is the working directory for the run, normally the
	// checked-out repository.
	Directory string

	// Model overrides the runtime's default model when set.
	Model string

	// ExtraArgs are appended to the argv after the configured base
	// arguments.
	ExtraArgs []string

	// ExtraEnv is appended to the inherited environment, in
	// "KEY=VALUE" form.
	ExtraEnv []string

	// Stdout and Stderr receive the runtime's output streams. Nil
	// defaults to the harness process's own stdout and stderr, which
	// in CI streams the agent's progress into the job log.
	Stdout io.Writer
	Stderr io.Writer
}

// Result describes a completed run. A non-zero exit is a classified
// outcome, not an error: the lifecycle still writes the summary,
// prunes, and saves the archive so a failed run leaves usable state.
type Result struct {
	// ExitCode is the process exit status. -1 means the process was
	// terminated by a signal.
	ExitCode int

	// Duration is the wall-clock run time.
	Duration time.Duration
}

// Success reports whether the run exited cleanly.
func (result *Result) Success() bool {
	return result.ExitCode == 0
}

// Runner invokes the agent runtime.
type Runner interface {
	// Run executes one agent invocation and blocks until it exits.
	// Returns an error only when the process could not be started or
	// the context was cancelled; an unsuccessful agent run is
	// reported through Result.ExitCode.
	Run(ctx context.Context, invocation Invocation) (*Result, error)
}
