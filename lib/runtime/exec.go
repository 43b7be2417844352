// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/keepsake-ci/keepsake/lib/clock"
)

// ExecRunner invokes the agent runtime binary as a subprocess.
type ExecRunner struct {
	// Binary is the runtime executable name or path.
	Binary string

	// BaseArgs are configured arguments that precede the run
	// subcommand on every invocation.
	BaseArgs []string

	// Clock provides timing. Defaults to clock.Real().
	Clock clock.Clock

	// Logger is used for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// NewExecRunner creates a runner for the given binary.
func NewExecRunner(binary string, baseArgs []string, clk clock.Clock, logger *slog.Logger) *ExecRunner {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRunner{
		Binary:   binary,
		BaseArgs: baseArgs,
		Clock:    clk,
		Logger:   logger,
	}
}

// Run assembles the argv, spawns the runtime, and waits for it. The
// invocation runs non-interactively: "run" subcommand, prompt as the
// final positional argument, --model when set.
func (runner *ExecRunner) Run(ctx context.Context, invocation Invocation) (*Result, error) {
	if runner.Binary == "" {
		return nil, fmt.Errorf("runtime: no binary configured")
	}

	arguments := append([]string{}, runner.BaseArgs...)
	arguments = append(arguments, "run")
	if invocation.Model != "" {
		arguments = append(arguments, "--model", invocation.Model)
	}
	arguments = append(arguments, invocation.ExtraArgs...)
	arguments = append(arguments, invocation.Prompt)

	command := exec.CommandContext(ctx, runner.Binary, arguments...)
	command.Dir = invocation.Directory
	command.Env = append(os.Environ(), invocation.ExtraEnv...)
	command.Stdout = invocation.Stdout
	if command.Stdout == nil {
		command.Stdout = os.Stdout
	}
	command.Stderr = invocation.Stderr
	if command.Stderr == nil {
		command.Stderr = os.Stderr
	}

	runner.Logger.Info("starting agent runtime",
		"binary", runner.Binary,
		"directory", invocation.Directory,
		"model", invocation.Model,
	)

	start := runner.Clock.Now()
	err := command.Run()
	duration := runner.Clock.Now().Sub(start)

	if err != nil {
		// Cancellation beats exit classification: a process killed
		// because the job deadline passed is not an agent failure.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			result := &Result{ExitCode: exitError.ExitCode(), Duration: duration}
			runner.Logger.Warn("agent runtime exited with failure",
				"exit_code", result.ExitCode,
				"duration", duration,
			)
			return result, nil
		}
		return nil, fmt.Errorf("runtime: running %s: %w", runner.Binary, err)
	}

	runner.Logger.Info("agent runtime finished",
		"exit_code", 0,
		"duration", duration,
	)
	return &Result{ExitCode: 0, Duration: duration}, nil
}
