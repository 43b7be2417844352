// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"
	"os"
)

// Fatal writes "error: err" to stderr and exits with code 1. This is
// the standard Keepsake binary entrypoint error handler. Use it in
// main() for errors from run() where the structured logger may not be
// initialized yet.
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

// Exit terminates the process for a command error. Errors that carry
// an exit status (a mirrored agent exit code, for one) terminate with
// that status and no message: the command already reported what
// happened. Anything else goes through Fatal.
func Exit(err error) {
	if coder, ok := err.(interface{ ExitCode() int }); ok {
		os.Exit(coder.ExitCode())
	}
	Fatal(err)
}
