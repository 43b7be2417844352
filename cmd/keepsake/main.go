// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/keepsake-ci/keepsake/cmd/keepsake/cli"
	"github.com/keepsake-ci/keepsake/lib/process"
)

func main() {
	if err := run(); err != nil {
		process.Exit(err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	args, verbose := cli.StripVerbose(os.Args[1:])
	logger := cli.NewCommandLogger(verbose)
	return rootCommand().Execute(ctx, args, logger)
}
