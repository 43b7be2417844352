// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package agentconfig

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// versionToken matches a dotted version anywhere in the probe output,
// with or without a leading "v". Requiring at least one dot keeps
// build numbers and dates from matching.
var versionToken = regexp.MustCompile(`v?([0-9]+(?:\.[0-9]+)+)`)

// ProbeVersion runs "<binary> --version" and extracts the version
// from its output. Accepts the common output shapes: a bare version,
// a "v" prefix, or a "name version" line.
func ProbeVersion(ctx context.Context, binary string) (string, error) {
	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, binary, "--version")
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return "", fmt.Errorf("probing %s --version: %w (stderr: %s)",
			binary, err, strings.TrimSpace(stderr.String()))
	}

	version, ok := parseVersionOutput(stdout.String())
	if !ok {
		return "", fmt.Errorf("probing %s --version: no version in output %q",
			binary, strings.TrimSpace(stdout.String()))
	}
	return version, nil
}

// parseVersionOutput extracts the first dotted version token from
// probe output. A prerelease or build suffix ("1.2.3-beta.1") is
// truncated to the dotted core, which is all version comparison uses.
func parseVersionOutput(output string) (string, bool) {
	match := versionToken.FindStringSubmatch(output)
	if match == nil {
		return "", false
	}
	return match[1], true
}
