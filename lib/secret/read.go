// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bytes"
	"fmt"
	"os"
)

// FromEnv reads a secret from the named environment variable into a
// protected buffer. CI systems hand credentials to jobs through the
// environment; this moves them out of the inheritable heap copy as
// early as possible. The variable itself cannot be scrubbed from this
// process's environment block, but the returned buffer is the copy
// keepsake code passes around.
//
// Returns an error if the variable is unset or empty after trimming.
func FromEnv(name string) (*Buffer, error) {
	value := os.Getenv(name)
	if value == "" {
		return nil, fmt.Errorf("environment variable %s is not set", name)
	}

	data := []byte(value)
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		Zero(data)
		return nil, fmt.Errorf("environment variable %s is empty", name)
	}

	buffer, err := NewFromBytes(trimmed)
	Zero(data)
	if err != nil {
		return nil, err
	}
	return buffer, nil
}

// ReadFromPath reads a secret from a file path. The returned buffer is
// mmap-backed (locked into RAM, excluded from core dumps) and must be
// closed by the caller. Leading/trailing whitespace is trimmed before
// storing. Returns an error if the file is empty after trimming.
func ReadFromPath(path string) (*Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		Zero(data)
		return nil, fmt.Errorf("secret file %s is empty", path)
	}

	// NewFromBytes copies into mmap-backed memory and zeros trimmed.
	buffer, err := NewFromBytes(trimmed)
	// Zero remaining bytes (whitespace prefix/suffix) not covered by
	// trimmed.
	Zero(data)
	if err != nil {
		return nil, err
	}
	return buffer, nil
}
