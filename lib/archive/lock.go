// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// lockFileName is the flock target inside the data root. Dotfiles are
// excluded from archiving, so the lock never rides along in a save.
const lockFileName = ".keepsake.lock"

// ErrLocked reports that another process holds the data root. Two
// concurrent runs over one cache directory is a pipeline
// misconfiguration, so acquisition fails fast instead of queueing.
var ErrLocked = errors.New("data root is locked by another process")

// Lock is an exclusive flock over a data root, held for the duration
// of a save or restore (and by the run command across the whole
// lifecycle).
type Lock struct {
	file *os.File
}

// AcquireLock takes the exclusive lock for a data root, creating the
// directory and lock file as needed.
func AcquireLock(dataRoot string) (*Lock, error) {
	if err := os.MkdirAll(dataRoot, 0o755); err != nil {
		return nil, fmt.Errorf("creating data root %s: %w", dataRoot, err)
	}

	file, err := os.OpenFile(filepath.Join(dataRoot, lockFileName), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		if err == unix.EWOULDBLOCK {
			return nil, fmt.Errorf("%s: %w", dataRoot, ErrLocked)
		}
		return nil, fmt.Errorf("locking %s: %w", dataRoot, err)
	}

	return &Lock{file: file}, nil
}

// Release drops the lock. Idempotent.
func (l *Lock) Release() error {
	if l.file == nil {
		return nil
	}
	file := l.file
	l.file = nil
	if err := unix.Flock(int(file.Fd()), unix.LOCK_UN); err != nil {
		file.Close()
		return fmt.Errorf("unlocking: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing lock file: %w", err)
	}
	return nil
}
