// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package sessionstore

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SQLiteVersionThreshold is the first agent runtime release that keeps
// its session store in an embedded SQLite database instead of the
// flat-file tree.
const SQLiteVersionThreshold = "1.1.53"

// databaseFileName is where the database-backed runtime keeps its
// store, relative to the data root.
const databaseFileName = "storage.db"

// DatabasePath returns the expected location of the embedded database
// under the given data root.
func DatabasePath(dataRoot string) string {
	return filepath.Join(dataRoot, databaseFileName)
}

// CompareVersions compares two dot-separated version strings
// component-wise over their first three components. A missing or
// non-numeric component counts as zero, so "1.1" equals "1.1.0".
// Returns a negative number when a is older than b, zero when they are
// equal, and a positive number when a is newer.
func CompareVersions(a, b string) int {
	aParts := strings.Split(a, ".")
	bParts := strings.Split(b, ".")
	for i := range 3 {
		aValue := versionComponent(aParts, i)
		bValue := versionComponent(bParts, i)
		if aValue != bValue {
			if aValue < bValue {
				return -1
			}
			return 1
		}
	}
	return 0
}

func versionComponent(parts []string, index int) int {
	if index >= len(parts) {
		return 0
	}
	value, err := strconv.Atoi(strings.TrimSpace(parts[index]))
	if err != nil {
		return 0
	}
	return value
}

// IsSQLiteBackend reports whether the agent runtime stores sessions in
// the embedded database. With a known version the decision is purely
// the threshold comparison. With an unknown version (empty string) it
// falls back to probing databasePath; any stat failure counts as "file
// absent" and selects the flat-file layout, never an error. A CI job
// must get a working store even when the probe is denied.
func IsSQLiteBackend(version, databasePath string) bool {
	if version != "" {
		return CompareVersions(version, SQLiteVersionThreshold) >= 0
	}
	info, err := os.Stat(databasePath)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
