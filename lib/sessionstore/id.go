// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package sessionstore

import (
	"crypto/rand"
	"fmt"
	"regexp"

	"github.com/keepsake-ci/keepsake/lib/clock"
)

// ID prefixes for the three record kinds that carry minted
// identifiers. Projects use runtime-assigned ids and are never created
// by this package.
const (
	SessionIDPrefix = "ses"
	MessageIDPrefix = "msg"
	PartIDPrefix    = "prt"
)

const (
	// idTimestampDigits is the width of the hex millisecond prefix.
	// Twelve digits hold timestamps far past year 10000, and the
	// zero padding keeps ids of the same kind sorted by creation
	// time.
	idTimestampDigits = 12

	// idRandomDigits is the length of the random base62 tail that
	// keeps ids minted in the same millisecond from colliding.
	idRandomDigits = 14
)

const base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// idPattern is the record id format shared with the agent runtime:
// kind prefix, underscore, a lowercase-hex-leading sortable
// alphanumeric suffix.
var idPattern = regexp.MustCompile(`^(ses|msg|prt)_[0-9a-f][0-9A-Za-z]+$`)

// NewID mints a record identifier in the runtime's format: the kind
// prefix, an underscore, the creation time as zero-padded hex
// milliseconds, and a random base62 tail. The timestamp prefix makes
// ids of one kind sort in creation order, which the storage backends
// rely on when returning messages and parts.
func NewID(prefix string, clk clock.Clock) string {
	random := make([]byte, idRandomDigits)
	if _, err := rand.Read(random); err != nil {
		panic(fmt.Sprintf("reading random bytes: %v", err))
	}
	tail := make([]byte, idRandomDigits)
	for i, b := range random {
		tail[i] = base62Alphabet[int(b)%len(base62Alphabet)]
	}
	return fmt.Sprintf("%s_%0*x%s", prefix, idTimestampDigits, clk.Now().UnixMilli(), tail)
}

// ValidID reports whether id matches the store's identifier format.
// Ids are never parsed beyond this check and their kind prefix.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}
