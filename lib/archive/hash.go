// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Hash is a 32-byte BLAKE3 digest. File hashes are computed over
// uncompressed content so verification is independent of the
// compression choice made at save time.
type Hash [32]byte

// domainKey is a 32-byte key for BLAKE3 keyed hashing. Domain
// separation ensures the same bytes hash differently as file content
// and as manifest bytes. The byte values are the ASCII encoding of the
// domain name, zero-padded to 32 bytes: readable in hex dumps, and an
// opaque 32-byte value as far as BLAKE3 keyed mode is concerned.
type domainKey [32]byte

var (
	fileDomainKey = domainKey{
		'k', 'e', 'e', 'p', 's', 'a', 'k', 'e', '.', 'a', 'r', 'c', 'h', 'i', 'v', 'e',
		'.', 'f', 'i', 'l', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	manifestDomainKey = domainKey{
		'k', 'e', 'e', 'p', 's', 'a', 'k', 'e', '.', 'a', 'r', 'c', 'h', 'i', 'v', 'e',
		'.', 'm', 'a', 'n', 'i', 'f', 'e', 's', 't', 0, 0, 0, 0, 0, 0, 0,
	}
)

// hashFile computes the file-domain keyed hash of uncompressed file
// content.
func hashFile(data []byte) Hash {
	return keyedHash(fileDomainKey, data)
}

// hashManifest computes the manifest-domain keyed hash of the encoded
// manifest bytes. Stored in the archive header so a decoding that
// happens to succeed on corrupted bytes is still caught.
func hashManifest(data []byte) Hash {
	return keyedHash(manifestDomainKey, data)
}

// FormatHash returns the hex encoding of a hash, the form used in
// logs and error messages.
func FormatHash(hash Hash) string {
	return hex.EncodeToString(hash[:])
}

func keyedHash(key domainKey, data []byte) Hash {
	// NewKeyed only fails on a wrong key length, which domainKey
	// rules out.
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("archive: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var hash Hash
	copy(hash[:], hasher.Sum(nil))
	return hash
}
