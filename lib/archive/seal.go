// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"fmt"
	"io"

	"filippo.io/age"

	"github.com/keepsake-ci/keepsake/lib/secret"
)

// Session transcripts routinely contain repository content, tool
// output, and whatever the agent was shown. When the archive leaves
// the runner for a shared cache service, it is sealed to the
// configured age recipients; the CI job unseals it on the next run
// with an identity delivered as a secret.

// sealWriter wraps w so everything written is age-encrypted to the
// given x25519 recipients. The returned WriteCloser must be closed to
// flush the final ciphertext frame.
func sealWriter(w io.Writer, recipientKeys []string) (io.WriteCloser, error) {
	if len(recipientKeys) == 0 {
		return nil, fmt.Errorf("at least one recipient is required")
	}
	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return nil, fmt.Errorf("parsing recipient key %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}

	writer, err := age.Encrypt(w, recipients...)
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	return writer, nil
}

// unsealReader wraps r so reads yield the plaintext of an age
// ciphertext. The identity is borrowed from the secret buffer and not
// closed here.
func unsealReader(r io.Reader, identity *secret.Buffer) (io.Reader, error) {
	if identity == nil {
		return nil, fmt.Errorf("archive is sealed and no identity is configured")
	}
	parsed, err := age.ParseX25519Identity(identity.String())
	if err != nil {
		return nil, fmt.Errorf("parsing age identity: %w", err)
	}

	reader, err := age.Decrypt(r, parsed)
	if err != nil {
		return nil, fmt.Errorf("unsealing archive: %w", err)
	}
	return reader, nil
}

// ValidateRecipients checks that every configured recipient is a
// well-formed age x25519 public key, so a typo fails at startup
// instead of at the end of a run.
func ValidateRecipients(recipientKeys []string) error {
	for _, key := range recipientKeys {
		if _, err := age.ParseX25519Recipient(key); err != nil {
			return fmt.Errorf("invalid age recipient %q: %w", key, err)
		}
	}
	return nil
}
