// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package vault implements the Token Vault (component A): AES-256-GCM
authenticated encryption of OAuth access and refresh tokens at rest, with
a key derived via HKDF-SHA256 from a persisted master key file.

# Contract

	opaque, err := v.Encrypt(plaintext)
	plaintext, err := v.Decrypt(opaque)

Empty input maps to empty output on both sides — there is no ambiguity
between "empty token" and "absent token". Two encryptions of the same
plaintext never produce the same opaque value; a fresh 12-byte nonce is
generated per call and prepended to the ciphertext.

# Key Management

The master key is loaded once at process start from
DataProtection.KeyDirectory (see internal/config) and never read from any
other path in the codebase. Rotating the key file invalidates every opaque
value previously produced — this is accepted and documented, not
engineered around.

# Failure Mode

Any decryption failure — truncated input, tampered ciphertext, or an
opaque produced under a key that has since been rotated — returns
*CryptoError. Callers MUST treat this as non-retryable and disable
automation for the affected user rather than retry.
*/
package vault
