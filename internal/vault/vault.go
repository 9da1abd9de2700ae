// SPDX-License-Identifier: AGPL-3.0-or-later

// Package vault implements the Token Vault (spec.md §4.A): symmetric
// encrypt/decrypt of OAuth tokens at rest with a persisted key.
//
// This is a rework of the teacher's internal/config/encryption.go
// (CredentialEncryptor) with three deliberate departures required by
// spec.md §4.A:
//
//   - Empty input maps to empty output on both sides, rather than erroring
//     ("no ambiguity with 'absent'").
//   - All failures surface as a single CryptoError type rather than a
//     family of sentinel errors, so callers can uniformly treat any vault
//     failure as the non-retryable per-user fault spec.md requires.
//   - The master key is loaded from a configured persistent file location
//     (DataProtection.KeyDirectory) rather than derived from an
//     application JWT secret string.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/hkdf"
)

const (
	// keyDerivationSalt is a fixed, application-specific salt binding the
	// derived key to this application's token-encryption use case.
	keyDerivationSalt = "autowl-token-vault"

	// keyDerivationInfo is the HKDF info parameter for key derivation.
	keyDerivationInfo = "token-encryption-v1"

	// aesKeySize is the size of the AES key in bytes (256 bits).
	aesKeySize = 32

	// gcmNonceSize is the size of the GCM nonce in bytes.
	gcmNonceSize = 12

	// masterKeyFile is the file name written under KeyDirectory.
	masterKeyFile = "autowl-master.key"

	// masterKeyFileMode restricts the persisted key to the owning user.
	masterKeyFileMode = 0o600
)

// Vault encrypts and decrypts OAuth tokens at rest using AES-256-GCM. A
// Vault instance is initialized once at process start and passed
// explicitly to every component that touches a token (spec.md §9: "Global
// static master-key material... Confine to a single initialized-once
// holder passed explicitly").
type Vault struct {
	cipher cipher.AEAD
}

// New loads (or, if absent, generates and persists) the master key from
// keyDirectory and returns a Vault built on it. If keyDirectory is empty,
// an ephemeral in-memory key is generated instead — acceptable for local
// development only, per spec.md §6: "absent → ephemeral keys (dev only)".
func New(keyDirectory string) (*Vault, error) {
	var seed []byte
	var err error

	if keyDirectory == "" {
		seed = make([]byte, aesKeySize)
		if _, err = io.ReadFull(rand.Reader, seed); err != nil {
			return nil, fmt.Errorf("vault: generate ephemeral key: %w", err)
		}
	} else {
		seed, err = loadOrCreateMasterKey(keyDirectory)
		if err != nil {
			return nil, fmt.Errorf("vault: load master key: %w", err)
		}
	}

	key, err := deriveKey(seed)
	if err != nil {
		return nil, fmt.Errorf("vault: derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: init cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: init GCM: %w", err)
	}

	return &Vault{cipher: gcm}, nil
}

// NewFromSeed builds a Vault directly from raw seed material, bypassing
// file I/O. Used by tests and by callers that manage key material
// themselves.
func NewFromSeed(seed []byte) (*Vault, error) {
	key, err := deriveKey(seed)
	if err != nil {
		return nil, fmt.Errorf("vault: derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: init cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: init GCM: %w", err)
	}
	return &Vault{cipher: gcm}, nil
}

// Encrypt returns an opaque encrypted blob for plaintext. Empty input maps
// to empty output (spec.md §4.A). Two encryptions of the same plaintext
// never produce the same opaque value because a fresh random nonce is
// used each time.
func (v *Vault) Encrypt(plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, nil
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, &CryptoError{Op: "encrypt", Err: err}
	}

	return v.cipher.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt reverses Encrypt. Empty input maps to empty output. Any other
// failure — truncated, corrupt, or produced under a different key —
// surfaces as *CryptoError, which callers MUST treat as non-retryable and
// respond to by disabling automation for the affected user.
func (v *Vault) Decrypt(opaque []byte) ([]byte, error) {
	if len(opaque) == 0 {
		return nil, nil
	}

	minLength := gcmNonceSize + v.cipher.Overhead()
	if len(opaque) < minLength {
		return nil, &CryptoError{Op: "decrypt", Err: errors.New("opaque value too short")}
	}

	nonce, ciphertext := opaque[:gcmNonceSize], opaque[gcmNonceSize:]
	plaintext, err := v.cipher.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, &CryptoError{Op: "decrypt", Err: errors.New("authentication failed: corrupt opaque or revoked key")}
	}

	return plaintext, nil
}

// MaskCredential returns a masked version of a credential for display in
// diagnostics or logs, showing only the trailing 4 characters.
func MaskCredential(credential string) string {
	if credential == "" {
		return ""
	}
	if len(credential) <= 4 {
		return "****"
	}
	return "****..." + credential[len(credential)-4:]
}

// deriveKey derives a 256-bit AES key from seed material using HKDF-SHA256.
func deriveKey(seed []byte) ([]byte, error) {
	hkdfReader := hkdf.New(sha256.New, seed, []byte(keyDerivationSalt), []byte(keyDerivationInfo))
	key := make([]byte, aesKeySize)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		return nil, fmt.Errorf("read HKDF output: %w", err)
	}
	return key, nil
}

// loadOrCreateMasterKey reads the persisted master key from keyDirectory,
// generating and persisting a new one on first run. Rotating (replacing)
// this file invalidates every opaque previously produced — acceptable and
// documented per spec.md §4.A.
func loadOrCreateMasterKey(keyDirectory string) ([]byte, error) {
	path := filepath.Join(keyDirectory, masterKeyFile)

	if data, err := os.ReadFile(path); err == nil {
		return data, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := os.MkdirAll(keyDirectory, 0o700); err != nil {
		return nil, fmt.Errorf("create key directory %s: %w", keyDirectory, err)
	}

	seed := make([]byte, aesKeySize)
	if _, err := io.ReadFull(rand.Reader, seed); err != nil {
		return nil, fmt.Errorf("generate master key: %w", err)
	}

	if err := os.WriteFile(path, seed, masterKeyFileMode); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}

	return seed, nil
}
