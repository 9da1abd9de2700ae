// SPDX-License-Identifier: AGPL-3.0-or-later

package vault

import (
	"bytes"
	"testing"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	v, err := NewFromSeed([]byte("test-seed-material-not-for-production-use"))
	if err != nil {
		t.Fatalf("NewFromSeed() error = %v", err)
	}
	return v
}

func TestVault_EmptyRoundTrip(t *testing.T) {
	v := newTestVault(t)

	opaque, err := v.Encrypt(nil)
	if err != nil {
		t.Fatalf("Encrypt(nil) error = %v", err)
	}
	if len(opaque) != 0 {
		t.Fatalf("Encrypt(nil) = %v, want empty", opaque)
	}

	plaintext, err := v.Decrypt(nil)
	if err != nil {
		t.Fatalf("Decrypt(nil) error = %v", err)
	}
	if len(plaintext) != 0 {
		t.Fatalf("Decrypt(nil) = %v, want empty", plaintext)
	}

	plaintext, err = v.Decrypt([]byte{})
	if err != nil || len(plaintext) != 0 {
		t.Fatalf("Decrypt([]byte{}) = (%v, %v), want (empty, nil)", plaintext, err)
	}
}

func TestVault_RoundTrip(t *testing.T) {
	v := newTestVault(t)

	tests := []string{
		"a",
		"ya29.a0AfH6SMBx...",
		"1//0gAbCdEfGhIjK...",
	}

	for _, plaintext := range tests {
		opaque, err := v.Encrypt([]byte(plaintext))
		if err != nil {
			t.Fatalf("Encrypt(%q) error = %v", plaintext, err)
		}

		got, err := v.Decrypt(opaque)
		if err != nil {
			t.Fatalf("Decrypt() error = %v", err)
		}
		if string(got) != plaintext {
			t.Fatalf("round trip = %q, want %q", got, plaintext)
		}
	}
}

func TestVault_EncryptionIsNonDeterministic(t *testing.T) {
	v := newTestVault(t)

	a, err := v.Encrypt([]byte("same-plaintext"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	b, err := v.Encrypt([]byte("same-plaintext"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	if bytes.Equal(a, b) {
		t.Fatal("two encryptions of the same plaintext produced identical opaque values")
	}
}

func TestVault_DecryptCorruptOpaque(t *testing.T) {
	v := newTestVault(t)

	opaque, err := v.Encrypt([]byte("a-token"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	tampered := append([]byte(nil), opaque...)
	tampered[len(tampered)-1] ^= 0xFF

	_, err = v.Decrypt(tampered)
	if err == nil {
		t.Fatal("expected an error decrypting tampered opaque")
	}
	if !IsCryptoError(err) {
		t.Fatalf("expected a CryptoError, got %T: %v", err, err)
	}
}

func TestVault_DecryptTruncated(t *testing.T) {
	v := newTestVault(t)

	_, err := v.Decrypt([]byte("short"))
	if !IsCryptoError(err) {
		t.Fatalf("expected a CryptoError for truncated input, got %T: %v", err, err)
	}
}

func TestVault_DecryptWrongKey(t *testing.T) {
	v1, err := NewFromSeed([]byte("seed-one"))
	if err != nil {
		t.Fatalf("NewFromSeed() error = %v", err)
	}
	v2, err := NewFromSeed([]byte("seed-two"))
	if err != nil {
		t.Fatalf("NewFromSeed() error = %v", err)
	}

	opaque, err := v1.Encrypt([]byte("a-token"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	_, err = v2.Decrypt(opaque)
	if !IsCryptoError(err) {
		t.Fatalf("expected a CryptoError decrypting under a different key, got %T: %v", err, err)
	}
}

func TestNew_EphemeralWhenNoKeyDirectory(t *testing.T) {
	v, err := New("")
	if err != nil {
		t.Fatalf("New(\"\") error = %v", err)
	}

	opaque, err := v.Encrypt([]byte("hello"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	got, err := v.Decrypt(opaque)
	if err != nil || string(got) != "hello" {
		t.Fatalf("round trip with ephemeral key failed: got=%q err=%v", got, err)
	}
}

func TestNew_PersistsAndReloadsMasterKey(t *testing.T) {
	dir := t.TempDir()

	v1, err := New(dir)
	if err != nil {
		t.Fatalf("New(dir) error = %v", err)
	}
	opaque, err := v1.Encrypt([]byte("persisted-token"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	v2, err := New(dir)
	if err != nil {
		t.Fatalf("New(dir) second load error = %v", err)
	}
	got, err := v2.Decrypt(opaque)
	if err != nil {
		t.Fatalf("Decrypt() with reloaded key error = %v", err)
	}
	if string(got) != "persisted-token" {
		t.Fatalf("got %q, want %q", got, "persisted-token")
	}
}

func TestMaskCredential(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"abcd", "****"},
		{"ya29.abcd1234", "****...1234"},
	}

	for _, tt := range tests {
		if got := MaskCredential(tt.in); got != tt.want {
			t.Errorf("MaskCredential(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
