// SPDX-License-Identifier: AGPL-3.0-or-later

package vault

import (
	"errors"
	"fmt"
)

// CryptoError is the single non-retryable failure mode of the Token
// Vault, per spec.md §4.A: "Fails with CryptoError when the opaque is
// corrupt, truncated, or produced under a revoked key; callers MUST treat
// this as a non-retryable per-user fault and disable automation for that
// user."
type CryptoError struct {
	Op  string
	Err error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("vault: %s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error {
	return e.Err
}

// IsCryptoError reports whether err is (or wraps) a *CryptoError.
func IsCryptoError(err error) bool {
	var ce *CryptoError
	return errors.As(err, &ce)
}
