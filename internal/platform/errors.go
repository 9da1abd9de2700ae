// SPDX-License-Identifier: AGPL-3.0-or-later

package platform

import (
	"errors"
	"net"

	gobreaker "github.com/sony/gobreaker/v2"
	"google.golang.org/api/googleapi"
)

// ErrorClass is the five-member outbound-call error taxonomy from spec.md
// §7 that every Platform API Client method reports.
type ErrorClass string

const (
	ClassTransient     ErrorClass = "Transient"
	ClassUnauthorized  ErrorClass = "Unauthorized"
	ClassQuotaExceeded ErrorClass = "QuotaExceeded"
	ClassNotFound      ErrorClass = "NotFound"
	ClassMalformed     ErrorClass = "Malformed"
)

// APIError wraps an error returned by a Platform API Client call together
// with its classification, so callers can switch on Class without
// re-parsing the underlying googleapi.Error.
type APIError struct {
	Class ErrorClass
	Op    string
	Err   error
}

func (e *APIError) Error() string {
	return "platform: " + e.Op + ": " + string(e.Class) + ": " + e.Err.Error()
}

func (e *APIError) Unwrap() error { return e.Err }

// classify maps a raw error from the YouTube Data API client into the
// spec.md §7 taxonomy. Spec.md §7: "Transient (network, 5xx, timeout)...
// Unauthorized (401)... QuotaExceeded (429, daily-quota responses)...
// NotFound (410 from hub, 404 from Platform on a deleted video)."
func classify(op string, err error) *APIError {
	if err == nil {
		return nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &APIError{Class: ClassTransient, Op: op, Err: err}
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case 401:
			return &APIError{Class: ClassUnauthorized, Op: op, Err: err}
		case 403:
			if isQuotaError(gerr) {
				return &APIError{Class: ClassQuotaExceeded, Op: op, Err: err}
			}
			return &APIError{Class: ClassUnauthorized, Op: op, Err: err}
		case 404, 410:
			return &APIError{Class: ClassNotFound, Op: op, Err: err}
		case 429:
			return &APIError{Class: ClassQuotaExceeded, Op: op, Err: err}
		}
		if gerr.Code >= 500 {
			return &APIError{Class: ClassTransient, Op: op, Err: err}
		}
		return &APIError{Class: ClassMalformed, Op: op, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &APIError{Class: ClassTransient, Op: op, Err: err}
	}

	return &APIError{Class: ClassMalformed, Op: op, Err: err}
}

// isQuotaError inspects a 403 googleapi.Error's reason codes for the
// values the YouTube Data API uses to signal daily quota exhaustion, as
// opposed to an ordinary permission denial.
func isQuotaError(gerr *googleapi.Error) bool {
	for _, item := range gerr.Errors {
		switch item.Reason {
		case "quotaExceeded", "dailyLimitExceeded", "rateLimitExceeded", "userRateLimitExceeded":
			return true
		}
	}
	return false
}

// IsClass reports whether err is an *APIError of the given class.
func IsClass(err error, class ErrorClass) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Class == class
	}
	return false
}
