// SPDX-License-Identifier: AGPL-3.0-or-later

package platform

import (
	"errors"
	"net"
	"testing"

	gobreaker "github.com/sony/gobreaker/v2"
	"google.golang.org/api/googleapi"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"unauthorized", &googleapi.Error{Code: 401}, ClassUnauthorized},
		{"quota 429", &googleapi.Error{Code: 429}, ClassQuotaExceeded},
		{"quota reason on 403", &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "quotaExceeded"}}}, ClassQuotaExceeded},
		{"permission denied 403", &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "forbidden"}}}, ClassUnauthorized},
		{"not found", &googleapi.Error{Code: 404}, ClassNotFound},
		{"gone", &googleapi.Error{Code: 410}, ClassNotFound},
		{"server error", &googleapi.Error{Code: 503}, ClassTransient},
		{"bad request", &googleapi.Error{Code: 400}, ClassMalformed},
		{"network timeout", &net.DNSError{IsTimeout: true}, ClassTransient},
		{"breaker open", gobreaker.ErrOpenState, ClassTransient},
		{"unknown error", errors.New("boom"), ClassMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := classify("test_op", tt.err)
			if apiErr.Class != tt.want {
				t.Errorf("classify() class = %v, want %v", apiErr.Class, tt.want)
			}
		})
	}
}

func TestIsClass(t *testing.T) {
	err := classify("op", &googleapi.Error{Code: 401})
	if !IsClass(err, ClassUnauthorized) {
		t.Error("IsClass() = false, want true")
	}
	if IsClass(err, ClassTransient) {
		t.Error("IsClass() = true for wrong class, want false")
	}
	if IsClass(errors.New("plain"), ClassTransient) {
		t.Error("IsClass() on a non-APIError = true, want false")
	}
}
