// SPDX-License-Identifier: AGPL-3.0-or-later

package middleware

import "net/http"

// ChiAdapt lifts a func(http.HandlerFunc) http.HandlerFunc middleware
// (RequestID, PrometheusMetrics) into chi's func(http.Handler) http.Handler
// shape, mirroring the teacher's chiMiddleware helper in
// internal/api/chi_router.go.
func ChiAdapt(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}
