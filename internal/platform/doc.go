// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package platform implements the Platform API Client (component B): the
only part of the system that imports golang.org/x/oauth2 or
google.golang.org/api/youtube/v3.

# Contract

Every method takes the caller's already-decrypted access (and, for
RefreshAccessToken, refresh) token explicitly and returns either a result
or an *APIError carrying one of spec.md §7's five classes: Transient,
Unauthorized, QuotaExceeded, NotFound, Malformed. Use IsClass to switch on
a returned error's class.

# Resilience

Every call is routed through a single named gobreaker/v2 circuit breaker
per the teacher's internal/sync/circuit_breaker.go shape.
InsertPlaylistItem additionally repeats a call that fails as Transient,
making at most three calls in all with a 2^n-second backoff between them,
per spec.md §4.B.
*/
package platform
