// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package diagnostics exposes the Diagnostics Read Model (spec.md §4.H) over
HTTP: summary counters, failed jobs, unprocessed events, and quota usage
history, plus /healthz and /metrics for operators. All handlers are
read-only.
*/
package diagnostics
