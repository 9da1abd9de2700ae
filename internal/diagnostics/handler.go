// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package diagnostics implements the Diagnostics Read Model (component H):
read-only HTTP handlers exposing the summary counters, failed-job list,
unprocessed-event list, and quota-usage history spec.md §4.H names, for
operator consumption. Grounded on the teacher's internal/api response
envelope and chi_router.go route-grouping.
*/
package diagnostics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/watchlaterhq/autowl/internal/logging"
	"github.com/watchlaterhq/autowl/internal/models"
	"github.com/watchlaterhq/autowl/internal/store"
)

// DiagnosticsStore is the subset of *store.Store the read model needs.
type DiagnosticsStore interface {
	GetDiagnosticsSummary(ctx context.Context, now time.Time) (*store.DiagnosticsSummary, error)
	ListFailedJobs(ctx context.Context, since time.Time) ([]*models.ProcessedVideo, error)
	ListUnprocessedEventsSince(ctx context.Context, since time.Time) ([]*models.WebhookEvent, error)
	ListQuotaUsageSince(ctx context.Context, since time.Time) ([]*models.ApiQuotaUsage, error)
}

// DefaultLookbackDays bounds the failed-jobs and quota-usage windows when
// the caller doesn't supply a "days" query parameter.
const DefaultLookbackDays = 7

// DefaultLookbackHours bounds the unprocessed-events window when the
// caller doesn't supply an "hours" query parameter.
const DefaultLookbackHours = 24

// Handler serves the operator-facing diagnostics endpoints.
type Handler struct {
	Store DiagnosticsStore
	Now   func() time.Time
}

// New builds a Handler with time.Now as its clock.
func New(s DiagnosticsStore) *Handler {
	return &Handler{Store: s, Now: time.Now}
}

// HandleSummary serves GET /diagnostics/summary.
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)
	summary, err := h.Store.GetDiagnosticsSummary(r.Context(), h.Now())
	if err != nil {
		rw.databaseError(err)
		return
	}
	rw.success(summary)
}

// HandleFailedJobs serves GET /diagnostics/failed-jobs?days=N.
func (h *Handler) HandleFailedJobs(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)
	days, err := intQueryParam(r, "days", DefaultLookbackDays)
	if err != nil {
		rw.badRequest(err.Error())
		return
	}
	since := h.Now().Add(-time.Duration(days) * 24 * time.Hour)

	jobs, err := h.Store.ListFailedJobs(r.Context(), since)
	if err != nil {
		rw.databaseError(err)
		return
	}
	rw.success(jobs)
}

// HandleUnprocessedEvents serves GET /diagnostics/unprocessed-events?hours=N.
func (h *Handler) HandleUnprocessedEvents(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)
	hours, err := intQueryParam(r, "hours", DefaultLookbackHours)
	if err != nil {
		rw.badRequest(err.Error())
		return
	}
	since := h.Now().Add(-time.Duration(hours) * time.Hour)

	events, err := h.Store.ListUnprocessedEventsSince(r.Context(), since)
	if err != nil {
		rw.databaseError(err)
		return
	}
	rw.success(events)
}

// HandleQuotaUsage serves GET /diagnostics/quota-usage?days=N.
func (h *Handler) HandleQuotaUsage(w http.ResponseWriter, r *http.Request) {
	rw := newResponseWriter(w, r)
	days, err := intQueryParam(r, "days", DefaultLookbackDays)
	if err != nil {
		rw.badRequest(err.Error())
		return
	}
	since := h.Now().Add(-time.Duration(days) * 24 * time.Hour)

	usage, err := h.Store.ListQuotaUsageSince(r.Context(), since)
	if err != nil {
		rw.databaseError(err)
		return
	}
	rw.success(usage)
}

// HandleHealthz serves GET /healthz: a liveness probe with no store
// dependency, since a healthy process should answer even if the DB is
// briefly unreachable — readiness is what GetDiagnosticsSummary probes.
func (h *Handler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	newResponseWriter(w, r).success(map[string]string{"status": "ok"})
}

func intQueryParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		logging.Debug().Str("param", name).Str("value", raw).Msg("diagnostics: invalid query parameter")
		return 0, errInvalidQueryParam(name)
	}
	return n, nil
}

type errInvalidQueryParam string

func (e errInvalidQueryParam) Error() string {
	return "invalid " + string(e) + " parameter: must be a positive integer"
}
