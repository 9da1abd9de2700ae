// SPDX-License-Identifier: AGPL-3.0-or-later

package diagnostics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/watchlaterhq/autowl/internal/models"
	"github.com/watchlaterhq/autowl/internal/store"
)

type fakeDiagnosticsStore struct {
	summary         *store.DiagnosticsSummary
	summaryErr      error
	failedJobs      []*models.ProcessedVideo
	unprocessed     []*models.WebhookEvent
	quotaUsage      []*models.ApiQuotaUsage
	lastFailedSince time.Time
	lastEventsSince time.Time
	lastQuotaSince  time.Time
}

func (f *fakeDiagnosticsStore) GetDiagnosticsSummary(ctx context.Context, now time.Time) (*store.DiagnosticsSummary, error) {
	return f.summary, f.summaryErr
}

func (f *fakeDiagnosticsStore) ListFailedJobs(ctx context.Context, since time.Time) ([]*models.ProcessedVideo, error) {
	f.lastFailedSince = since
	return f.failedJobs, nil
}

func (f *fakeDiagnosticsStore) ListUnprocessedEventsSince(ctx context.Context, since time.Time) ([]*models.WebhookEvent, error) {
	f.lastEventsSince = since
	return f.unprocessed, nil
}

func (f *fakeDiagnosticsStore) ListQuotaUsageSince(ctx context.Context, since time.Time) ([]*models.ApiQuotaUsage, error) {
	f.lastQuotaSince = since
	return f.quotaUsage, nil
}

func newTestHandler() (*Handler, *fakeDiagnosticsStore, time.Time) {
	now := time.Date(2026, 8, 6, 12, 0, 0, 0, time.UTC)
	fake := &fakeDiagnosticsStore{summary: &store.DiagnosticsSummary{ActiveSubscriptions: 3}}
	h := New(fake)
	h.Now = func() time.Time { return now }
	return h, fake, now
}

func TestHandleSummary_Success(t *testing.T) {
	h, _, _ := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/diagnostics/summary", nil)
	rec := httptest.NewRecorder()

	h.HandleSummary(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json; charset=utf-8" {
		t.Fatalf("content-type = %q", got)
	}
}

func TestHandleSummary_DatabaseError(t *testing.T) {
	h, fake, _ := newTestHandler()
	fake.summaryErr = context.DeadlineExceeded
	req := httptest.NewRequest(http.MethodGet, "/diagnostics/summary", nil)
	rec := httptest.NewRecorder()

	h.HandleSummary(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestHandleFailedJobs_DefaultsToSevenDays(t *testing.T) {
	h, fake, now := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/diagnostics/failed-jobs", nil)
	rec := httptest.NewRecorder()

	h.HandleFailedJobs(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	want := now.Add(-7 * 24 * time.Hour)
	if !fake.lastFailedSince.Equal(want) {
		t.Fatalf("since = %v, want %v", fake.lastFailedSince, want)
	}
}

func TestHandleFailedJobs_CustomDays(t *testing.T) {
	h, fake, now := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/diagnostics/failed-jobs?days=30", nil)
	rec := httptest.NewRecorder()

	h.HandleFailedJobs(rec, req)

	want := now.Add(-30 * 24 * time.Hour)
	if !fake.lastFailedSince.Equal(want) {
		t.Fatalf("since = %v, want %v", fake.lastFailedSince, want)
	}
}

func TestHandleFailedJobs_InvalidDaysParam(t *testing.T) {
	h, _, _ := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/diagnostics/failed-jobs?days=notanumber", nil)
	rec := httptest.NewRecorder()

	h.HandleFailedJobs(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleUnprocessedEvents_DefaultsToTwentyFourHours(t *testing.T) {
	h, fake, now := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/diagnostics/unprocessed-events", nil)
	rec := httptest.NewRecorder()

	h.HandleUnprocessedEvents(rec, req)

	want := now.Add(-24 * time.Hour)
	if !fake.lastEventsSince.Equal(want) {
		t.Fatalf("since = %v, want %v", fake.lastEventsSince, want)
	}
}

func TestHandleQuotaUsage_CustomDays(t *testing.T) {
	h, fake, now := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/diagnostics/quota-usage?days=14", nil)
	rec := httptest.NewRecorder()

	h.HandleQuotaUsage(rec, req)

	want := now.Add(-14 * 24 * time.Hour)
	if !fake.lastQuotaSince.Equal(want) {
		t.Fatalf("since = %v, want %v", fake.lastQuotaSince, want)
	}
}

func TestHandleHealthz(t *testing.T) {
	h, _, _ := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	h.HandleHealthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
