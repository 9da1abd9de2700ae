// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/watchlaterhq/autowl/internal/models"
)

// DiagnosticsSummary is the set of point-in-time counters the Diagnostics
// Read Model exposes, per spec.md §4.H.
type DiagnosticsSummary struct {
	ActiveSubscriptions      int64
	WebSubActiveLeases       int64
	FailedJobsLast24h        int64
	UnprocessedEventsLast24h int64
	ProcessedLast7d          int64
	SuccessRateLast7d        float64
	WebhookEventsLast24h     int64
}

// GetDiagnosticsSummary computes every counter spec.md §4.H names in one
// pass. now is injected so callers get a stable, testable "now."
func (s *Store) GetDiagnosticsSummary(ctx context.Context, now time.Time) (*DiagnosticsSummary, error) {
	var summary DiagnosticsSummary

	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM subscriptions WHERE included = 1`).Scan(&summary.ActiveSubscriptions); err != nil {
		return nil, fmt.Errorf("store: GetDiagnosticsSummary active subscriptions: %w", err)
	}

	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM subscriptions WHERE subscribed = 1 AND lease_expires_at > ?`, now).
		Scan(&summary.WebSubActiveLeases); err != nil {
		return nil, fmt.Errorf("store: GetDiagnosticsSummary websub leases: %w", err)
	}

	since24h := now.Add(-24 * time.Hour)
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM processed_videos WHERE added_to_playlist = 0 AND processed_at >= ?`, since24h).
		Scan(&summary.FailedJobsLast24h); err != nil {
		return nil, fmt.Errorf("store: GetDiagnosticsSummary failed jobs: %w", err)
	}

	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM webhook_events WHERE processed = 0 AND received_at >= ?`, since24h).
		Scan(&summary.UnprocessedEventsLast24h); err != nil {
		return nil, fmt.Errorf("store: GetDiagnosticsSummary unprocessed events: %w", err)
	}

	since7d := now.Add(-7 * 24 * time.Hour)
	var total, succeeded int64
	if err := s.queryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(CASE WHEN added_to_playlist = 1 THEN 1 ELSE 0 END), 0) FROM processed_videos WHERE processed_at >= ?`, since7d).
		Scan(&total, &succeeded); err != nil {
		return nil, fmt.Errorf("store: GetDiagnosticsSummary processed 7d: %w", err)
	}
	summary.ProcessedLast7d = total
	if total > 0 {
		summary.SuccessRateLast7d = float64(succeeded) / float64(total)
	}

	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM webhook_events WHERE received_at >= ?`, since24h).
		Scan(&summary.WebhookEventsLast24h); err != nil {
		return nil, fmt.Errorf("store: GetDiagnosticsSummary webhook events: %w", err)
	}

	return &summary, nil
}

// ListFailedJobs returns ProcessedVideo rows with added-to-playlist=false
// from the last N days, most recent first.
func (s *Store) ListFailedJobs(ctx context.Context, since time.Time) ([]*models.ProcessedVideo, error) {
	rows, err := s.query(ctx, `
		SELECT id, user_id, video_id, channel_id, title, source, added_to_playlist, error_message, retry_attempts, processed_at
		FROM processed_videos
		WHERE added_to_playlist = 0 AND processed_at >= ?
		ORDER BY processed_at DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("store: ListFailedJobs: %w", err)
	}
	defer rows.Close()

	var out []*models.ProcessedVideo
	for rows.Next() {
		var pv models.ProcessedVideo
		if err := rows.Scan(&pv.ID, &pv.UserID, &pv.VideoID, &pv.ChannelID, &pv.Title, &pv.Source,
			&pv.AddedToPlaylist, &pv.ErrorMessage, &pv.RetryAttempts, &pv.ProcessedAt); err != nil {
			return nil, fmt.Errorf("store: ListFailedJobs scan: %w", err)
		}
		out = append(out, &pv)
	}
	return out, rows.Err()
}

// ListUnprocessedEventsSince returns unprocessed events received since a
// cutoff, oldest first — the same ordering ListUnprocessedEvents uses,
// scoped to a diagnostics time window instead of a batch-size cap.
func (s *Store) ListUnprocessedEventsSince(ctx context.Context, since time.Time) ([]*models.WebhookEvent, error) {
	rows, err := s.query(ctx, `
		SELECT id, channel_id, video_id, title, source, received_at, processed, processed_at, raw_payload
		FROM webhook_events
		WHERE processed = 0 AND received_at >= ?
		ORDER BY received_at ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("store: ListUnprocessedEventsSince: %w", err)
	}
	defer rows.Close()

	var out []*models.WebhookEvent
	for rows.Next() {
		var ev models.WebhookEvent
		if err := rows.Scan(&ev.ID, &ev.ChannelID, &ev.VideoID, &ev.Title, &ev.Source,
			&ev.ReceivedAt, &ev.Processed, &ev.ProcessedAt, &ev.RawPayload); err != nil {
			return nil, fmt.Errorf("store: ListUnprocessedEventsSince scan: %w", err)
		}
		out = append(out, &ev)
	}
	return out, rows.Err()
}

// ListQuotaUsageSince returns ApiQuotaUsage rows for every day on or
// after since, oldest first.
func (s *Store) ListQuotaUsageSince(ctx context.Context, since time.Time) ([]*models.ApiQuotaUsage, error) {
	rows, err := s.query(ctx, `
		SELECT usage_date, service_name, requests_used, quota_limit, cost_units_used, cost_unit_limit, last_updated
		FROM api_quota_usage
		WHERE usage_date >= ?
		ORDER BY usage_date ASC`, truncateToDay(since))
	if err != nil {
		return nil, fmt.Errorf("store: ListQuotaUsageSince: %w", err)
	}
	defer rows.Close()

	var out []*models.ApiQuotaUsage
	for rows.Next() {
		var q models.ApiQuotaUsage
		if err := rows.Scan(&q.Date, &q.ServiceName, &q.RequestsUsed, &q.QuotaLimit, &q.CostUnitsUsed, &q.CostUnitLimit, &q.LastUpdated); err != nil {
			return nil, fmt.Errorf("store: ListQuotaUsageSince scan: %w", err)
		}
		out = append(out, &q)
	}
	return out, rows.Err()
}
