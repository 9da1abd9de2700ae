// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/watchlaterhq/autowl/internal/models"
)

// GetQuotaUsage fetches today's usage row for a service, or a zero-valued
// row if none has been written yet today. Spec.md §3: "(date,
// service-name) unique... monotonic within a day."
func (s *Store) GetQuotaUsage(ctx context.Context, date time.Time, serviceName string) (*models.ApiQuotaUsage, error) {
	day := truncateToDay(date)
	row := s.queryRow(ctx, `
		SELECT usage_date, service_name, requests_used, quota_limit, cost_units_used, cost_unit_limit, last_updated
		FROM api_quota_usage WHERE usage_date = ? AND service_name = ?`, day, serviceName)

	var q models.ApiQuotaUsage
	err := row.Scan(&q.Date, &q.ServiceName, &q.RequestsUsed, &q.QuotaLimit, &q.CostUnitsUsed, &q.CostUnitLimit, &q.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.ApiQuotaUsage{Date: day, ServiceName: serviceName}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: GetQuotaUsage: %w", err)
	}
	return &q, nil
}

// RecordQuotaUsage upserts today's usage row, incrementing requests and
// cost units by the amounts a single Platform API call just consumed. The
// row is idempotent per calendar day: repeated calls within the same day
// accumulate, and the first call after midnight starts a fresh row.
func (s *Store) RecordQuotaUsage(ctx context.Context, serviceName string, requestDelta, costDelta, quotaLimit, costLimit int64, now time.Time) error {
	day := truncateToDay(now)

	result, err := s.exec(ctx, `
		UPDATE api_quota_usage
		SET requests_used = requests_used + ?, cost_units_used = cost_units_used + ?, last_updated = ?
		WHERE usage_date = ? AND service_name = ?`,
		requestDelta, costDelta, now, day, serviceName)
	if err != nil {
		return fmt.Errorf("store: RecordQuotaUsage update: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: RecordQuotaUsage RowsAffected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// No row for today yet: this is the first call since midnight.
	_, err = s.exec(ctx, `
		INSERT INTO api_quota_usage (usage_date, service_name, requests_used, quota_limit, cost_units_used, cost_unit_limit, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		day, serviceName, requestDelta, quotaLimit, costDelta, costLimit, now)
	if err != nil {
		return fmt.Errorf("store: RecordQuotaUsage insert: %w", err)
	}
	return nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.UTC().Location())
}
