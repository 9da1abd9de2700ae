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

// InsertWebhookEvent records a newly observed video, whether it arrived
// via WebSub push or the Fallback Poller. Spec.md §8 Scenario 2 requires
// a duplicate hub delivery to persist its own WebhookEvent row rather
// than being silently dropped at the store layer — exactly-once fan-out
// is enforced downstream by the Fan-Out Processor's per-(user, video)
// ProcessedVideo check, not by rejecting the second event row here.
func (s *Store) InsertWebhookEvent(ctx context.Context, ev *models.WebhookEvent) error {
	_, err := s.exec(ctx, `
		INSERT INTO webhook_events (id, channel_id, video_id, title, source, received_at, processed, raw_payload)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		ev.ID, ev.ChannelID, ev.VideoID, ev.Title, ev.Source, ev.ReceivedAt, ev.RawPayload)
	if err != nil {
		return fmt.Errorf("store: InsertWebhookEvent: %w", err)
	}
	return nil
}

// ListUnprocessedEvents returns events awaiting a Fan-Out Processor pass,
// oldest first, so processing preserves arrival order within a channel per
// spec.md §3's "processed-at is monotone with received-at per channel"
// invariant.
func (s *Store) ListUnprocessedEvents(ctx context.Context, limit int) ([]*models.WebhookEvent, error) {
	rows, err := s.query(ctx, `
		SELECT id, channel_id, video_id, title, source, received_at, processed, processed_at, raw_payload
		FROM webhook_events
		WHERE processed = 0
		ORDER BY received_at ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: ListUnprocessedEvents: %w", err)
	}
	defer rows.Close()

	var out []*models.WebhookEvent
	for rows.Next() {
		var ev models.WebhookEvent
		if err := rows.Scan(&ev.ID, &ev.ChannelID, &ev.VideoID, &ev.Title, &ev.Source,
			&ev.ReceivedAt, &ev.Processed, &ev.ProcessedAt, &ev.RawPayload); err != nil {
			return nil, fmt.Errorf("store: ListUnprocessedEvents scan: %w", err)
		}
		out = append(out, &ev)
	}
	return out, rows.Err()
}

// MarkEventProcessed flips an event's processed flag. Once set it never
// flips back, so this is a one-way operation with no corresponding unset.
func (s *Store) MarkEventProcessed(ctx context.Context, id string, processedAt time.Time) error {
	_, err := s.exec(ctx, `UPDATE webhook_events SET processed = 1, processed_at = ? WHERE id = ?`, processedAt, id)
	if err != nil {
		return fmt.Errorf("store: MarkEventProcessed(%s): %w", id, err)
	}
	return nil
}

// HasWebhookEvent reports whether a (channel, video) pair has already been
// recorded, used by the Fallback Poller to avoid re-inserting a video the
// Webhook Receiver already saw.
func (s *Store) HasWebhookEvent(ctx context.Context, channelID, videoID string) (bool, error) {
	var exists int
	err := s.queryRow(ctx, `SELECT 1 FROM webhook_events WHERE channel_id = ? AND video_id = ?`, channelID, videoID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: HasWebhookEvent: %w", err)
	}
	return true, nil
}
