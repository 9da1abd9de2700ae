// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/watchlaterhq/autowl/internal/models"
)

// HasProcessedVideo reports whether ANY row exists for (user, video),
// implementing spec.md §3's exactly-once guard: "the system MUST treat
// the presence of ANY row for (user, video) as 'already attempted' to
// prevent retry storms" — including rows recorded for a prior failure or a
// quota-exhausted skip.
func (s *Store) HasProcessedVideo(ctx context.Context, userID, videoID string) (bool, error) {
	var exists int
	err := s.queryRow(ctx, `SELECT 1 FROM processed_videos WHERE user_id = ? AND video_id = ?`, userID, videoID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: HasProcessedVideo: %w", err)
	}
	return true, nil
}

// RecordProcessedVideo inserts the outcome of one fan-out attempt. Callers
// MUST call HasProcessedVideo first within the same fan-out pass; this
// method does not itself enforce the unique constraint against a
// concurrent duplicate insert beyond what the schema's UNIQUE(user_id,
// video_id) index rejects, since spec.md §5 runs the Fan-Out Processor as
// a single sequential loop with no concurrent writers for the same user.
func (s *Store) RecordProcessedVideo(ctx context.Context, pv *models.ProcessedVideo) error {
	_, err := s.exec(ctx, `
		INSERT INTO processed_videos
			(id, user_id, video_id, channel_id, title, source, added_to_playlist, error_message, retry_attempts, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pv.ID, pv.UserID, pv.VideoID, pv.ChannelID, pv.Title, pv.Source,
		pv.AddedToPlaylist, pv.ErrorMessage, pv.RetryAttempts, pv.ProcessedAt)
	if err != nil {
		return fmt.Errorf("store: RecordProcessedVideo: %w", err)
	}
	return nil
}

// CountProcessedVideos reports the total number of fan-out attempts on
// record, and how many succeeded, for the Diagnostics Read Model.
func (s *Store) CountProcessedVideos(ctx context.Context) (total, succeeded int64, err error) {
	err = s.queryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(CASE WHEN added_to_playlist = 1 THEN 1 ELSE 0 END), 0) FROM processed_videos`).
		Scan(&total, &succeeded)
	if err != nil {
		return 0, 0, fmt.Errorf("store: CountProcessedVideos: %w", err)
	}
	return total, succeeded, nil
}
