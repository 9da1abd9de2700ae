// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import "time"

// ProcessedVideo is an append-only record of one fan-out attempt for a
// (user, video) pair. Spec.md §3: "at most one row per (user, video) with
// added-to-playlist = true. The system MUST treat the presence of ANY row
// for (user, video) as 'already attempted' to prevent retry storms."
type ProcessedVideo struct {
	ID              string      `db:"id"`
	UserID          string      `db:"user_id"`
	VideoID         string      `db:"video_id"`
	ChannelID       string      `db:"channel_id"`
	Title           string      `db:"title"`
	Source          EventSource `db:"source"`
	AddedToPlaylist bool        `db:"added_to_playlist"`
	ErrorMessage    *string     `db:"error_message"`
	RetryAttempts   int         `db:"retry_attempts"`
	ProcessedAt     time.Time   `db:"processed_at"`
}
