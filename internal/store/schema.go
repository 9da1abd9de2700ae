// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import "context"

// schemaStatements are ANSI-SQL-compatible CREATE TABLE / CREATE INDEX
// statements that run unchanged across SQLite, Postgres, and SQL Server.
// Spec.md §6: "schema identical" across the three providers — this is
// achieved by sticking to types and constructs (TEXT, INTEGER, TIMESTAMP,
// PRIMARY KEY, UNIQUE, IF NOT EXISTS) that all three drivers accept.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		encrypted_access_token BLOB,
		encrypted_refresh_token BLOB,
		access_token_expires_at TIMESTAMP,
		managed_playlist_id TEXT,
		automation_disabled INTEGER NOT NULL DEFAULT 0,
		is_admin INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		channel_id TEXT NOT NULL,
		channel_title TEXT,
		included INTEGER NOT NULL DEFAULT 1,
		subscribed INTEGER NOT NULL DEFAULT 0,
		lease_expires_at TIMESTAMP,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_attempt_at TIMESTAMP,
		polling_enabled INTEGER NOT NULL DEFAULT 0,
		last_polled_at TIMESTAMP,
		last_polled_video_id TEXT,
		hub_secret TEXT,
		created_at TIMESTAMP NOT NULL,
		UNIQUE (user_id, channel_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_subscriptions_channel_id ON subscriptions (channel_id)`,
	`CREATE TABLE IF NOT EXISTS webhook_events (
		id TEXT PRIMARY KEY,
		channel_id TEXT NOT NULL,
		video_id TEXT NOT NULL,
		title TEXT,
		source TEXT NOT NULL,
		received_at TIMESTAMP NOT NULL,
		processed INTEGER NOT NULL DEFAULT 0,
		processed_at TIMESTAMP,
		raw_payload BLOB
	)`,
	`CREATE INDEX IF NOT EXISTS idx_webhook_events_unprocessed ON webhook_events (processed, received_at)`,
	`CREATE INDEX IF NOT EXISTS idx_webhook_events_channel_video ON webhook_events (channel_id, video_id)`,
	`CREATE TABLE IF NOT EXISTS processed_videos (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		video_id TEXT NOT NULL,
		channel_id TEXT NOT NULL,
		title TEXT,
		source TEXT NOT NULL,
		added_to_playlist INTEGER NOT NULL DEFAULT 0,
		error_message TEXT,
		retry_attempts INTEGER NOT NULL DEFAULT 0,
		processed_at TIMESTAMP NOT NULL,
		UNIQUE (user_id, video_id)
	)`,
	`CREATE TABLE IF NOT EXISTS api_quota_usage (
		usage_date TIMESTAMP NOT NULL,
		service_name TEXT NOT NULL,
		requests_used INTEGER NOT NULL DEFAULT 0,
		quota_limit INTEGER NOT NULL DEFAULT 0,
		cost_units_used INTEGER NOT NULL DEFAULT 0,
		cost_unit_limit INTEGER NOT NULL DEFAULT 0,
		last_updated TIMESTAMP NOT NULL,
		PRIMARY KEY (usage_date, service_name)
	)`,
}

// migrate creates every table and index that does not already exist. There
// is no incremental migration chain (unlike the teacher's schema_migrations
// table in internal/database/migrations.go): this system has five small
// tables and no released version to preserve compatibility with yet, so a
// single idempotent CREATE-IF-NOT-EXISTS pass is enough. The teacher's own
// migrations.go documents doing exactly this pre-release and only growing a
// version chain after the first public release.
func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
