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

// ErrNotFound is returned by single-row lookups that find nothing.
var ErrNotFound = errors.New("store: not found")

// GetUser fetches a user by id.
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	row := s.queryRow(ctx, `
		SELECT id, encrypted_access_token, encrypted_refresh_token,
		       access_token_expires_at, managed_playlist_id,
		       automation_disabled, is_admin, created_at, updated_at
		FROM users WHERE id = ?`, id)

	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: GetUser(%s): %w", id, err)
	}
	return u, nil
}

// ListActiveUsers returns every user with automation enabled, in no
// particular order. Used by the Token Refresh Loop and Fan-Out Processor,
// which both operate sequentially per user per spec.md §5.
func (s *Store) ListActiveUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := s.query(ctx, `
		SELECT id, encrypted_access_token, encrypted_refresh_token,
		       access_token_expires_at, managed_playlist_id,
		       automation_disabled, is_admin, created_at, updated_at
		FROM users WHERE automation_disabled = 0`)
	if err != nil {
		return nil, fmt.Errorf("store: ListActiveUsers: %w", err)
	}
	defer rows.Close()

	var out []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("store: ListActiveUsers scan: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UpdateUserTokens persists a refreshed access token (and, when rotated, a
// new refresh token) plus its expiry. Called after a successful
// refresh_access_token call (spec.md §4.C).
func (s *Store) UpdateUserTokens(ctx context.Context, id string, encAccess, encRefresh []byte, expiresAt time.Time, now time.Time) error {
	_, err := s.exec(ctx, `
		UPDATE users
		SET encrypted_access_token = ?, encrypted_refresh_token = ?,
		    access_token_expires_at = ?, updated_at = ?
		WHERE id = ?`, encAccess, encRefresh, expiresAt, now, id)
	if err != nil {
		return fmt.Errorf("store: UpdateUserTokens(%s): %w", id, err)
	}
	return nil
}

// DisableAutomation flips automation-disabled for a user without touching
// their tokens. Spec.md §4.A/§4.C: a hard refresh failure or vault failure
// disables automation; it never deletes the refresh token, so a future
// manual re-auth can clear the flag.
func (s *Store) DisableAutomation(ctx context.Context, id string, now time.Time) error {
	_, err := s.exec(ctx, `UPDATE users SET automation_disabled = 1, updated_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return fmt.Errorf("store: DisableAutomation(%s): %w", id, err)
	}
	return nil
}

// SetManagedPlaylist records the playlist id created for a user during
// bootstrap.
func (s *Store) SetManagedPlaylist(ctx context.Context, id, playlistID string, now time.Time) error {
	_, err := s.exec(ctx, `UPDATE users SET managed_playlist_id = ?, updated_at = ? WHERE id = ?`, playlistID, now, id)
	if err != nil {
		return fmt.Errorf("store: SetManagedPlaylist(%s): %w", id, err)
	}
	return nil
}

// ListEligibleUsersForChannel returns every user subscribed to channelID
// who is eligible to receive a fan-out insert: automation enabled, has
// completed bootstrap (a managed playlist exists), and has an access
// token on file. Spec.md §4.G: "find Users subscribed+included+enabled+
// has-playlist+has-token."
func (s *Store) ListEligibleUsersForChannel(ctx context.Context, channelID string) ([]*models.User, error) {
	rows, err := s.query(ctx, `
		SELECT u.id, u.encrypted_access_token, u.encrypted_refresh_token,
		       u.access_token_expires_at, u.managed_playlist_id,
		       u.automation_disabled, u.is_admin, u.created_at, u.updated_at
		FROM users u
		JOIN subscriptions s ON s.user_id = u.id
		WHERE s.channel_id = ? AND s.included = 1
		  AND u.automation_disabled = 0
		  AND u.managed_playlist_id IS NOT NULL
		  AND u.encrypted_access_token IS NOT NULL`, channelID)
	if err != nil {
		return nil, fmt.Errorf("store: ListEligibleUsersForChannel(%s): %w", channelID, err)
	}
	defer rows.Close()

	var out []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("store: ListEligibleUsersForChannel scan: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	if err := row.Scan(
		&u.ID, &u.EncryptedAccessToken, &u.EncryptedRefreshToken,
		&u.AccessTokenExpiresAt, &u.ManagedPlaylistID,
		&u.AutomationDisabled, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &u, nil
}
