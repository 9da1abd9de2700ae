// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import "time"

// User is the account the core mutates token, playlist, and flag fields
// on. It is created by the external auth collaborator; the core never
// creates one.
type User struct {
	ID                    string     `db:"id"`
	EncryptedAccessToken  []byte     `db:"encrypted_access_token"`
	EncryptedRefreshToken []byte     `db:"encrypted_refresh_token"`
	AccessTokenExpiresAt  *time.Time `db:"access_token_expires_at"`
	ManagedPlaylistID     *string    `db:"managed_playlist_id"`
	AutomationDisabled    bool       `db:"automation_disabled"`
	IsAdmin               bool       `db:"is_admin"`
	CreatedAt             time.Time  `db:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at"`
}

// HasAccessToken reports whether the user currently has an access token on
// file. An absent access token halts automation for the user per spec.md
// §3's User invariants.
func (u *User) HasAccessToken() bool {
	return len(u.EncryptedAccessToken) > 0
}

// HasRefreshToken reports whether the user currently has a refresh token
// on file.
func (u *User) HasRefreshToken() bool {
	return len(u.EncryptedRefreshToken) > 0
}

// HasManagedPlaylist reports whether the user has completed bootstrap and
// has a managed playlist to fan out into.
func (u *User) HasManagedPlaylist() bool {
	return u.ManagedPlaylistID != nil && *u.ManagedPlaylistID != ""
}

// NeedsRefresh reports whether the access token should be refreshed: its
// absolute expiry is within buffer of now, or unknown while a refresh
// token exists. Mirrors spec.md §4.C's `needs_refresh` predicate.
func (u *User) NeedsRefresh(now time.Time, buffer time.Duration) bool {
	if u.AccessTokenExpiresAt == nil {
		return u.HasRefreshToken()
	}
	return !u.AccessTokenExpiresAt.After(now.Add(buffer))
}
