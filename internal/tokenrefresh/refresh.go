// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package tokenrefresh implements the Token Refresh Loop (component C):
every tick it walks every automation-enabled user, refreshes the access
token of any user whose token is near expiry, and disables automation for
any user whose refresh token has been revoked. Grounded on the teacher's
periodic-loop managers under internal/sync, adapted to run through
supervisor.TickerService instead of its own goroutine.
*/
package tokenrefresh

import (
	"context"
	"fmt"
	"time"

	"github.com/watchlaterhq/autowl/internal/logging"
	"github.com/watchlaterhq/autowl/internal/metrics"
	"github.com/watchlaterhq/autowl/internal/models"
	"github.com/watchlaterhq/autowl/internal/platform"
	"github.com/watchlaterhq/autowl/internal/vault"
)

// RefreshBuffer is the lookahead window: a token expiring within this
// much time of now is refreshed early. Spec.md §4.C fixes this at 30
// minutes.
const RefreshBuffer = 30 * time.Minute

// TokenStore is the subset of *store.Store the loop needs. Declared here,
// satisfied by *store.Store, so tests can substitute an in-memory fake
// without touching a real database.
type TokenStore interface {
	ListActiveUsers(ctx context.Context) ([]*models.User, error)
	UpdateUserTokens(ctx context.Context, id string, encAccess, encRefresh []byte, expiresAt time.Time, now time.Time) error
	DisableAutomation(ctx context.Context, id string, now time.Time) error
}

// PlatformClient is the subset of *platform.Client the loop needs.
type PlatformClient interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (*platform.RefreshedToken, error)
}

// Loop refreshes every active user's access token once per tick.
type Loop struct {
	Store    TokenStore
	Platform PlatformClient
	Vault    *vault.Vault
	Now      func() time.Time
}

// New builds a Loop with time.Now as its clock.
func New(store TokenStore, client PlatformClient, v *vault.Vault) *Loop {
	return &Loop{Store: store, Platform: client, Vault: v, Now: time.Now}
}

// Tick implements supervisor.TickFunc. It never returns an error for a
// single user's failure — those are logged and the loop continues, per
// spec.md §4.C's per-user isolation.
func (l *Loop) Tick(ctx context.Context) error {
	now := l.Now()

	users, err := l.Store.ListActiveUsers(ctx)
	if err != nil {
		return fmt.Errorf("tokenrefresh: list active users: %w", err)
	}

	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.refreshOne(ctx, u, now)
	}
	metrics.RecordTokenRefreshSweepComplete()
	return nil
}

func (l *Loop) refreshOne(ctx context.Context, u *models.User, now time.Time) {
	if !u.HasRefreshToken() {
		return
	}
	if !u.NeedsRefresh(now, RefreshBuffer) {
		return
	}

	refreshToken, err := l.Vault.Decrypt(u.EncryptedRefreshToken)
	if err != nil {
		logging.Error().Err(err).Str("user_id", u.ID).Msg("tokenrefresh: decrypt refresh token failed, disabling automation")
		l.disable(ctx, u.ID, now)
		return
	}

	refreshed, err := l.Platform.RefreshAccessToken(ctx, string(refreshToken))
	if err != nil {
		if platform.IsClass(err, platform.ClassUnauthorized) {
			logging.Warn().Str("user_id", u.ID).Msg("tokenrefresh: refresh token revoked, disabling automation")
			metrics.RecordTokenRefresh("revoked")
			l.disable(ctx, u.ID, now)
			return
		}
		logging.Error().Err(err).Str("user_id", u.ID).Msg("tokenrefresh: refresh failed, will retry next tick")
		metrics.RecordTokenRefresh("transient_failure")
		return
	}

	encAccess, err := l.Vault.Encrypt([]byte(refreshed.AccessToken))
	if err != nil {
		logging.Error().Err(err).Str("user_id", u.ID).Msg("tokenrefresh: encrypt access token failed, disabling automation")
		l.disable(ctx, u.ID, now)
		return
	}
	encRefresh, err := l.Vault.Encrypt([]byte(refreshed.RefreshToken))
	if err != nil {
		logging.Error().Err(err).Str("user_id", u.ID).Msg("tokenrefresh: encrypt refresh token failed, disabling automation")
		l.disable(ctx, u.ID, now)
		return
	}

	if err := l.Store.UpdateUserTokens(ctx, u.ID, encAccess, encRefresh, refreshed.ExpiresAt, now); err != nil {
		logging.Error().Err(err).Str("user_id", u.ID).Msg("tokenrefresh: persist refreshed tokens failed")
		return
	}
	metrics.RecordTokenRefresh("success")
}

func (l *Loop) disable(ctx context.Context, userID string, now time.Time) {
	if err := l.Store.DisableAutomation(ctx, userID, now); err != nil {
		logging.Error().Err(err).Str("user_id", userID).Msg("tokenrefresh: disable automation failed")
		return
	}
	metrics.RecordUserDisabled()
}
