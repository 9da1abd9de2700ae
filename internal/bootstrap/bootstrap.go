// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package bootstrap implements the subscription-sync workflow spec.md §9
describes: "the user UI calls an RPC to bootstrap subscriptions (triggers
a subscription-sync which invokes D)." It creates a user's managed
playlist on first run, lists their current Platform subscriptions,
reconciles the stored Subscription rows against that list (new channels
get a row, reported channels are included, unreported ones are excluded;
no row is deleted), and hands the result to the WebSub Subscription Manager so newly discovered
channels get their first subscribe attempt immediately rather than
waiting for the next 30-minute tick (spec.md §4.D's event-driven clause).
Grounded on the same narrow-interface, per-item-error-isolation shape as
internal/fanout and internal/tokenrefresh.
*/
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/watchlaterhq/autowl/internal/logging"
	"github.com/watchlaterhq/autowl/internal/models"
	"github.com/watchlaterhq/autowl/internal/platform"
	"github.com/watchlaterhq/autowl/internal/store"
	"github.com/watchlaterhq/autowl/internal/vault"
)

// ManagedPlaylistTitle and ManagedPlaylistDescription are used verbatim
// for the private playlist created on a user's first bootstrap. Spec.md
// §3's "managed playlist" is per-user and singular, so there is nothing
// to make these configurable against.
const (
	ManagedPlaylistTitle       = "Watch Later (Auto)"
	ManagedPlaylistDescription = "Videos added automatically by AutoWL"
)

// BootstrapStore is the subset of *store.Store the workflow needs.
type BootstrapStore interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	SetManagedPlaylist(ctx context.Context, id, playlistID string, now time.Time) error
	ListSubscriptionsByUser(ctx context.Context, userID string) ([]*models.Subscription, error)
	CreateSubscription(ctx context.Context, sub *models.Subscription) error
	SetSubscriptionIncluded(ctx context.Context, id string, included bool) error
}

// PlatformClient is the subset of *platform.Client the workflow needs.
type PlatformClient interface {
	ListUserSubscriptions(ctx context.Context, accessToken string) ([]platform.Subscription, error)
	CreatePlaylist(ctx context.Context, accessToken, title, description string) (string, error)
}

// WebSubManager is the subset of *websub.Manager the workflow needs to
// satisfy spec.md §4.D's event-driven-on-bootstrap clause.
type WebSubManager interface {
	Tick(ctx context.Context) error
}

// Result summarizes one bootstrap run, returned to the caller (and thus
// the HTTP handler's JSON response) so a user can see what changed.
type Result struct {
	ManagedPlaylistID string `json:"managed_playlist_id"`
	Added             int    `json:"channels_added"`
	Removed           int    `json:"channels_removed"`
	Unchanged         int    `json:"channels_unchanged"`
}

// Syncer runs the bootstrap/subscription-sync workflow.
type Syncer struct {
	Store    BootstrapStore
	Platform PlatformClient
	Vault    *vault.Vault
	WebSub   WebSubManager
	Now      func() time.Time
}

// New builds a Syncer with time.Now as its clock.
func New(s BootstrapStore, client PlatformClient, v *vault.Vault, webSub WebSubManager) *Syncer {
	return &Syncer{Store: s, Platform: client, Vault: v, WebSub: webSub, Now: time.Now}
}

// Sync runs one bootstrap pass for userID: ensures a managed playlist
// exists, reconciles the user's Subscription rows against the Platform's
// current subscription list without deleting any row, and triggers a WebSub tick so
// any newly created row gets its first subscribe attempt right away.
func (s *Syncer) Sync(ctx context.Context, userID string) (*Result, error) {
	now := s.Now()

	user, err := s.Store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load user: %w", err)
	}
	if !user.HasAccessToken() {
		return nil, fmt.Errorf("bootstrap: user %s has no access token on file", userID)
	}

	accessToken, err := s.Vault.Decrypt(user.EncryptedAccessToken)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: decrypt access token: %w", err)
	}

	playlistID, err := s.ensureManagedPlaylist(ctx, user, string(accessToken), now)
	if err != nil {
		return nil, err
	}

	platformSubs, err := s.Platform.ListUserSubscriptions(ctx, string(accessToken))
	if err != nil {
		return nil, fmt.Errorf("bootstrap: list_user_subscriptions: %w", err)
	}

	result, err := s.reconcileSubscriptions(ctx, userID, platformSubs, now)
	if err != nil {
		return nil, err
	}
	result.ManagedPlaylistID = playlistID

	if s.WebSub != nil {
		if err := s.WebSub.Tick(ctx); err != nil {
			logging.Error().Err(err).Str("user_id", userID).Msg("bootstrap: post-sync websub tick failed")
		}
	}

	return result, nil
}

func (s *Syncer) ensureManagedPlaylist(ctx context.Context, user *models.User, accessToken string, now time.Time) (string, error) {
	if user.HasManagedPlaylist() {
		return *user.ManagedPlaylistID, nil
	}

	playlistID, err := s.Platform.CreatePlaylist(ctx, accessToken, ManagedPlaylistTitle, ManagedPlaylistDescription)
	if err != nil {
		return "", fmt.Errorf("bootstrap: create_playlist: %w", err)
	}
	if err := s.Store.SetManagedPlaylist(ctx, user.ID, playlistID, now); err != nil {
		return "", fmt.Errorf("bootstrap: persist managed playlist: %w", err)
	}
	return playlistID, nil
}

// reconcileSubscriptions is the "wiped-and-refilled" step: every channel
// the Platform reports is created if new, or re-included if it had been
// excluded; every stored channel the Platform no longer reports is
// excluded (not deleted — see store.SetSubscriptionIncluded's doc
// comment for why the WebSub facet must survive removal).
func (s *Syncer) reconcileSubscriptions(ctx context.Context, userID string, platformSubs []platform.Subscription, now time.Time) (*Result, error) {
	existing, err := s.Store.ListSubscriptionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: list stored subscriptions: %w", err)
	}
	byChannel := make(map[string]*models.Subscription, len(existing))
	for _, sub := range existing {
		byChannel[sub.ChannelID] = sub
	}

	result := &Result{}
	seen := make(map[string]bool, len(platformSubs))
	for _, ps := range platformSubs {
		seen[ps.ChannelID] = true

		sub, ok := byChannel[ps.ChannelID]
		if !ok {
			newSub := &models.Subscription{
				ID:             uuid.NewString(),
				UserID:         userID,
				ChannelID:      ps.ChannelID,
				Title:          ps.ChannelTitle,
				Included:       true,
				PollingEnabled: true,
				CreatedAt:      now,
			}
			if err := s.Store.CreateSubscription(ctx, newSub); err != nil {
				if err == store.ErrDuplicateSubscription {
					continue
				}
				logging.Error().Err(err).Str("user_id", userID).Str("channel_id", ps.ChannelID).Msg("bootstrap: create subscription failed")
				continue
			}
			result.Added++
			continue
		}

		if !sub.Included {
			if err := s.Store.SetSubscriptionIncluded(ctx, sub.ID, true); err != nil {
				logging.Error().Err(err).Str("subscription_id", sub.ID).Msg("bootstrap: re-include subscription failed")
				continue
			}
			result.Added++
			continue
		}
		result.Unchanged++
	}

	for _, sub := range existing {
		if seen[sub.ChannelID] || !sub.Included {
			continue
		}
		if err := s.Store.SetSubscriptionIncluded(ctx, sub.ID, false); err != nil {
			logging.Error().Err(err).Str("subscription_id", sub.ID).Msg("bootstrap: exclude subscription failed")
			continue
		}
		result.Removed++
	}

	return result, nil
}
