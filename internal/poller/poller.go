// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package poller implements the Fallback Poller (component F): for every
subscription whose push channel is missing, expired, or stale, it asks
the Platform for recently published videos and synthesizes the
equivalent WebhookEvent rows the Webhook Receiver would otherwise have
produced. Grounded on the teacher's periodic-loop managers, paced with a
golang.org/x/time/rate token bucket instead of a bare time.Sleep between
channels.
*/
package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/watchlaterhq/autowl/internal/logging"
	"github.com/watchlaterhq/autowl/internal/metrics"
	"github.com/watchlaterhq/autowl/internal/models"
	"github.com/watchlaterhq/autowl/internal/platform"
	"github.com/watchlaterhq/autowl/internal/vault"
)

// LookbackWindow bounds how far back search_channel_recent looks.
// Spec.md §4.F: "since=now-7d".
const LookbackWindow = 7 * 24 * time.Hour

// MaxResultsPerChannel caps how many recent videos are requested per
// channel per tick. Spec.md §4.F: "up to 10 results ascending."
const MaxResultsPerChannel = 10

// InterChannelPace is the minimum spacing between two channels' Platform
// calls within one tick. Spec.md §4.F: "sleep 1s between channels."
const InterChannelPace = 1 * time.Second

// PollStore is the subset of *store.Store the poller needs.
type PollStore interface {
	ListSubscriptionsForPolling(ctx context.Context) ([]*models.Subscription, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	HasWebhookEvent(ctx context.Context, channelID, videoID string) (bool, error)
	InsertWebhookEvent(ctx context.Context, ev *models.WebhookEvent) error
	RecordPoll(ctx context.Context, id, lastVideoID string, now time.Time) error
}

// PlatformClient is the subset of *platform.Client the poller needs.
type PlatformClient interface {
	SearchChannelRecent(ctx context.Context, accessToken, channelID string, publishedAfter time.Time, maxResults int64) ([]platform.RecentVideo, error)
}

// Poller drains subscriptions needing a poll and synthesizes events for
// any video the Webhook Receiver hasn't already recorded.
type Poller struct {
	Store    PollStore
	Platform PlatformClient
	Vault    *vault.Vault
	Interval time.Duration
	Now      func() time.Time
	limiter  *rate.Limiter
}

// New builds a Poller with a 1-per-second inter-channel pace and
// time.Now as its clock.
func New(store PollStore, client PlatformClient, v *vault.Vault, interval time.Duration) *Poller {
	return &Poller{
		Store:    store,
		Platform: client,
		Vault:    v,
		Interval: interval,
		Now:      time.Now,
		limiter:  rate.NewLimiter(rate.Every(InterChannelPace), 1),
	}
}

// Tick implements supervisor.TickFunc.
func (p *Poller) Tick(ctx context.Context) error {
	now := p.Now()

	subs, err := p.Store.ListSubscriptionsForPolling(ctx)
	if err != nil {
		return fmt.Errorf("poller: list subscriptions: %w", err)
	}

	scanned := 0
	discovered := 0
	for _, sub := range subs {
		if !sub.NeedsPolling(now, p.Interval) {
			continue
		}
		if err := p.limiter.Wait(ctx); err != nil {
			metrics.RecordPollRun("aborted", scanned, discovered)
			return err
		}
		scanned++
		discovered += p.pollOne(ctx, sub, now)
	}
	metrics.RecordPollRun("success", scanned, discovered)
	return nil
}

func (p *Poller) pollOne(ctx context.Context, sub *models.Subscription, now time.Time) int {
	user, err := p.Store.GetUser(ctx, sub.UserID)
	if err != nil {
		logging.Error().Err(err).Str("subscription_id", sub.ID).Msg("poller: load user failed")
		return 0
	}
	if !user.HasAccessToken() {
		return 0
	}

	accessToken, err := p.Vault.Decrypt(user.EncryptedAccessToken)
	if err != nil {
		logging.Error().Err(err).Str("user_id", user.ID).Msg("poller: decrypt access token failed")
		return 0
	}

	videos, err := p.Platform.SearchChannelRecent(ctx, string(accessToken), sub.ChannelID, now.Add(-LookbackWindow), MaxResultsPerChannel)
	if err != nil {
		logging.Warn().Err(err).Str("subscription_id", sub.ID).Str("channel_id", sub.ChannelID).Msg("poller: search failed")
		return 0
	}

	discovered := 0
	lastVideoID := sub.LastPolledVideoID
	seenLast := lastVideoID == ""
	for _, v := range videos {
		if !seenLast {
			if v.VideoID == lastVideoID {
				seenLast = true
			}
			continue
		}
		if p.recordIfNew(ctx, sub.ChannelID, v, now) {
			discovered++
		}
		lastVideoID = v.VideoID
	}
	// The channel's videos may not include last-polled-video-id (e.g. it
	// aged out of the lookback window); in that case every result is new.
	if !seenLast {
		discovered = 0
		for _, v := range videos {
			if p.recordIfNew(ctx, sub.ChannelID, v, now) {
				discovered++
			}
			lastVideoID = v.VideoID
		}
	}

	if err := p.Store.RecordPoll(ctx, sub.ID, lastVideoID, now); err != nil {
		logging.Error().Err(err).Str("subscription_id", sub.ID).Msg("poller: record poll failed")
	}
	return discovered
}

func (p *Poller) recordIfNew(ctx context.Context, channelID string, v platform.RecentVideo, now time.Time) bool {
	exists, err := p.Store.HasWebhookEvent(ctx, channelID, v.VideoID)
	if err != nil {
		logging.Error().Err(err).Str("channel_id", channelID).Str("video_id", v.VideoID).Msg("poller: dedup check failed")
		return false
	}
	if exists {
		return false
	}

	ev := &models.WebhookEvent{
		ID:         uuid.NewString(),
		ChannelID:  channelID,
		VideoID:    v.VideoID,
		Title:      v.Title,
		Source:     models.EventSourcePolling,
		ReceivedAt: now,
	}
	if err := p.Store.InsertWebhookEvent(ctx, ev); err != nil {
		logging.Error().Err(err).Str("channel_id", channelID).Str("video_id", v.VideoID).Msg("poller: insert synthesized event failed")
		return false
	}
	return true
}
