// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package fanout implements the Fan-Out Processor (component G): it drains
the unprocessed WebhookEvent queue in arrival order, joins each event to
every eligible subscribing user, enforces per-(user, video) exactly-once
insertion, and records the outcome. Grounded on the teacher's
periodic-loop managers with per-item error isolation.

The Platform insert and the ProcessedVideo write are not one transaction.
If the process dies after InsertPlaylistItem succeeds but before the
ProcessedVideo row is written, the event is still unprocessed, so the
next pass finds no row for that (user, video) and inserts the video a
second time.
*/
package fanout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/watchlaterhq/autowl/internal/logging"
	"github.com/watchlaterhq/autowl/internal/metrics"
	"github.com/watchlaterhq/autowl/internal/models"
	"github.com/watchlaterhq/autowl/internal/platform"
	"github.com/watchlaterhq/autowl/internal/vault"
)

// EventBatchSize bounds how many unprocessed events one tick drains, so a
// large backlog can't starve the tick's context deadline.
const EventBatchSize = 100

// youtubeServiceName keys the ApiQuotaUsage row this processor writes to.
// AutoWL speaks to exactly one platform today (see cmd/server/main.go's
// youtubePlatformHost), so this is a constant rather than a config key.
const youtubeServiceName = "youtube"

// youtubePlaylistItemsInsertCost is the documented YouTube Data API v3
// quota cost of a single playlistItems.insert call, and
// youtubeDailyQuotaLimit is the API's default per-project daily quota
// unit allowance. Both seed a fresh ApiQuotaUsage row on the first
// RecordQuotaUsage call after midnight; spec.md §7 only requires the
// exhaustion be recorded, not that these ceilings be configurable.
const (
	youtubePlaylistItemsInsertCost = 50
	youtubeDailyQuotaLimit         = 10000
)

// FanoutStore is the subset of *store.Store the processor needs.
type FanoutStore interface {
	ListUnprocessedEvents(ctx context.Context, limit int) ([]*models.WebhookEvent, error)
	ListEligibleUsersForChannel(ctx context.Context, channelID string) ([]*models.User, error)
	HasProcessedVideo(ctx context.Context, userID, videoID string) (bool, error)
	RecordProcessedVideo(ctx context.Context, pv *models.ProcessedVideo) error
	MarkEventProcessed(ctx context.Context, id string, processedAt time.Time) error
	RecordQuotaUsage(ctx context.Context, serviceName string, requestDelta, costDelta, quotaLimit, costLimit int64, now time.Time) error
}

// PlatformClient is the subset of *platform.Client the processor needs.
type PlatformClient interface {
	InsertPlaylistItem(ctx context.Context, accessToken, playlistID, videoID string) (int, error)
}

// Processor fans each unprocessed event out to its subscribing users.
type Processor struct {
	Store    FanoutStore
	Platform PlatformClient
	Vault    *vault.Vault
	Now      func() time.Time
}

// New builds a Processor with time.Now as its clock.
func New(store FanoutStore, client PlatformClient, v *vault.Vault) *Processor {
	return &Processor{Store: store, Platform: client, Vault: v, Now: time.Now}
}

// Tick implements supervisor.TickFunc.
func (p *Processor) Tick(ctx context.Context) error {
	start := p.Now()
	events, err := p.Store.ListUnprocessedEvents(ctx, EventBatchSize)
	if err != nil {
		metrics.RecordFanoutRun(p.Now().Sub(start), 0, "error")
		return fmt.Errorf("fanout: list unprocessed events: %w", err)
	}

	processed := 0
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			metrics.RecordFanoutRun(p.Now().Sub(start), processed, "aborted")
			return err
		}
		if p.processEvent(ctx, ev) {
			processed++
		}
	}
	metrics.RecordFanoutRun(p.Now().Sub(start), processed, "success")
	return nil
}

// processEvent joins ev to its eligible users and marks it processed only
// once every per-user dedup check has actually run to completion; a dedup
// check that itself errored leaves the event unprocessed so the next tick
// retries that user instead of silently losing their chance at the video.
func (p *Processor) processEvent(ctx context.Context, ev *models.WebhookEvent) bool {
	now := p.Now()

	users, err := p.Store.ListEligibleUsersForChannel(ctx, ev.ChannelID)
	if err != nil {
		logging.Error().Err(err).Str("event_id", ev.ID).Msg("fanout: list eligible users failed")
		return false
	}

	allHandled := true
	for _, u := range users {
		if !p.processUser(ctx, ev, u, now) {
			allHandled = false
		}
	}
	if !allHandled {
		return false
	}

	if err := p.Store.MarkEventProcessed(ctx, ev.ID, now); err != nil {
		logging.Error().Err(err).Str("event_id", ev.ID).Msg("fanout: mark event processed failed")
		return false
	}
	return true
}

// processUser inserts a single video into a single user's playlist,
// isolating any error to a ProcessedVideo row so one user's failure never
// halts the rest of the batch. Spec.md §4.G. It returns false only when
// the exactly-once check itself failed and no outcome could be recorded
// at all, signaling processEvent to leave the event for retry.
func (p *Processor) processUser(ctx context.Context, ev *models.WebhookEvent, u *models.User, now time.Time) bool {
	already, err := p.Store.HasProcessedVideo(ctx, u.ID, ev.VideoID)
	if err != nil {
		logging.Error().Err(err).Str("user_id", u.ID).Str("video_id", ev.VideoID).Msg("fanout: exactly-once check failed")
		return false
	}
	if already {
		return true
	}

	pv := &models.ProcessedVideo{
		ID:          uuid.NewString(),
		UserID:      u.ID,
		VideoID:     ev.VideoID,
		ChannelID:   ev.ChannelID,
		Title:       ev.Title,
		Source:      ev.Source,
		ProcessedAt: now,
	}

	accessToken, err := p.Vault.Decrypt(u.EncryptedAccessToken)
	if err != nil {
		msg := err.Error()
		pv.ErrorMessage = &msg
		metrics.RecordFanoutInsert("skipped")
		p.record(ctx, pv)
		return true
	}

	attempts, insertErr := p.Platform.InsertPlaylistItem(ctx, string(accessToken), *u.ManagedPlaylistID, ev.VideoID)
	pv.RetryAttempts = attempts
	switch {
	case insertErr == nil:
		pv.AddedToPlaylist = true
		metrics.RecordFanoutInsert("inserted")
	case platform.IsClass(insertErr, platform.ClassQuotaExceeded):
		// Deliberate: mark processed without addition rather than retry
		// indefinitely against a daily quota. Spec.md §4.G / Open Question.
		// Spec.md §7 also requires the exhausted call itself be recorded in
		// ApiQuotaUsage, even though it didn't add the video.
		if err := p.Store.RecordQuotaUsage(ctx, youtubeServiceName, 1, youtubePlaylistItemsInsertCost,
			youtubeDailyQuotaLimit, youtubeDailyQuotaLimit, now); err != nil {
			logging.Error().Err(err).Str("user_id", u.ID).Str("video_id", ev.VideoID).Msg("fanout: record quota usage failed")
		}
		metrics.RecordQuotaUnits("insert_playlist_item", youtubePlaylistItemsInsertCost)
		msg := insertErr.Error()
		pv.ErrorMessage = &msg
		metrics.RecordFanoutInsert("failed")
	default:
		// Covers NotFound (video deleted between discovery and insert),
		// Unauthorized (next Token Refresh Loop tick handles it), and
		// Malformed: all recorded, none retried within this tick.
		msg := insertErr.Error()
		pv.ErrorMessage = &msg
		metrics.RecordFanoutInsert("failed")
	}

	p.record(ctx, pv)
	return true
}

func (p *Processor) record(ctx context.Context, pv *models.ProcessedVideo) {
	if err := p.Store.RecordProcessedVideo(ctx, pv); err != nil {
		logging.Error().Err(err).Str("user_id", pv.UserID).Str("video_id", pv.VideoID).Msg("fanout: record processed video failed")
	}
}
