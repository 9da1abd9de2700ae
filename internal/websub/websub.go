// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package websub implements the WebSub Subscription Manager (component D):
each tick it selects subscriptions needing attention per
models.Subscription.NeedsWebSubAttention and POSTs a form-encoded
subscribe/unsubscribe request to the PubSubHubbub hub, per spec.md §4.D.
*/
package websub

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/watchlaterhq/autowl/internal/logging"
	"github.com/watchlaterhq/autowl/internal/metrics"
	"github.com/watchlaterhq/autowl/internal/models"
)

// HubURL is the PubSubHubbub hub YouTube channel feeds are published
// through. Spec.md §4.D never makes this configurable; it is fixed to
// the Platform's known hub.
const HubURL = "https://pubsubhubbub.appspot.com/subscribe"

// channelFeedURL builds the Atom feed topic URL for a channel id, the
// same URL format used in spec.md's hub-verification example.
func channelFeedURL(channelID string) string {
	return "https://www.youtube.com/xml/feeds/videos.xml?channel_id=" + url.QueryEscape(channelID)
}

// SubStore is the subset of *store.Store the manager needs.
type SubStore interface {
	ListSubscriptionsForWebSub(ctx context.Context) ([]*models.Subscription, error)
	RecordWebSubAttempt(ctx context.Context, id string, success bool, now time.Time) error
	RecordWebSubUnsubscribe(ctx context.Context, id string, success bool, now time.Time) error
	ResetWebSubToNew(ctx context.Context, id string, now time.Time) error
}

// Manager drives the subscribe/renew/unsubscribe lifecycle against the
// hub over HTTP.
type Manager struct {
	Store       SubStore
	HTTPClient  *http.Client
	CallbackURL string
	HubURL      string
	Now         func() time.Time
}

// New builds a Manager with a 30-second HTTP timeout and time.Now as its
// clock.
func New(store SubStore, callbackURL string) *Manager {
	return &Manager{
		Store:       store,
		HTTPClient:  &http.Client{Timeout: 30 * time.Second},
		CallbackURL: callbackURL,
		HubURL:      HubURL,
		Now:         time.Now,
	}
}

// Tick implements supervisor.TickFunc.
func (m *Manager) Tick(ctx context.Context) error {
	now := m.Now()

	subs, err := m.Store.ListSubscriptionsForWebSub(ctx)
	if err != nil {
		return fmt.Errorf("websub: list subscriptions: %w", err)
	}

	byState := map[models.SubscriptionState]int64{}
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return err
		}
		byState[sub.WebSubState()]++
		if !sub.NeedsWebSubAttention(now) {
			continue
		}
		m.attend(ctx, sub, now)
	}
	for _, state := range []models.SubscriptionState{
		models.SubStateNew, models.SubStatePendingVerify, models.SubStateActive, models.SubStateDormant,
	} {
		metrics.SetSubscriptionsByState(string(state), byState[state])
	}
	return nil
}

// attend performs one subscribe (or unsubscribe, when the subscription
// has been excluded but a hub lease may still be live) attempt and
// records its outcome.
func (m *Manager) attend(ctx context.Context, sub *models.Subscription, now time.Time) {
	unsubscribing := !sub.Included
	renewal := !unsubscribing && sub.Subscribed
	fromState := string(sub.WebSubState())
	mode := "subscribe"
	if unsubscribing {
		mode = "unsubscribe"
	}

	recordAttempt := func(success bool) error {
		if unsubscribing {
			return m.Store.RecordWebSubUnsubscribe(ctx, sub.ID, success, now)
		}
		return m.Store.RecordWebSubAttempt(ctx, sub.ID, success, now)
	}

	status, err := m.post(ctx, mode, sub.ChannelID)
	if err != nil {
		logging.Warn().Err(err).Str("subscription_id", sub.ID).Str("mode", mode).Msg("websub: hub request failed")
		if recErr := recordAttempt(false); recErr != nil {
			logging.Error().Err(recErr).Str("subscription_id", sub.ID).Msg("websub: record attempt failed")
		}
		if renewal {
			metrics.RecordSubscriptionRenewal(false)
		}
		return
	}

	switch {
	case status == http.StatusGone:
		logging.Info().Str("subscription_id", sub.ID).Msg("websub: hub returned 410, resetting to NEW")
		if err := m.Store.ResetWebSubToNew(ctx, sub.ID, now); err != nil {
			logging.Error().Err(err).Str("subscription_id", sub.ID).Msg("websub: reset to NEW failed")
		}
		metrics.RecordSubscriptionTransition(fromState, string(models.SubStateNew))
	case status >= 200 && status < 300:
		if err := recordAttempt(true); err != nil {
			logging.Error().Err(err).Str("subscription_id", sub.ID).Msg("websub: record attempt failed")
		}
		if renewal {
			metrics.RecordSubscriptionRenewal(true)
		}
		toState := string(models.SubStateActive)
		if unsubscribing {
			toState = "EXCLUDED"
		}
		metrics.RecordSubscriptionTransition(fromState, toState)
	default:
		logging.Warn().Int("status", status).Str("subscription_id", sub.ID).Msg("websub: hub rejected request")
		if err := recordAttempt(false); err != nil {
			logging.Error().Err(err).Str("subscription_id", sub.ID).Msg("websub: record attempt failed")
		}
		if renewal {
			metrics.RecordSubscriptionRenewal(false)
		}
	}
}

// post issues the form-encoded subscribe/unsubscribe request spec.md
// §4.D and §8 describe, returning the hub's HTTP status code.
func (m *Manager) post(ctx context.Context, mode, channelID string) (int, error) {
	form := url.Values{
		"hub.callback":      {m.CallbackURL},
		"hub.topic":         {channelFeedURL(channelID)},
		"hub.mode":          {mode},
		"hub.lease_seconds": {strconv.Itoa(models.LeaseSeconds)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.HubURL, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, fmt.Errorf("websub: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.HTTPClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("websub: hub request: %w", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}
