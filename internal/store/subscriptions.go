// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/watchlaterhq/autowl/internal/models"
)

// ListSubscriptionsForWebSub returns every subscription that could still
// need WebSub attention this tick, so the WebSub Subscription Manager can
// apply models.Subscription.NeedsWebSubAttention in Go rather than
// duplicating its four-case selection predicate in SQL. That includes
// excluded subscriptions that still hold a hub lease (subscribed = 1),
// since removing a channel must unsubscribe at the hub rather than just
// stop being renewed (spec.md:75). Spec.md §4.D's cadence (30 minutes,
// fixed) keeps this table small enough that a full scan per tick is cheap.
func (s *Store) ListSubscriptionsForWebSub(ctx context.Context) ([]*models.Subscription, error) {
	return s.listSubscriptions(ctx, `WHERE included = 1 OR subscribed = 1`)
}

// ListSubscriptionsForPolling returns every included, polling-enabled
// subscription belonging to a user with automation still enabled, so the
// Fallback Poller can apply models.Subscription.NeedsPolling. The join on
// users encodes the "owning user has an access token" clause the model
// method can't see (spec.md §4.F).
func (s *Store) ListSubscriptionsForPolling(ctx context.Context) ([]*models.Subscription, error) {
	rows, err := s.query(ctx, `
		SELECT s.id, s.user_id, s.channel_id, s.channel_title, s.included,
		       s.subscribed, s.lease_expires_at, s.attempt_count, s.last_attempt_at,
		       s.polling_enabled, s.last_polled_at, COALESCE(s.last_polled_video_id, ''), COALESCE(s.hub_secret, ''), s.created_at
		FROM subscriptions s
		JOIN users u ON u.id = s.user_id
		WHERE s.included = 1 AND s.polling_enabled = 1
		  AND u.automation_disabled = 0 AND u.encrypted_access_token IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("store: ListSubscriptionsForPolling: %w", err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

func (s *Store) listSubscriptions(ctx context.Context, whereClause string, args ...interface{}) ([]*models.Subscription, error) {
	rows, err := s.query(ctx, `
		SELECT id, user_id, channel_id, channel_title, included,
		       subscribed, lease_expires_at, attempt_count, last_attempt_at,
		       polling_enabled, last_polled_at, COALESCE(last_polled_video_id, ''), COALESCE(hub_secret, ''), created_at
		FROM subscriptions `+whereClause, args...)
	if err != nil {
		return nil, fmt.Errorf("store: listSubscriptions: %w", err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

func scanSubscriptions(rows *sql.Rows) ([]*models.Subscription, error) {
	var out []*models.Subscription
	for rows.Next() {
		var sub models.Subscription
		if err := rows.Scan(
			&sub.ID, &sub.UserID, &sub.ChannelID, &sub.Title, &sub.Included,
			&sub.Subscribed, &sub.LeaseExpiresAt, &sub.AttemptCount, &sub.LastAttemptAt,
			&sub.PollingEnabled, &sub.LastPolledAt, &sub.LastPolledVideoID, &sub.HubSecret, &sub.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, &sub)
	}
	return out, rows.Err()
}

// ListSubscriptionsByUser returns every subscription row a user owns,
// included or not, so a bootstrap sync can diff the Platform's current
// subscription list against what's already stored.
func (s *Store) ListSubscriptionsByUser(ctx context.Context, userID string) ([]*models.Subscription, error) {
	return s.listSubscriptions(ctx, `WHERE user_id = ?`, userID)
}

// SetSubscriptionIncluded flips a subscription's included flag. Spec.md
// §3: "Subscriptions are wiped-and-refilled from the Platform on each
// bootstrap" — rather than deleting rows the Platform no longer reports,
// bootstrap excludes them here, which preserves the WebSub facet so an
// unsubscribe is still owed to the hub (see NeedsWebSubAttention) instead
// of orphaning a live lease.
func (s *Store) SetSubscriptionIncluded(ctx context.Context, id string, included bool) error {
	_, err := s.exec(ctx, `UPDATE subscriptions SET included = ? WHERE id = ?`, included, id)
	if err != nil {
		return fmt.Errorf("store: SetSubscriptionIncluded(%s): %w", id, err)
	}
	return nil
}

// ListSubscriptionsByChannel resolves an incoming Atom notification's
// channel id back to every owning subscription row, since a channel can be
// subscribed to by many users.
func (s *Store) ListSubscriptionsByChannel(ctx context.Context, channelID string) ([]*models.Subscription, error) {
	rows, err := s.query(ctx, `
		SELECT id, user_id, channel_id, channel_title, included,
		       subscribed, lease_expires_at, attempt_count, last_attempt_at,
		       polling_enabled, last_polled_at, COALESCE(last_polled_video_id, ''), COALESCE(hub_secret, ''), created_at
		FROM subscriptions WHERE channel_id = ? AND included = 1`, channelID)
	if err != nil {
		return nil, fmt.Errorf("store: ListSubscriptionsByChannel(%s): %w", channelID, err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

// RecordWebSubAttempt persists the outcome of one subscribe POST: on
// success, subscribed flips true and the lease expiry is set to
// now + LeaseSeconds − LeaseSafetyMargin; on failure, only the attempt
// bookkeeping advances so backoff and the MAX-attempts ceiling apply.
func (s *Store) RecordWebSubAttempt(ctx context.Context, id string, success bool, now time.Time) error {
	if success {
		lease := now.Add(models.LeaseSeconds*time.Second - models.LeaseSafetyMargin)
		_, err := s.exec(ctx, `
			UPDATE subscriptions
			SET subscribed = 1, lease_expires_at = ?, attempt_count = 0, last_attempt_at = ?
			WHERE id = ?`, lease, now, id)
		if err != nil {
			return fmt.Errorf("store: RecordWebSubAttempt(%s, success): %w", id, err)
		}
		return nil
	}
	return s.recordWebSubFailure(ctx, id, now)
}

// RecordWebSubUnsubscribe persists the outcome of one unsubscribe POST:
// on success, subscribed flips false and the lease is cleared, reaching
// the terminal non-included state spec.md:96 describes; on failure, the
// same attempt bookkeeping as a subscribe failure applies so backoff and
// the MAX-attempts ceiling still govern retries.
func (s *Store) RecordWebSubUnsubscribe(ctx context.Context, id string, success bool, now time.Time) error {
	if success {
		_, err := s.exec(ctx, `
			UPDATE subscriptions
			SET subscribed = 0, lease_expires_at = NULL, attempt_count = 0, last_attempt_at = ?
			WHERE id = ?`, now, id)
		if err != nil {
			return fmt.Errorf("store: RecordWebSubUnsubscribe(%s, success): %w", id, err)
		}
		return nil
	}
	return s.recordWebSubFailure(ctx, id, now)
}

func (s *Store) recordWebSubFailure(ctx context.Context, id string, now time.Time) error {
	_, err := s.exec(ctx, `
		UPDATE subscriptions
		SET attempt_count = attempt_count + 1, last_attempt_at = ?
		WHERE id = ?`, now, id)
	if err != nil {
		return fmt.Errorf("store: recordWebSubFailure(%s): %w", id, err)
	}
	return nil
}

// ResetWebSubToNew clears the WebSub facet back to state NEW. Spec.md
// §4.D: a hub 410 Gone response resets the subscription rather than
// counting as a failed attempt, since the hub has told us the topic no
// longer exists under that callback and backoff would only delay
// resubscription.
func (s *Store) ResetWebSubToNew(ctx context.Context, id string, now time.Time) error {
	_, err := s.exec(ctx, `
		UPDATE subscriptions
		SET subscribed = 0, lease_expires_at = NULL, attempt_count = 0, last_attempt_at = ?
		WHERE id = ?`, now, id)
	if err != nil {
		return fmt.Errorf("store: ResetWebSubToNew(%s): %w", id, err)
	}
	return nil
}

// RecordPoll advances the polling bookkeeping for a subscription after a
// Fallback Poller pass, independent of whether new videos were found.
func (s *Store) RecordPoll(ctx context.Context, id, lastVideoID string, now time.Time) error {
	_, err := s.exec(ctx, `
		UPDATE subscriptions SET last_polled_at = ?, last_polled_video_id = ? WHERE id = ?`,
		now, lastVideoID, id)
	if err != nil {
		return fmt.Errorf("store: RecordPoll(%s): %w", id, err)
	}
	return nil
}

// ErrDuplicateSubscription is returned by CreateSubscription when the
// (user_id, channel_id) unique constraint rejects an insert.
var ErrDuplicateSubscription = errors.New("store: subscription already exists")

// CreateSubscription inserts a new (user, channel) subscription in state
// NEW.
func (s *Store) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	_, err := s.exec(ctx, `
		INSERT INTO subscriptions
			(id, user_id, channel_id, channel_title, included, polling_enabled, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.UserID, sub.ChannelID, sub.Title, sub.Included, sub.PollingEnabled, sub.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSubscription
		}
		return fmt.Errorf("store: CreateSubscription: %w", err)
	}
	return nil
}

// isUniqueViolation is a best-effort classifier across the three drivers'
// distinct error surfaces for a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	msg := err.Error()
	for _, needle := range []string{"UNIQUE constraint", "unique constraint", "duplicate key", "Violation of UNIQUE KEY"} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
