// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import "time"

// SubscriptionState is the WebSub facet's state machine position, per
// spec.md §4.D. It is derived from SubscribedFlag/LeaseExpiry/AttemptCount
// rather than persisted directly, but named constants make the derivation
// and the transitions it's compared against readable.
type SubscriptionState string

const (
	SubStateNew            SubscriptionState = "NEW"
	SubStatePendingVerify  SubscriptionState = "PENDING_VERIFY"
	SubStateActive         SubscriptionState = "ACTIVE"
	SubStateDormant        SubscriptionState = "DORMANT"
)

// MaxWebSubAttempts is the attempt-count ceiling after which a
// subscription's WebSub facet is considered DORMANT and excluded from
// selection until an operator resets it. Spec.md §4.D: "attempts ≥ MAX".
const MaxWebSubAttempts = 5

// LeaseRenewalWindow is how far ahead of lease expiry a subscription
// becomes eligible for renewal. Spec.md §4.D: "lease-expiry ≤ now + 24h".
const LeaseRenewalWindow = 24 * time.Hour

// LeaseSeconds is the lease duration requested on every subscribe POST.
// Spec.md §4.D: "hub.lease_seconds=432000" (5 days).
const LeaseSeconds = 432000

// LeaseSafetyMargin is subtracted from the requested lease duration when
// computing the persisted lease expiry, so a slow renewal cycle doesn't
// race the hub's own expiry. Spec.md §4.D: "now + 432000s − 1h".
const LeaseSafetyMargin = time.Hour

// Subscription is a per-(user, channel) row; unique per pair per spec.md
// §3.
type Subscription struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	ChannelID string    `db:"channel_id"`
	Title     string    `db:"channel_title"`
	Included  bool      `db:"included"`
	CreatedAt time.Time `db:"created_at"`

	// WebSub facet
	Subscribed     bool       `db:"subscribed"`
	LeaseExpiresAt *time.Time `db:"lease_expires_at"`
	AttemptCount   int        `db:"attempt_count"`
	LastAttemptAt  *time.Time `db:"last_attempt_at"`

	// Polling facet
	PollingEnabled     bool       `db:"polling_enabled"`
	LastPolledAt       *time.Time `db:"last_polled_at"`
	LastPolledVideoID  string     `db:"last_polled_video_id"`

	// HubSecret, when set, is the per-subscription secret given to the hub
	// at subscribe time and used to verify X-Hub-Signature(-256) on
	// inbound notifications. Empty means verification is skipped.
	HubSecret string `db:"hub_secret"`
}

// WebSubState derives the current state-machine position from the
// persisted WebSub facet fields, per the diagram in spec.md §4.D.
func (s *Subscription) WebSubState() SubscriptionState {
	switch {
	case s.AttemptCount >= MaxWebSubAttempts && !s.Subscribed:
		return SubStateDormant
	case s.Subscribed:
		return SubStateActive
	case s.AttemptCount > 0:
		return SubStatePendingVerify
	default:
		return SubStateNew
	}
}

// NeedsWebSubAttention reports whether this subscription is one of the
// four cases spec.md §4.D selects for a WebSub manager tick:
// never-succeeded, renewal-due, a backoff-elapsed retry, or an
// unsubscribe still owed to the hub because included flipped false
// while a lease was held (spec.md:75).
func (s *Subscription) NeedsWebSubAttention(now time.Time) bool {
	if !s.Included {
		if !s.Subscribed {
			return false // never subscribed, or the unsubscribe already landed
		}
		return s.AttemptCount < MaxWebSubAttempts && s.backoffElapsed(now)
	}
	if !s.Subscribed {
		if s.AttemptCount == 0 {
			return true // (i) never succeeded
		}
		return s.AttemptCount < MaxWebSubAttempts && s.backoffElapsed(now)
	}
	if s.LeaseExpiresAt != nil && !s.LeaseExpiresAt.After(now.Add(LeaseRenewalWindow)) {
		return true // (ii) renewal
	}
	return false
}

// backoffElapsed implements spec.md §4.D's backoff predicate:
// last-attempt-at + 2^attempt-count minutes ≤ now.
func (s *Subscription) backoffElapsed(now time.Time) bool {
	if s.LastAttemptAt == nil {
		return true
	}
	backoff := time.Duration(1<<uint(s.AttemptCount)) * time.Minute
	return !s.LastAttemptAt.Add(backoff).After(now)
}

// NeedsPolling reports whether this subscription should be visited by the
// Fallback Poller this tick, per spec.md §4.F's selection predicate
// (caller is responsible for the owning-user-has-access-token clause,
// which requires a join this model can't see).
func (s *Subscription) NeedsPolling(now time.Time, interval time.Duration) bool {
	if !s.Included || !s.PollingEnabled {
		return false
	}
	if !s.Subscribed {
		return true
	}
	if s.LeaseExpiresAt != nil && s.LeaseExpiresAt.Before(now) {
		return true
	}
	if s.LastPolledAt == nil {
		return true
	}
	return s.LastPolledAt.Before(now.Add(-interval))
}
