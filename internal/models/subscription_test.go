// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"testing"
	"time"
)

func TestSubscription_NeedsWebSubAttention(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		sub  Subscription
		want bool
	}{
		{
			name: "excluded channel without a lease needs no attention",
			sub:  Subscription{Included: false},
			want: false,
		},
		{
			name: "never attempted subscribe",
			sub:  Subscription{Included: true, Subscribed: false, AttemptCount: 0},
			want: true,
		},
		{
			name: "backoff not yet elapsed",
			sub: Subscription{
				Included: true, Subscribed: false, AttemptCount: 2,
				LastAttemptAt: timePtr(now.Add(-3 * time.Minute)),
			},
			want: false, // 2^2 = 4 minutes required, only 3 elapsed
		},
		{
			name: "backoff elapsed",
			sub: Subscription{
				Included: true, Subscribed: false, AttemptCount: 2,
				LastAttemptAt: timePtr(now.Add(-5 * time.Minute)),
			},
			want: true,
		},
		{
			name: "attempts at MAX are excluded (dormant)",
			sub: Subscription{
				Included: true, Subscribed: false, AttemptCount: MaxWebSubAttempts,
				LastAttemptAt: timePtr(now.Add(-24 * time.Hour)),
			},
			want: false,
		},
		{
			name: "active with lease far in the future",
			sub: Subscription{
				Included: true, Subscribed: true,
				LeaseExpiresAt: timePtr(now.Add(48 * time.Hour)),
			},
			want: false,
		},
		{
			name: "active with lease exactly at renewal boundary",
			sub: Subscription{
				Included: true, Subscribed: true,
				LeaseExpiresAt: timePtr(now.Add(LeaseRenewalWindow)),
			},
			want: true,
		},
		{
			name: "active with lease already expired",
			sub: Subscription{
				Included: true, Subscribed: true,
				LeaseExpiresAt: timePtr(now.Add(-time.Hour)),
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sub.NeedsWebSubAttention(now); got != tt.want {
				t.Errorf("NeedsWebSubAttention() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSubscription_NeedsPolling(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	interval := time.Hour

	tests := []struct {
		name string
		sub  Subscription
		want bool
	}{
		{
			name: "excluded",
			sub:  Subscription{Included: false, PollingEnabled: true},
			want: false,
		},
		{
			name: "polling disabled",
			sub:  Subscription{Included: true, PollingEnabled: false},
			want: false,
		},
		{
			name: "never subscribed via WebSub",
			sub:  Subscription{Included: true, PollingEnabled: true, Subscribed: false},
			want: true,
		},
		{
			name: "WebSub lease expired",
			sub: Subscription{
				Included: true, PollingEnabled: true, Subscribed: true,
				LeaseExpiresAt: timePtr(now.Add(-time.Minute)),
			},
			want: true,
		},
		{
			name: "never polled before",
			sub: Subscription{
				Included: true, PollingEnabled: true, Subscribed: true,
				LeaseExpiresAt: timePtr(now.Add(48 * time.Hour)),
			},
			want: true,
		},
		{
			name: "polled recently, WebSub healthy",
			sub: Subscription{
				Included: true, PollingEnabled: true, Subscribed: true,
				LeaseExpiresAt: timePtr(now.Add(48 * time.Hour)),
				LastPolledAt:   timePtr(now.Add(-10 * time.Minute)),
			},
			want: false,
		},
		{
			name: "polled long ago",
			sub: Subscription{
				Included: true, PollingEnabled: true, Subscribed: true,
				LeaseExpiresAt: timePtr(now.Add(48 * time.Hour)),
				LastPolledAt:   timePtr(now.Add(-2 * time.Hour)),
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sub.NeedsPolling(now, interval); got != tt.want {
				t.Errorf("NeedsPolling() = %v, want %v", got, tt.want)
			}
		})
	}
}

func timePtr(t time.Time) *time.Time { return &t }
