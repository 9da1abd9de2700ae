// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"testing"
	"time"

	"github.com/watchlaterhq/autowl/internal/config"
	"github.com/watchlaterhq/autowl/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := &config.Config{
		DatabaseProvider:  config.DatabaseProviderSQLite,
		ConnectionStrings: config.ConnectionStringsConfig{Default: "file::memory:?cache=shared"},
	}
	s, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_UserLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := s.exec(ctx, `INSERT INTO users (id, automation_disabled, is_admin, created_at, updated_at) VALUES (?, 0, 0, ?, ?)`,
		"u1", now, now)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	u, err := s.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if u.AutomationDisabled {
		t.Fatal("expected automation enabled")
	}

	expiry := now.Add(time.Hour)
	if err := s.UpdateUserTokens(ctx, "u1", []byte("access"), []byte("refresh"), expiry, now); err != nil {
		t.Fatalf("UpdateUserTokens() error = %v", err)
	}
	u, err = s.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if !u.HasAccessToken() || !u.HasRefreshToken() {
		t.Fatal("expected both tokens present after update")
	}

	if err := s.DisableAutomation(ctx, "u1", now); err != nil {
		t.Fatalf("DisableAutomation() error = %v", err)
	}
	u, err = s.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if !u.AutomationDisabled {
		t.Fatal("expected automation disabled")
	}

	active, err := s.ListActiveUsers(ctx)
	if err != nil {
		t.Fatalf("ListActiveUsers() error = %v", err)
	}
	for _, a := range active {
		if a.ID == "u1" {
			t.Fatal("disabled user should not appear in ListActiveUsers")
		}
	}
}

func TestStore_GetUser_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetUser(context.Background(), "missing")
	if err != ErrNotFound {
		t.Fatalf("GetUser() error = %v, want ErrNotFound", err)
	}
}

func TestStore_SubscriptionLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	sub := &models.Subscription{
		ID: "s1", UserID: "u1", ChannelID: "c1", Title: "Channel One",
		Included: true, PollingEnabled: true, CreatedAt: now,
	}
	if err := s.CreateSubscription(ctx, sub); err != nil {
		t.Fatalf("CreateSubscription() error = %v", err)
	}

	if err := s.CreateSubscription(ctx, sub); err != ErrDuplicateSubscription {
		t.Fatalf("CreateSubscription() duplicate error = %v, want ErrDuplicateSubscription", err)
	}

	subs, err := s.ListSubscriptionsForWebSub(ctx)
	if err != nil {
		t.Fatalf("ListSubscriptionsForWebSub() error = %v", err)
	}
	if len(subs) != 1 || subs[0].ID != "s1" {
		t.Fatalf("ListSubscriptionsForWebSub() = %+v", subs)
	}
	if !subs[0].NeedsWebSubAttention(now) {
		t.Fatal("expected a freshly created subscription to need WebSub attention")
	}

	if err := s.RecordWebSubAttempt(ctx, "s1", true, now); err != nil {
		t.Fatalf("RecordWebSubAttempt() error = %v", err)
	}
	subs, _ = s.ListSubscriptionsForWebSub(ctx)
	if !subs[0].Subscribed {
		t.Fatal("expected subscribed=true after a successful attempt")
	}
	if subs[0].NeedsWebSubAttention(now) {
		t.Fatal("freshly renewed subscription should not need attention yet")
	}

	if err := s.ResetWebSubToNew(ctx, "s1", now); err != nil {
		t.Fatalf("ResetWebSubToNew() error = %v", err)
	}
	subs, _ = s.ListSubscriptionsForWebSub(ctx)
	if subs[0].WebSubState() != models.SubStateNew {
		t.Fatalf("WebSubState() = %v, want NEW", subs[0].WebSubState())
	}

	if err := s.SetSubscriptionIncluded(ctx, "s1", false); err != nil {
		t.Fatalf("SetSubscriptionIncluded() error = %v", err)
	}
	byUser, err := s.ListSubscriptionsByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListSubscriptionsByUser() error = %v", err)
	}
	if len(byUser) != 1 || byUser[0].Included {
		t.Fatalf("ListSubscriptionsByUser() = %+v, want one excluded row", byUser)
	}
}

func TestStore_WebhookEventLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	ev := &models.WebhookEvent{
		ID: "e1", ChannelID: "c1", VideoID: "v1", Title: "New Video",
		Source: models.EventSourceWebhook, ReceivedAt: now,
	}
	if err := s.InsertWebhookEvent(ctx, ev); err != nil {
		t.Fatalf("InsertWebhookEvent() error = %v", err)
	}

	// A redelivered hub notification for the same (channel, video) arrives
	// with a fresh event ID; it must persist as its own row rather than
	// being rejected, since dedup happens later at the Fan-Out Processor's
	// per-(user, video) ProcessedVideo check.
	dup := &models.WebhookEvent{
		ID: "e2", ChannelID: "c1", VideoID: "v1", Title: "New Video",
		Source: models.EventSourceWebhook, ReceivedAt: now,
	}
	if err := s.InsertWebhookEvent(ctx, dup); err != nil {
		t.Fatalf("InsertWebhookEvent() redelivery error = %v", err)
	}

	has, err := s.HasWebhookEvent(ctx, "c1", "v1")
	if err != nil || !has {
		t.Fatalf("HasWebhookEvent() = %v, %v; want true, nil", has, err)
	}

	pending, err := s.ListUnprocessedEvents(ctx, 10)
	if err != nil {
		t.Fatalf("ListUnprocessedEvents() error = %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("ListUnprocessedEvents() = %d events, want 2", len(pending))
	}

	if err := s.MarkEventProcessed(ctx, "e1", now); err != nil {
		t.Fatalf("MarkEventProcessed() error = %v", err)
	}
	if err := s.MarkEventProcessed(ctx, "e2", now); err != nil {
		t.Fatalf("MarkEventProcessed() error = %v", err)
	}
	pending, _ = s.ListUnprocessedEvents(ctx, 10)
	if len(pending) != 0 {
		t.Fatalf("ListUnprocessedEvents() after processing = %d, want 0", len(pending))
	}
}

func TestStore_ProcessedVideoExactlyOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	has, err := s.HasProcessedVideo(ctx, "u1", "v1")
	if err != nil || has {
		t.Fatalf("HasProcessedVideo() = %v, %v; want false, nil", has, err)
	}

	pv := &models.ProcessedVideo{
		ID: "pv1", UserID: "u1", VideoID: "v1", ChannelID: "c1",
		Source: models.EventSourceWebhook, AddedToPlaylist: true, ProcessedAt: now,
	}
	if err := s.RecordProcessedVideo(ctx, pv); err != nil {
		t.Fatalf("RecordProcessedVideo() error = %v", err)
	}

	has, err = s.HasProcessedVideo(ctx, "u1", "v1")
	if err != nil || !has {
		t.Fatalf("HasProcessedVideo() = %v, %v; want true, nil", has, err)
	}

	total, succeeded, err := s.CountProcessedVideos(ctx)
	if err != nil {
		t.Fatalf("CountProcessedVideos() error = %v", err)
	}
	if total != 1 || succeeded != 1 {
		t.Fatalf("CountProcessedVideos() = (%d, %d), want (1, 1)", total, succeeded)
	}
}

func TestStore_QuotaUsageAccumulates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	if err := s.RecordQuotaUsage(ctx, "youtube", 1, 100, 10000, 1000000, now); err != nil {
		t.Fatalf("RecordQuotaUsage() error = %v", err)
	}
	if err := s.RecordQuotaUsage(ctx, "youtube", 1, 50, 10000, 1000000, now.Add(time.Hour)); err != nil {
		t.Fatalf("RecordQuotaUsage() error = %v", err)
	}

	usage, err := s.GetQuotaUsage(ctx, now, "youtube")
	if err != nil {
		t.Fatalf("GetQuotaUsage() error = %v", err)
	}
	if usage.RequestsUsed != 2 || usage.CostUnitsUsed != 150 {
		t.Fatalf("GetQuotaUsage() = %+v, want RequestsUsed=2 CostUnitsUsed=150", usage)
	}
}
