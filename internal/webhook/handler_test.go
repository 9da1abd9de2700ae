// SPDX-License-Identifier: AGPL-3.0-or-later

package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/watchlaterhq/autowl/internal/models"
)

type fakeEventStore struct {
	events []*models.WebhookEvent
	subs   map[string][]*models.Subscription
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{subs: map[string][]*models.Subscription{}}
}

func (f *fakeEventStore) InsertWebhookEvent(ctx context.Context, ev *models.WebhookEvent) error {
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeEventStore) ListSubscriptionsByChannel(ctx context.Context, channelID string) ([]*models.Subscription, error) {
	return f.subs[channelID], nil
}

const atomBody = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:yt="http://www.youtube.com/xml/schemas/2015">
  <entry>
    <yt:videoId>vid123</yt:videoId>
    <yt:channelId>CH1</yt:channelId>
    <title>New Upload</title>
  </entry>
</feed>`

func TestHandleVerify_EchoesChallenge(t *testing.T) {
	h := New(newFakeEventStore(), "youtube.com")
	req := httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.challenge=abc123&hub.topic=https://www.youtube.com/xml/feeds/videos.xml?channel_id=CH1", nil)
	rec := httptest.NewRecorder()

	h.HandleVerify(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "abc123" {
		t.Fatalf("body = %q, want %q", rec.Body.String(), "abc123")
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/plain" {
		t.Fatalf("content-type = %q, want text/plain", ct)
	}
}

func TestHandleVerify_MissingChallenge(t *testing.T) {
	h := New(newFakeEventStore(), "youtube.com")
	req := httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe", nil)
	rec := httptest.NewRecorder()

	h.HandleVerify(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleVerify_TopicMismatch(t *testing.T) {
	h := New(newFakeEventStore(), "youtube.com")
	req := httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.challenge=abc&hub.topic=https://evil.example.com/feed", nil)
	rec := httptest.NewRecorder()

	h.HandleVerify(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleNotify_Success(t *testing.T) {
	store := newFakeEventStore()
	h := New(store, "youtube.com")
	h.Now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(atomBody))
	rec := httptest.NewRecorder()

	h.HandleNotify(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	if len(store.events) != 1 {
		t.Fatalf("events recorded = %d, want 1", len(store.events))
	}
	ev := store.events[0]
	if ev.VideoID != "vid123" || ev.ChannelID != "CH1" || ev.Title != "New Upload" {
		t.Fatalf("event = %+v, want video vid123 on channel CH1", ev)
	}
	if ev.Source != models.EventSourceWebhook {
		t.Fatalf("event source = %q, want Webhook", ev.Source)
	}
}

func TestHandleNotify_EmptyBody(t *testing.T) {
	h := New(newFakeEventStore(), "youtube.com")
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(""))
	rec := httptest.NewRecorder()

	h.HandleNotify(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleNotify_MalformedXML(t *testing.T) {
	h := New(newFakeEventStore(), "youtube.com")
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("<not-xml"))
	rec := httptest.NewRecorder()

	h.HandleNotify(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 (forces hub retry)", rec.Code)
	}
}

func TestHandleNotify_MissingIDs(t *testing.T) {
	store := newFakeEventStore()
	h := New(store, "youtube.com")
	body := `<feed xmlns="http://www.w3.org/2005/Atom"><entry><title>no ids</title></entry></feed>`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.HandleNotify(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if len(store.events) != 0 {
		t.Fatal("expected no row written when ids are missing")
	}
}

func TestHandleNotify_SignatureVerificationFailure(t *testing.T) {
	store := newFakeEventStore()
	store.subs["CH1"] = []*models.Subscription{{ID: "s1", ChannelID: "CH1", HubSecret: "topsecret"}}
	h := New(store, "youtube.com")

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(atomBody))
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")
	rec := httptest.NewRecorder()

	h.HandleNotify(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 on signature mismatch", rec.Code)
	}
	if len(store.events) != 0 {
		t.Fatal("expected no row written on signature mismatch")
	}
}

func TestHandleNotify_SignatureVerificationSuccess(t *testing.T) {
	store := newFakeEventStore()
	secret := "topsecret"
	store.subs["CH1"] = []*models.Subscription{{ID: "s1", ChannelID: "CH1", HubSecret: secret}}
	h := New(store, "youtube.com")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(atomBody))
	sig := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader([]byte(atomBody)))
	req.Header.Set("X-Hub-Signature-256", sig)
	rec := httptest.NewRecorder()

	h.HandleNotify(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	if len(store.events) != 1 {
		t.Fatal("expected the event to be recorded once signature verifies")
	}
}
