// SPDX-License-Identifier: AGPL-3.0-or-later

package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/watchlaterhq/autowl/internal/logging"
	"github.com/watchlaterhq/autowl/internal/metrics"
	"github.com/watchlaterhq/autowl/internal/models"
)

// MaxBodyBytes caps the notification body the receiver will read. Spec.md
// §4.E: "cap at a generous size, e.g. 1 MiB."
const MaxBodyBytes = 1 << 20

// EventStore is the subset of *store.Store the receiver needs.
type EventStore interface {
	InsertWebhookEvent(ctx context.Context, ev *models.WebhookEvent) error
	ListSubscriptionsByChannel(ctx context.Context, channelID string) ([]*models.Subscription, error)
}

// Handler serves the hub verification GET and notification POST.
type Handler struct {
	Store        EventStore
	PlatformHost string
	Now          func() time.Time
}

// New builds a Handler. platformHost is matched against hub.topic on
// verification GETs (spec.md §4.E: "topic absent-or-contains platform
// host").
func New(store EventStore, platformHost string) *Handler {
	return &Handler{Store: store, PlatformHost: platformHost, Now: time.Now}
}

// HandleVerify serves GET /webhook: hub subscription/unsubscription
// verification. Spec.md §4.E and §8.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	challenge := q.Get("hub.challenge")
	topic := q.Get("hub.topic")

	if mode == "" || challenge == "" {
		http.Error(w, "missing hub.mode or hub.challenge", http.StatusBadRequest)
		return
	}
	if topic != "" && !strings.Contains(topic, h.PlatformHost) {
		http.Error(w, "hub.topic does not match platform host", http.StatusBadRequest)
		return
	}

	metrics.RecordWebhookChallenge()
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(challenge))
}

// HandleNotify serves POST /webhook: a hub push notification. Spec.md
// §4.E: parsing and insertion MUST be synchronous with the HTTP response
// so a 5xx reply triggers the hub's at-least-once retry.
func (h *Handler) HandleNotify(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	if len(body) == 0 {
		http.Error(w, "empty body", http.StatusBadRequest)
		return
	}
	if len(body) > MaxBodyBytes {
		http.Error(w, "body too large", http.StatusBadRequest)
		return
	}

	entry, err := parseAtomFeed(body)
	if err != nil {
		logging.Warn().Err(err).Msg("webhook: malformed atom body")
		metrics.RecordWebhookEvent("malformed")
		http.Error(w, "malformed xml", http.StatusInternalServerError)
		return
	}
	if entry.VideoID == "" || entry.ChannelID == "" {
		logging.Warn().Msg("webhook: notification missing video or channel id")
		metrics.RecordWebhookEvent("malformed")
		http.Error(w, "missing video or channel id", http.StatusInternalServerError)
		return
	}

	if !h.verifySignature(r, entry.ChannelID, body) {
		logging.Warn().Str("channel_id", entry.ChannelID).Msg("webhook: signature verification failed")
		metrics.RecordWebhookEvent("unverified")
		http.Error(w, "signature verification failed", http.StatusInternalServerError)
		return
	}

	ev := &models.WebhookEvent{
		ID:         uuid.NewString(),
		ChannelID:  entry.ChannelID,
		VideoID:    entry.VideoID,
		Title:      entry.Title,
		Source:     models.EventSourceWebhook,
		ReceivedAt: h.Now(),
		RawPayload: body,
	}
	if err := h.Store.InsertWebhookEvent(r.Context(), ev); err != nil {
		logging.Error().Err(err).Str("channel_id", entry.ChannelID).Str("video_id", entry.VideoID).Msg("webhook: failed to record event")
		metrics.RecordWebhookEvent("malformed")
		http.Error(w, "failed to record event", http.StatusInternalServerError)
		return
	}

	metrics.RecordWebhookEvent("accepted")
	w.WriteHeader(http.StatusOK)
}

// verifySignature checks X-Hub-Signature-256 (or the legacy
// X-Hub-Signature) against every subscription for this channel that has a
// hub secret configured. Verification is skipped only when no such
// subscription has a secret; otherwise a notification carrying neither
// header fails. Spec.md §9's supplemented HMAC feature: verification
// failure is treated as Malformed (5xx, forces hub retry).
func (h *Handler) verifySignature(r *http.Request, channelID string, body []byte) bool {
	sig256 := r.Header.Get("X-Hub-Signature-256")
	sig1 := r.Header.Get("X-Hub-Signature")

	subs, err := h.Store.ListSubscriptionsByChannel(r.Context(), channelID)
	if err != nil {
		logging.Error().Err(err).Str("channel_id", channelID).Msg("webhook: failed to look up subscriptions for signature check")
		return false
	}

	var secrets []string
	for _, sub := range subs {
		if sub.HubSecret != "" {
			secrets = append(secrets, sub.HubSecret)
		}
	}
	if len(secrets) == 0 {
		return true
	}
	if sig256 == "" && sig1 == "" {
		return false
	}

	for _, secret := range secrets {
		if sig256 != "" && matchesHMAC(sig256, "sha256=", sha256.New, secret, body) {
			return true
		}
		if sig1 != "" && matchesHMAC(sig1, "sha1=", sha1.New, secret, body) {
			return true
		}
	}
	return false
}

func matchesHMAC(header, prefix string, newHash func() hash.Hash, secret string, body []byte) bool {
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	want, err := hex.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return false
	}
	mac := hmac.New(newHash, []byte(secret))
	mac.Write(body)
	got := mac.Sum(nil)
	return hmac.Equal(want, got)
}
