// SPDX-License-Identifier: AGPL-3.0-or-later

package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/watchlaterhq/autowl/internal/models"
	"github.com/watchlaterhq/autowl/internal/platform"
	"github.com/watchlaterhq/autowl/internal/vault"
)

type fakeBootstrapStore struct {
	user             *models.User
	subs             []*models.Subscription
	managedPlaylists map[string]string
	created          []*models.Subscription
	included         map[string]bool
}

func newFakeBootstrapStore(user *models.User, subs ...*models.Subscription) *fakeBootstrapStore {
	included := map[string]bool{}
	for _, s := range subs {
		included[s.ID] = s.Included
	}
	return &fakeBootstrapStore{
		user:             user,
		subs:             subs,
		managedPlaylists: map[string]string{},
		included:         included,
	}
}

func (f *fakeBootstrapStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	return f.user, nil
}

func (f *fakeBootstrapStore) SetManagedPlaylist(ctx context.Context, id, playlistID string, now time.Time) error {
	f.managedPlaylists[id] = playlistID
	f.user.ManagedPlaylistID = &playlistID
	return nil
}

func (f *fakeBootstrapStore) ListSubscriptionsByUser(ctx context.Context, userID string) ([]*models.Subscription, error) {
	return f.subs, nil
}

func (f *fakeBootstrapStore) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	f.created = append(f.created, sub)
	f.subs = append(f.subs, sub)
	f.included[sub.ID] = sub.Included
	return nil
}

func (f *fakeBootstrapStore) SetSubscriptionIncluded(ctx context.Context, id string, included bool) error {
	f.included[id] = included
	for _, s := range f.subs {
		if s.ID == id {
			s.Included = included
		}
	}
	return nil
}

type fakeBootstrapPlatform struct {
	subs           []platform.Subscription
	playlistID     string
	createPlaylist bool
}

func (f *fakeBootstrapPlatform) ListUserSubscriptions(ctx context.Context, accessToken string) ([]platform.Subscription, error) {
	return f.subs, nil
}

func (f *fakeBootstrapPlatform) CreatePlaylist(ctx context.Context, accessToken, title, description string) (string, error) {
	f.createPlaylist = true
	return f.playlistID, nil
}

type fakeWebSubManager struct {
	ticked bool
}

func (f *fakeWebSubManager) Tick(ctx context.Context) error {
	f.ticked = true
	return nil
}

func newTestVault(t *testing.T) *vault.Vault {
	t.Helper()
	v, err := vault.NewFromSeed([]byte("test-seed-material-not-for-production-use"))
	if err != nil {
		t.Fatalf("NewFromSeed() error = %v", err)
	}
	return v
}

func testUser(t *testing.T, v *vault.Vault, id string) *models.User {
	t.Helper()
	enc, err := v.Encrypt([]byte("access-token-" + id))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	return &models.User{ID: id, EncryptedAccessToken: enc}
}

func TestSync_CreatesPlaylistOnFirstBootstrap(t *testing.T) {
	v := newTestVault(t)
	user := testUser(t, v, "u1")
	store := newFakeBootstrapStore(user)
	client := &fakeBootstrapPlatform{playlistID: "PL1"}
	webSub := &fakeWebSubManager{}

	s := New(store, client, v, webSub)
	result, err := s.Sync(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if !client.createPlaylist {
		t.Fatal("expected CreatePlaylist to be called")
	}
	if result.ManagedPlaylistID != "PL1" {
		t.Fatalf("ManagedPlaylistID = %q, want PL1", result.ManagedPlaylistID)
	}
	if !webSub.ticked {
		t.Fatal("expected a post-sync WebSub tick")
	}
}

func TestSync_SkipsPlaylistCreationWhenAlreadySet(t *testing.T) {
	v := newTestVault(t)
	user := testUser(t, v, "u1")
	existing := "PL-EXISTING"
	user.ManagedPlaylistID = &existing
	store := newFakeBootstrapStore(user)
	client := &fakeBootstrapPlatform{playlistID: "PL-NEW"}

	s := New(store, client, v, &fakeWebSubManager{})
	result, err := s.Sync(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if client.createPlaylist {
		t.Fatal("expected CreatePlaylist not to be called when a managed playlist already exists")
	}
	if result.ManagedPlaylistID != existing {
		t.Fatalf("ManagedPlaylistID = %q, want %q", result.ManagedPlaylistID, existing)
	}
}

func TestSync_CreatesNewSubscriptionForUnseenChannel(t *testing.T) {
	v := newTestVault(t)
	user := testUser(t, v, "u1")
	playlist := "PL1"
	user.ManagedPlaylistID = &playlist
	store := newFakeBootstrapStore(user)
	client := &fakeBootstrapPlatform{subs: []platform.Subscription{{ChannelID: "CH1", ChannelTitle: "Channel One"}}}

	s := New(store, client, v, &fakeWebSubManager{})
	result, err := s.Sync(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if result.Added != 1 {
		t.Fatalf("Added = %d, want 1", result.Added)
	}
	if len(store.created) != 1 || store.created[0].ChannelID != "CH1" {
		t.Fatalf("created = %+v, want one subscription for CH1", store.created)
	}
}

func TestSync_ReincludesPreviouslyExcludedChannel(t *testing.T) {
	v := newTestVault(t)
	user := testUser(t, v, "u1")
	playlist := "PL1"
	user.ManagedPlaylistID = &playlist
	excluded := &models.Subscription{ID: "s1", UserID: "u1", ChannelID: "CH1", Title: "Channel One", Included: false}
	store := newFakeBootstrapStore(user, excluded)
	client := &fakeBootstrapPlatform{subs: []platform.Subscription{{ChannelID: "CH1", ChannelTitle: "Channel One"}}}

	s := New(store, client, v, &fakeWebSubManager{})
	result, err := s.Sync(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if result.Added != 1 {
		t.Fatalf("Added = %d, want 1 (re-included)", result.Added)
	}
	if !store.included["s1"] {
		t.Fatal("expected subscription s1 to be re-included")
	}
	if len(store.created) != 0 {
		t.Fatal("expected no new subscription row for a channel that already had one")
	}
}

func TestSync_ExcludesChannelNoLongerReportedByPlatform(t *testing.T) {
	v := newTestVault(t)
	user := testUser(t, v, "u1")
	playlist := "PL1"
	user.ManagedPlaylistID = &playlist
	stillThere := &models.Subscription{ID: "s1", UserID: "u1", ChannelID: "CH1", Included: true}
	dropped := &models.Subscription{ID: "s2", UserID: "u1", ChannelID: "CH2", Included: true}
	store := newFakeBootstrapStore(user, stillThere, dropped)
	client := &fakeBootstrapPlatform{subs: []platform.Subscription{{ChannelID: "CH1", ChannelTitle: "Channel One"}}}

	s := New(store, client, v, &fakeWebSubManager{})
	result, err := s.Sync(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if result.Removed != 1 {
		t.Fatalf("Removed = %d, want 1", result.Removed)
	}
	if store.included["s1"] != true {
		t.Fatal("expected s1 to remain included")
	}
	if store.included["s2"] != false {
		t.Fatal("expected s2 to be excluded, not deleted")
	}
}
