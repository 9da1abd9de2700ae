// SPDX-License-Identifier: AGPL-3.0-or-later

package platform

import (
	"context"
	"sort"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/youtube/v3"

	"github.com/watchlaterhq/autowl/internal/logging"
)

// RefreshAccessToken exchanges a refresh token for a new access token.
// Spec.md §4.C calls this for every user whose User.NeedsRefresh is true.
// An Unauthorized result here (refresh token itself revoked) is the
// trigger for disabling automation on the user.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (*RefreshedToken, error) {
	seed := &oauth2.Token{RefreshToken: refreshToken}
	result, err := c.call(ctx, "refresh_access_token", func(ctx context.Context) (any, error) {
		return c.oauthConfig.TokenSource(ctx, seed).Token()
	})
	if err != nil {
		return nil, err
	}

	tok := result.(*oauth2.Token)
	refreshedRefreshToken := tok.RefreshToken
	if refreshedRefreshToken == "" {
		refreshedRefreshToken = refreshToken
	}
	return &RefreshedToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: refreshedRefreshToken,
		ExpiresAt:    tok.Expiry,
	}, nil
}

// Subscription is the trimmed view of a youtube.Subscription this system
// needs: which channel a user is subscribed to, for bootstrap and
// reconciliation.
type Subscription struct {
	ChannelID    string
	ChannelTitle string
}

// ListUserSubscriptions lists every channel the authenticated user is
// subscribed to on the platform, paging through all results. Spec.md §9
// notes this seeds the Subscription table's included set at bootstrap and
// on manual reconciliation.
func (c *Client) ListUserSubscriptions(ctx context.Context, accessToken string) ([]Subscription, error) {
	svc, err := c.serviceFor(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	var out []Subscription
	pageToken := ""
	for {
		result, err := c.call(ctx, "list_user_subscriptions", func(ctx context.Context) (any, error) {
			call := svc.Subscriptions.List([]string{"snippet"}).Mine(true).MaxResults(50).Context(ctx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			return call.Do()
		})
		if err != nil {
			return nil, err
		}

		resp := result.(*youtube.SubscriptionListResponse)
		for _, item := range resp.Items {
			out = append(out, Subscription{
				ChannelID:    item.Snippet.ResourceId.ChannelId,
				ChannelTitle: item.Snippet.Title,
			})
		}

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	return out, nil
}

// CreatePlaylist creates a new private playlist for the authenticated
// user, used once during bootstrap to establish User.ManagedPlaylistID.
func (c *Client) CreatePlaylist(ctx context.Context, accessToken, title, description string) (playlistID string, err error) {
	svc, err := c.serviceFor(ctx, accessToken)
	if err != nil {
		return "", err
	}

	result, err := c.call(ctx, "create_playlist", func(ctx context.Context) (any, error) {
		playlist := &youtube.Playlist{
			Snippet: &youtube.PlaylistSnippet{
				Title:       title,
				Description: description,
			},
			Status: &youtube.PlaylistStatus{PrivacyStatus: "private"},
		}
		return svc.Playlists.Insert([]string{"snippet", "status"}, playlist).Context(ctx).Do()
	})
	if err != nil {
		return "", err
	}
	return result.(*youtube.Playlist).Id, nil
}

// insertPlaylistItemBackoffAttempts and insertPlaylistItemBackoffBase
// implement spec.md §4.B's "wrapped in exponential-backoff retry (3
// attempts, 2^n seconds) for Transient" policy for insert_playlist_item.
const (
	insertPlaylistItemBackoffAttempts = 3
	insertPlaylistItemBackoffBase     = time.Second
)

// InsertPlaylistItem appends a video to a playlist. A call that fails as
// Transient (network, 5xx) is repeated, making at most
// insertPlaylistItemBackoffAttempts calls in all with a 2^n-second backoff
// (1s, then 2s) between them; Unauthorized propagates immediately without
// retry so the Fan-Out Processor's caller can let the next Token Refresh
// Loop tick handle it, per spec.md §4.G: "G does not directly trigger
// refresh." The returned attempt count is the number of calls actually
// made (1-indexed), so a caller can persist it as ProcessedVideo's
// retry-attempts field regardless of whether the final call succeeded.
func (c *Client) InsertPlaylistItem(ctx context.Context, accessToken, playlistID, videoID string) (attempts int, err error) {
	svc, err := c.serviceFor(ctx, accessToken)
	if err != nil {
		return 0, err
	}

	var lastErr error
	for attempt := 0; attempt < insertPlaylistItemBackoffAttempts; attempt++ {
		attempts = attempt + 1
		_, err := c.call(ctx, "insert_playlist_item", func(ctx context.Context) (any, error) {
			item := &youtube.PlaylistItem{
				Snippet: &youtube.PlaylistItemSnippet{
					PlaylistId: playlistID,
					ResourceId: &youtube.ResourceId{
						Kind:    "youtube#video",
						VideoId: videoID,
					},
				},
			}
			return svc.PlaylistItems.Insert([]string{"snippet"}, item).Context(ctx).Do()
		})
		if err == nil {
			return attempts, nil
		}
		lastErr = err

		if !IsClass(err, ClassTransient) {
			return attempts, err
		}

		if attempt < insertPlaylistItemBackoffAttempts-1 {
			backoff := time.Duration(1<<uint(attempt)) * insertPlaylistItemBackoffBase
			logging.Warn().Str("video_id", videoID).Int("attempt", attempt+1).Dur("backoff", backoff).
				Msg("platform: insert_playlist_item transient failure, retrying")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return attempts, ctx.Err()
			}
		}
	}
	return attempts, lastErr
}

// RecentVideo is the trimmed view of a search result this system needs
// from search_channel_recent.
type RecentVideo struct {
	VideoID     string
	Title       string
	PublishedAt time.Time
}

// SearchChannelRecent lists a channel's most recently published videos,
// oldest first, used by the Fallback Poller (spec.md §4.F) to discover videos a missed
// or not-yet-active WebSub subscription didn't push.
func (c *Client) SearchChannelRecent(ctx context.Context, accessToken, channelID string, publishedAfter time.Time, maxResults int64) ([]RecentVideo, error) {
	svc, err := c.serviceFor(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	result, err := c.call(ctx, "search_channel_recent", func(ctx context.Context) (any, error) {
		call := svc.Search.List([]string{"snippet"}).
			ChannelId(channelID).
			Type("video").
			Order("date").
			PublishedAfter(publishedAfter.Format(time.RFC3339)).
			MaxResults(maxResults).
			Context(ctx)
		return call.Do()
	})
	if err != nil {
		return nil, err
	}

	resp := result.(*youtube.SearchListResponse)
	out := make([]RecentVideo, 0, len(resp.Items))
	for _, item := range resp.Items {
		published, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
		if err != nil {
			continue
		}
		out = append(out, RecentVideo{
			VideoID:     item.Id.VideoId,
			Title:       item.Snippet.Title,
			PublishedAt: published,
		})
	}
	// Order("date") returns newest first; callers walk the results oldest
	// first.
	sort.SliceStable(out, func(i, j int) bool { return out[i].PublishedAt.Before(out[j].PublishedAt) })
	return out, nil
}
