package spotify

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const testBaseURL = "https://api.spotify.com/v1"

func newTestClient(t *testing.T) *Client {
	t.Helper()
	src := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: "test-token",
		Expiry:      time.Now().Add(time.Hour),
	})
	return NewClientWithBaseURL(context.Background(), src, testBaseURL)
}

func setupMock(t *testing.T) {
	t.Helper()
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)
}

func TestCurrentlyPlaying(t *testing.T) {
	setupMock(t)

	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/me/player",
		httpmock.NewStringResponder(http.StatusOK, `{
			"is_playing": true,
			"progress_ms": 12345,
			"device": {"id": "dev1", "name": "Office speaker", "type": "Speaker", "is_active": true},
			"context": {"type": "playlist", "uri": "spotify:playlist:pl1"},
			"item": {
				"id": "t1",
				"uri": "spotify:track:t1",
				"name": "Tell Your World",
				"duration_ms": 255000,
				"artists": [{"id": "ar1", "name": "livetune"}, {"id": "ar2", "name": "Hatsune Miku"}],
				"album": {"id": "al1", "name": "Tell Your World EP", "release_date": "2012-03-12"}
			}
		}`))

	state, err := newTestClient(t).CurrentlyPlaying(context.Background())
	require.NoError(t, err)
	require.NotNil(t, state)

	assert.True(t, state.IsPlaying)
	assert.Equal(t, 12345, state.ProgressMS)
	require.NotNil(t, state.Track)
	assert.Equal(t, "t1", state.Track.ID)
	assert.Len(t, state.Track.Artists, 2)
	assert.Equal(t, "Hatsune Miku", state.Track.Artists[1].Name)
	require.NotNil(t, state.Context)
	assert.Equal(t, "playlist", state.Context.Type)
	require.NotNil(t, state.Device)
	assert.Equal(t, "Office speaker", state.Device.Name)
	assert.True(t, state.DeviceActive())
	assert.False(t, state.FetchedAt.IsZero())
}

func TestCurrentlyPlayingNothing(t *testing.T) {
	setupMock(t)

	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/me/player",
		httpmock.NewStringResponder(http.StatusNoContent, ""))

	state, err := newTestClient(t).CurrentlyPlaying(context.Background())
	require.NoError(t, err)
	assert.Nil(t, state)
	assert.False(t, state.DeviceActive())
}

func TestCurrentlyPlayingRateLimited(t *testing.T) {
	setupMock(t)

	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/me/player",
		func(req *http.Request) (*http.Response, error) {
			resp := httpmock.NewStringResponse(http.StatusTooManyRequests, "")
			resp.Header.Set("Retry-After", "17")
			resp.Request = req
			return resp, nil
		})

	_, err := newTestClient(t).CurrentlyPlaying(context.Background())
	require.Error(t, err)

	retryAfter, ok := IsRateLimit(err)
	require.True(t, ok)
	assert.Equal(t, 17*time.Second, retryAfter)
}

func TestSkipToNext(t *testing.T) {
	setupMock(t)

	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/me/player/next",
		httpmock.NewStringResponder(http.StatusNoContent, ""))

	require.NoError(t, newTestClient(t).SkipToNext(context.Background()))
}

func TestListUserPlaylistsPagination(t *testing.T) {
	setupMock(t)

	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/me/playlists",
		func(req *http.Request) (*http.Response, error) {
			if req.URL.Query().Get("offset") == "50" {
				resp, err := httpmock.NewJsonResponse(http.StatusOK, map[string]any{
					"items": []map[string]any{
						{"id": "pl2", "uri": "spotify:playlist:pl2", "name": "Blocked AI Tracks",
							"owner": map[string]any{"id": "user1"}},
					},
					"next": nil,
				})
				if resp != nil {
					resp.Request = req
				}
				return resp, err
			}
			resp, err := httpmock.NewJsonResponse(http.StatusOK, map[string]any{
				"items": []map[string]any{
					{"id": "pl1", "uri": "spotify:playlist:pl1", "name": "Daily Mix",
						"owner": map[string]any{"id": "someone-else"}},
				},
				"next": testBaseURL + "/me/playlists?limit=50&offset=50",
			})
			if resp != nil {
				resp.Request = req
			}
			return resp, err
		})

	playlists, err := newTestClient(t).ListUserPlaylists(context.Background())
	require.NoError(t, err)

	require.Len(t, playlists, 2)
	assert.Equal(t, "pl1", playlists[0].ID)
	assert.Equal(t, "someone-else", playlists[0].OwnerID)
	assert.Equal(t, "pl2", playlists[1].ID)
	assert.Equal(t, "user1", playlists[1].OwnerID)
}

func TestCreatePlaylist(t *testing.T) {
	setupMock(t)

	httpmock.RegisterResponder(http.MethodPost, testBaseURL+"/users/user1/playlists",
		httpmock.NewStringResponder(http.StatusCreated,
			`{"id": "pl9", "uri": "spotify:playlist:pl9", "name": "Blocked AI Tracks"}`))

	playlist, err := newTestClient(t).CreatePlaylist(context.Background(),
		"user1", "Blocked AI Tracks", "Tracks skipped by trackguard")
	require.NoError(t, err)

	assert.Equal(t, "pl9", playlist.ID)
	assert.Equal(t, "Blocked AI Tracks", playlist.Name)
}

func TestRemoveTracksFromPlaylist(t *testing.T) {
	setupMock(t)

	httpmock.RegisterResponder(http.MethodDelete, testBaseURL+"/playlists/pl1/tracks",
		httpmock.NewStringResponder(http.StatusOK, `{"snapshot_id": "snap"}`))

	err := newTestClient(t).RemoveTracksFromPlaylist(context.Background(),
		"pl1", []string{"spotify:track:t1"})
	require.NoError(t, err)
}
