package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tlahtinen/trackguard/internal/spotify"
)

func TestExecuteSkipRecordsSuccess(t *testing.T) {
	player := &fakePlayer{}
	store := &fakeStore{}
	ex := NewActionExecutor(testSettings(), player, store, nil)

	ex.Execute(context.Background(), playingState("t1"), artificialDecision("ar1"))

	assert.Equal(t, 1, player.skipCalls)
	require.Len(t, store.actions, 1)
	assert.Equal(t, ActionSkip, store.actions[0].Action)
	assert.Equal(t, "success", store.actions[0].Status)
	assert.Equal(t, 1, store.actions[0].Attempts)
	assert.Equal(t, "dec-ar1", store.actions[0].DecisionID)
}

func TestExecuteRetriesRateLimitedSkip(t *testing.T) {
	player := &fakePlayer{
		skipErrs: []error{
			&spotify.RateLimitError{RetryAfter: time.Millisecond},
			&spotify.RateLimitError{RetryAfter: time.Millisecond},
		},
	}
	store := &fakeStore{}
	ex := NewActionExecutor(testSettings(), player, store, nil)

	ex.Execute(context.Background(), playingState("t1"), artificialDecision("ar1"))

	assert.Equal(t, 3, player.skipCalls)
	require.Len(t, store.actions, 1)
	assert.Equal(t, "success", store.actions[0].Status)
	assert.Equal(t, 3, store.actions[0].Attempts)
}

func TestExecuteRetriesTransientErrorsWithBackoff(t *testing.T) {
	old := actionRetryDelay
	actionRetryDelay = time.Millisecond
	t.Cleanup(func() { actionRetryDelay = old })

	player := &fakePlayer{
		skipErrs: []error{
			errors.New("network hiccup"),
			errors.New("network hiccup"),
		},
	}
	store := &fakeStore{}
	ex := NewActionExecutor(testSettings(), player, store, nil)

	start := time.Now()
	ex.Execute(context.Background(), playingState("t1"), artificialDecision("ar1"))

	assert.Equal(t, 3, player.skipCalls)
	// Two retries pause for the delay, not merely spin.
	assert.GreaterOrEqual(t, time.Since(start), 3*time.Millisecond)
	require.Len(t, store.actions, 1)
	assert.Equal(t, "success", store.actions[0].Status)
	assert.Equal(t, 3, store.actions[0].Attempts)
}

func TestExecuteRecordsExhaustedRetries(t *testing.T) {
	player := &fakePlayer{
		skipErrs: []error{
			&spotify.RateLimitError{RetryAfter: time.Millisecond},
			&spotify.RateLimitError{RetryAfter: time.Millisecond},
			&spotify.RateLimitError{RetryAfter: time.Millisecond},
		},
	}
	store := &fakeStore{}
	ex := NewActionExecutor(testSettings(), player, store, nil)

	ex.Execute(context.Background(), playingState("t1"), artificialDecision("ar1"))

	require.Len(t, store.actions, 1)
	assert.Equal(t, "failed", store.actions[0].Status)
	assert.Equal(t, 3, store.actions[0].Attempts)
	assert.NotEmpty(t, store.actions[0].Error)
}

func TestRemoveOnlyTouchesOwnedPlaylists(t *testing.T) {
	settings := testSettings()
	settings.Monitor.AutoSkip = false
	settings.Monitor.RemoveFromUserPlaylists = true

	player := &fakePlayer{
		playlists: []spotify.Playlist{
			{ID: "pl1", Name: "Daily Mix", OwnerID: "someone-else"},
		},
	}
	ex := NewActionExecutor(settings, player, &fakeStore{}, nil)

	ex.Execute(context.Background(), playingState("t1"), artificialDecision("ar1"))
	assert.Equal(t, 0, player.removeCalls, "other people's playlists are off limits")

	player.playlists = []spotify.Playlist{
		{ID: "pl1", Name: "My Mix", OwnerID: "user1"},
	}
	ex.Execute(context.Background(), playingState("t1"), artificialDecision("ar1"))
	assert.Equal(t, 1, player.removeCalls)
	assert.Equal(t, []string{"pl1"}, player.removedFrom)
}

func TestRemoveSkipsNonPlaylistContext(t *testing.T) {
	settings := testSettings()
	settings.Monitor.AutoSkip = false
	settings.Monitor.RemoveFromUserPlaylists = true

	player := &fakePlayer{}
	ex := NewActionExecutor(settings, player, &fakeStore{}, nil)

	state := playingState("t1")
	state.Context = &spotify.PlaybackContext{Type: "album", URI: "spotify:album:al1"}
	ex.Execute(context.Background(), state, artificialDecision("ar1"))

	assert.Equal(t, 0, player.removeCalls)
}

func TestBlockedPlaylistCreatedOnce(t *testing.T) {
	settings := testSettings()
	settings.Monitor.AutoSkip = false
	settings.Monitor.BlockedPlaylist = "Blocked AI Tracks"

	player := &fakePlayer{}
	store := &fakeStore{}
	ex := NewActionExecutor(settings, player, store, nil)

	ex.Execute(context.Background(), playingState("t1"), artificialDecision("ar1"))
	ex.Execute(context.Background(), playingState("t2"), artificialDecision("ar1"))

	assert.Equal(t, 1, player.createCalls, "playlist id is cached after creation")
	assert.Equal(t, 2, player.addCalls)
	assert.Equal(t, []string{"blocked-pl", "blocked-pl"}, player.addedTo)
	require.Len(t, store.actions, 2)
	assert.Equal(t, ActionAddToBlocked, store.actions[0].Action)
}

func TestBlockedPlaylistAddIsIdempotent(t *testing.T) {
	settings := testSettings()
	settings.Monitor.AutoSkip = false
	settings.Monitor.BlockedPlaylist = "Blocked AI Tracks"

	player := &fakePlayer{}
	store := &fakeStore{}
	ex := NewActionExecutor(settings, player, store, nil)

	ex.Execute(context.Background(), playingState("t1"), artificialDecision("ar1"))
	ex.Execute(context.Background(), playingState("t1"), artificialDecision("ar1"))

	assert.Equal(t, 1, player.addCalls, "repeat collection of the same track is a no-op")
	// Both attempts still land in the audit trail.
	require.Len(t, store.actions, 2)
	assert.Equal(t, "success", store.actions[1].Status)
}

func TestBlockedPlaylistReusedWhenPresent(t *testing.T) {
	settings := testSettings()
	settings.Monitor.AutoSkip = false
	settings.Monitor.BlockedPlaylist = "Blocked AI Tracks"

	player := &fakePlayer{
		playlists: []spotify.Playlist{
			{ID: "existing-pl", Name: "Blocked AI Tracks", OwnerID: "user1"},
		},
	}
	ex := NewActionExecutor(settings, player, &fakeStore{}, nil)

	ex.Execute(context.Background(), playingState("t1"), artificialDecision("ar1"))

	assert.Equal(t, 0, player.createCalls)
	assert.Equal(t, []string{"existing-pl"}, player.addedTo)
}
