package monitor

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/tlahtinen/trackguard/internal/classify"
	"github.com/tlahtinen/trackguard/internal/conf"
	"github.com/tlahtinen/trackguard/internal/datastore"
	"github.com/tlahtinen/trackguard/internal/observability/metrics"
	"github.com/tlahtinen/trackguard/internal/spotify"
)

// Action names recorded with every executed playback action.
const (
	ActionSkip               = "skip"
	ActionRemoveFromPlaylist = "remove_from_playlist"
	ActionAddToBlocked       = "add_to_blocked"
)

// actionRetryDelay paces retries of failed provider actions that were not
// rate limited. Variable so tests can shorten it.
var actionRetryDelay = 500 * time.Millisecond

// ActionExecutor runs the configured playback actions for an actionable
// decision. Action failures are recorded and logged, never propagated, so
// the polling loop keeps running.
type ActionExecutor struct {
	settings *conf.Settings
	player   Player
	store    datastore.Interface
	metrics  *metrics.MonitorMetrics

	mu                sync.Mutex
	userID            string
	blockedPlaylistID string
	blockedTracks     map[string]bool // track URIs already collected, adding again is a no-op
}

// NewActionExecutor creates an executor over the provider client.
func NewActionExecutor(settings *conf.Settings, player Player, store datastore.Interface, m *metrics.MonitorMetrics) *ActionExecutor {
	return &ActionExecutor{
		settings:      settings,
		player:        player,
		store:         store,
		metrics:       m,
		blockedTracks: make(map[string]bool),
	}
}

// Execute runs every enabled action for the playing track, in order: skip,
// removal from the user owned context playlist, collection into the blocked
// playlist.
func (ex *ActionExecutor) Execute(ctx context.Context, state *spotify.PlaybackState, decision *classify.Decision) {
	track := state.Track
	cfg := ex.settings.Monitor

	if cfg.AutoSkip {
		ex.run(ctx, ActionSkip, track, decision, func(ctx context.Context) error {
			return ex.player.SkipToNext(ctx)
		})
	}
	if cfg.RemoveFromUserPlaylists {
		if playlistID := ex.ownedContextPlaylist(ctx, state); playlistID != "" {
			ex.run(ctx, ActionRemoveFromPlaylist, track, decision, func(ctx context.Context) error {
				return ex.player.RemoveTracksFromPlaylist(ctx, playlistID, []string{track.URI})
			})
		}
	}
	if cfg.BlockedPlaylist != "" {
		ex.run(ctx, ActionAddToBlocked, track, decision, func(ctx context.Context) error {
			playlistID, err := ex.ensureBlockedPlaylist(ctx)
			if err != nil {
				return err
			}
			ex.mu.Lock()
			done := ex.blockedTracks[track.URI]
			ex.mu.Unlock()
			if done {
				return nil
			}
			if err := ex.player.AddTracksToPlaylist(ctx, playlistID, []string{track.URI}); err != nil {
				return err
			}
			ex.mu.Lock()
			ex.blockedTracks[track.URI] = true
			ex.mu.Unlock()
			return nil
		})
	}
}

// run executes one action with bounded retries and records the outcome.
func (ex *ActionExecutor) run(ctx context.Context, action string, track *spotify.Track, decision *classify.Decision, fn func(context.Context) error) {
	start := time.Now()
	attempts := ex.settings.Monitor.ActionRetries
	if attempts < 1 {
		attempts = 1
	}

	var err error
	attempt := 0
	for attempt < attempts {
		attempt++
		if attempt > 1 {
			ex.metrics.RecordActionRetry(action)
		}
		err = fn(ctx)
		if err == nil || attempt == attempts {
			break
		}
		// Rate limits wait out the mandated window; other provider errors
		// back off a growing beat before the next attempt.
		wait := time.Duration(attempt) * actionRetryDelay
		if retryAfter, ok := spotify.IsRateLimit(err); ok {
			wait = retryAfter
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(wait):
			continue
		}
		break
	}

	status := "success"
	if err != nil {
		status = "failed"
		logger.Error("playback action failed",
			"action", action,
			"track_id", track.ID,
			"attempts", attempt,
			"error", err)
	} else {
		logger.Info("playback action executed",
			"action", action,
			"track_id", track.ID,
			"track", track.Name)
	}

	ex.metrics.RecordAction(action, status)
	ex.metrics.RecordActionDuration(action, time.Since(start).Seconds())
	ex.record(action, status, attempt, err, track, decision)
}

// record appends the action outcome to the datastore.
func (ex *ActionExecutor) record(action, status string, attempts int, err error, track *spotify.Track, decision *classify.Decision) {
	if ex.store == nil {
		return
	}
	row := &datastore.TrackAction{
		TrackID:    track.ID,
		ArtistID:   decision.Artist.ID,
		DecisionID: decision.ID,
		Action:     action,
		Status:     status,
		Attempts:   attempts,
	}
	if err != nil {
		row.Error = err.Error()
	}
	if saveErr := ex.store.SaveAction(row); saveErr != nil {
		logger.Error("failed to save action record", "action", action, "error", saveErr)
	}
}

// ownedContextPlaylist returns the id of the playlist the track is playing
// from, but only when the playlist belongs to the authenticated user. Other
// people's playlists are never edited.
func (ex *ActionExecutor) ownedContextPlaylist(ctx context.Context, state *spotify.PlaybackState) string {
	if state.Context == nil || state.Context.Type != "playlist" {
		return ""
	}
	playlistID := playlistIDFromURI(state.Context.URI)
	if playlistID == "" {
		return ""
	}

	userID, err := ex.currentUserID(ctx)
	if err != nil {
		logger.Error("failed to resolve current user", "error", err)
		return ""
	}
	playlists, err := ex.player.ListUserPlaylists(ctx)
	if err != nil {
		logger.Error("failed to list playlists", "error", err)
		return ""
	}
	for _, playlist := range playlists {
		if playlist.ID == playlistID && playlist.OwnerID == userID {
			return playlistID
		}
	}
	return ""
}

// ensureBlockedPlaylist finds or creates the playlist collecting flagged
// tracks and caches its id.
func (ex *ActionExecutor) ensureBlockedPlaylist(ctx context.Context) (string, error) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	if ex.blockedPlaylistID != "" {
		return ex.blockedPlaylistID, nil
	}

	userID, err := ex.currentUserIDLocked(ctx)
	if err != nil {
		return "", err
	}
	playlists, err := ex.player.ListUserPlaylists(ctx)
	if err != nil {
		return "", err
	}
	name := ex.settings.Monitor.BlockedPlaylist
	for _, playlist := range playlists {
		if playlist.Name == name && playlist.OwnerID == userID {
			ex.blockedPlaylistID = playlist.ID
			return playlist.ID, nil
		}
	}

	created, err := ex.player.CreatePlaylist(ctx, userID, name,
		"Tracks by artificial artists, collected by trackguard")
	if err != nil {
		return "", err
	}
	logger.Info("created blocked playlist", "playlist_id", created.ID, "name", name)
	ex.blockedPlaylistID = created.ID
	return created.ID, nil
}

// currentUserID resolves and caches the authenticated user's id.
func (ex *ActionExecutor) currentUserID(ctx context.Context) (string, error) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.currentUserIDLocked(ctx)
}

func (ex *ActionExecutor) currentUserIDLocked(ctx context.Context) (string, error) {
	if ex.userID != "" {
		return ex.userID, nil
	}
	user, err := ex.player.CurrentUser(ctx)
	if err != nil {
		return "", err
	}
	ex.userID = user.ID
	return user.ID, nil
}

// playlistIDFromURI extracts the id from a spotify:playlist:<id> URI.
func playlistIDFromURI(uri string) string {
	parts := strings.Split(uri, ":")
	if len(parts) != 3 || parts[1] != "playlist" {
		return ""
	}
	return parts[2]
}
