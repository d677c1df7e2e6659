// Package monitor polls the playback provider, detects track changes,
// classifies the credited artists and hands actionable decisions to the
// action executor.
package monitor

import (
	"context"
	"io"
	"log"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/tlahtinen/trackguard/internal/classify"
	"github.com/tlahtinen/trackguard/internal/conf"
	"github.com/tlahtinen/trackguard/internal/datastore"
	"github.com/tlahtinen/trackguard/internal/logging"
	"github.com/tlahtinen/trackguard/internal/observability/metrics"
	"github.com/tlahtinen/trackguard/internal/spotify"
)

// Package-level logger for the playback monitor
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar) // Dynamic level control
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "monitor.log")
	serviceLevelVar.Set(slog.LevelDebug)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "monitor", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize monitor file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "monitor")
		closeLogger = func() error { return nil }
	}
}

// State is the monitor's playback state.
type State int

const (
	// StateIdle means nothing is playing.
	StateIdle State = iota
	// StateTracking means a track is playing and being watched.
	StateTracking
)

func (s State) String() string {
	if s == StateTracking {
		return "tracking"
	}
	return "idle"
}

// Player is the slice of the provider client the monitor needs.
type Player interface {
	CurrentlyPlaying(ctx context.Context) (*spotify.PlaybackState, error)
	SkipToNext(ctx context.Context) error
	CurrentUser(ctx context.Context) (*spotify.User, error)
	ListUserPlaylists(ctx context.Context) ([]spotify.Playlist, error)
	CreatePlaylist(ctx context.Context, userID, name, description string) (*spotify.Playlist, error)
	AddTracksToPlaylist(ctx context.Context, playlistID string, trackURIs []string) error
	RemoveTracksFromPlaylist(ctx context.Context, playlistID string, trackURIs []string) error
}

// Classifier is the slice of the decision engine the monitor needs.
type Classifier interface {
	Classify(ctx context.Context, artist classify.ArtistIdentity) (*classify.Decision, error)
}

// Monitor runs the playback polling loop.
type Monitor struct {
	settings *conf.Settings
	player   Player
	engine   Classifier
	store    datastore.Interface
	actions  *ActionExecutor
	metrics  *metrics.MonitorMetrics

	state       State
	lastTrackID string
	interval    time.Duration
	backoff     time.Duration
}

// New creates a playback monitor. The store may be nil when no database
// output is enabled.
func New(settings *conf.Settings, player Player, engine Classifier, store datastore.Interface, m *metrics.MonitorMetrics) *Monitor {
	interval := time.Duration(settings.Monitor.PollInterval) * time.Second
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Monitor{
		settings: settings,
		player:   player,
		engine:   engine,
		store:    store,
		actions:  NewActionExecutor(settings, player, store, m),
		metrics:  m,
		state:    StateIdle,
		interval: interval,
	}
}

// Run polls the provider until the context is cancelled. Poll failures and
// rate limits back off but never stop the loop.
func (mon *Monitor) Run(ctx context.Context) error {
	logger.Info("playback monitor started",
		"poll_interval", mon.interval.String(),
		"auto_skip", mon.settings.Monitor.AutoSkip)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("playback monitor stopped")
			return ctx.Err()
		case <-timer.C:
		}

		wait := mon.pollOnce(ctx)
		timer.Reset(wait)
	}
}

// pollOnce performs a single poll and returns how long to wait before the
// next one.
func (mon *Monitor) pollOnce(ctx context.Context) time.Duration {
	state, err := mon.player.CurrentlyPlaying(ctx)
	switch {
	case err == nil:
		mon.resetBackoff()
		mon.observe(ctx, state)
		return mon.interval
	default:
		if retryAfter, ok := spotify.IsRateLimit(err); ok {
			// The tracking state survives a rate limited poll so a
			// continuing track does not fire a second change event.
			mon.metrics.RecordPoll("rate_limited")
			return mon.extendBackoff(retryAfter)
		}
		mon.metrics.RecordPoll("error")
		logger.Error("playback poll failed", "error", err)
		return mon.extendBackoff(mon.interval)
	}
}

// observe feeds one playback snapshot through the state machine. A snapshot
// whose device is reported inactive counts as idle; snapshots without
// device info are taken at face value.
func (mon *Monitor) observe(ctx context.Context, state *spotify.PlaybackState) {
	if state == nil || !state.IsPlaying || state.Track == nil ||
		(state.Device != nil && !state.Device.IsActive) {
		mon.metrics.RecordPoll("idle")
		if mon.state != StateIdle {
			logger.Debug("playback stopped", "last_track_id", mon.lastTrackID)
		}
		mon.state = StateIdle
		mon.lastTrackID = ""
		return
	}

	mon.metrics.RecordPoll("playing")
	if state.Track.ID == mon.lastTrackID {
		return
	}

	mon.state = StateTracking
	mon.lastTrackID = state.Track.ID
	mon.metrics.RecordTrackChange()
	mon.handleTrackChange(ctx, state)
}

// handleTrackChange persists the play and classifies every credited artist.
// The first actionable decision triggers the executor.
func (mon *Monitor) handleTrackChange(ctx context.Context, state *spotify.PlaybackState) {
	track := state.Track
	logger.Info("track changed",
		"track_id", track.ID,
		"track", track.Name,
		"artists", artistNames(track.Artists))

	mon.persistPlay(state)

	for i := range track.Artists {
		artist := classify.ArtistIdentity{ID: track.Artists[i].ID, Name: track.Artists[i].Name}
		decision, err := mon.engine.Classify(ctx, artist)
		if err != nil {
			logger.Error("classification failed", "artist", artist.Name, "error", err)
			continue
		}
		mon.persistDecision(decision)

		if decision.ShouldAct(mon.settings.Monitor.ActionThreshold) {
			logger.Info("artificial artist detected",
				"artist", artist.Name,
				"label", decision.Label.String(),
				"confidence", decision.Confidence)
			mon.actions.Execute(ctx, state, decision)
			return
		}
	}
}

// persistPlay records the track and the play observation.
func (mon *Monitor) persistPlay(state *spotify.PlaybackState) {
	if mon.store == nil {
		return
	}
	if err := mon.store.SaveTrack(trackRecord(state.Track)); err != nil {
		logger.Error("failed to save track", "track_id", state.Track.ID, "error", err)
	}
	play := &datastore.Play{
		TrackID:    state.Track.ID,
		ProgressMS: state.ProgressMS,
		PlayedAt:   state.FetchedAt,
	}
	if state.Context != nil {
		play.ContextType = state.Context.Type
		play.ContextURI = state.Context.URI
	}
	if err := mon.store.SavePlay(play); err != nil {
		logger.Error("failed to save play", "track_id", state.Track.ID, "error", err)
	}
}

// persistDecision records fresh decisions. Cached and override answers are
// already on record.
func (mon *Monitor) persistDecision(decision *classify.Decision) {
	if mon.store == nil || decision.FromCache || decision.FromOverride {
		return
	}
	record := datastore.NewDecisionRecord(decision)
	if err := mon.store.SaveDecision(record, datastore.NewLLMResultRecord(decision)); err != nil {
		logger.Error("failed to save decision", "artist", decision.Artist.Name, "error", err)
	}
}

// resetBackoff restores the normal poll cadence after a successful poll.
func (mon *Monitor) resetBackoff() {
	if mon.backoff != 0 {
		logger.Info("provider recovered, resuming normal poll interval")
	}
	mon.backoff = 0
	mon.metrics.SetBackoff(0)
}

// extendBackoff grows the wait multiplicatively up to the configured
// maximum, never below the floor the provider mandates.
func (mon *Monitor) extendBackoff(floor time.Duration) time.Duration {
	next := time.Duration(float64(mon.backoff) * mon.settings.Monitor.BackoffMultiplier)
	if next < floor {
		next = floor
	}
	maxBackoff := time.Duration(mon.settings.Monitor.MaxBackoff) * time.Second
	if maxBackoff > 0 && next > maxBackoff {
		next = maxBackoff
	}
	mon.backoff = next
	mon.metrics.SetBackoff(next.Seconds())
	logger.Warn("backing off provider polls", "wait", next.String())
	return next
}

// trackRecord converts a provider track into its persisted form.
func trackRecord(track *spotify.Track) *datastore.Track {
	record := &datastore.Track{
		ID:         track.ID,
		URI:        track.URI,
		Name:       track.Name,
		DurationMS: track.DurationMS,
		Explicit:   track.Explicit,
		Popularity: track.Popularity,
	}
	if track.Album.ID != "" {
		record.AlbumID = track.Album.ID
		record.Album = &datastore.Album{
			ID:          track.Album.ID,
			Name:        track.Album.Name,
			ReleaseDate: track.Album.ReleaseDate,
		}
	}
	for _, artist := range track.Artists {
		record.Artists = append(record.Artists, datastore.Artist{ID: artist.ID, Name: artist.Name})
	}
	return record
}

func artistNames(artists []spotify.Artist) []string {
	names := make([]string, 0, len(artists))
	for _, artist := range artists {
		names = append(names, artist.Name)
	}
	return names
}
