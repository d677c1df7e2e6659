// Package spotify implements the playback provider client: OAuth2
// authorization with PKCE, playback state polling and the playlist and
// queue operations the action executor needs.
package spotify

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/tlahtinen/trackguard/internal/errors"
	"github.com/tlahtinen/trackguard/internal/logging"
)

// Package-level logger for the playback provider client
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar) // Dynamic level control
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "spotify.log")
	serviceLevelVar.Set(slog.LevelDebug)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "spotify", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize spotify file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "spotify")
		closeLogger = func() error { return nil }
	}
}

// Artist identifies one credited artist on a track.
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Album carries the album metadata the persistence layer records.
type Album struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ReleaseDate string `json:"release_date"`
}

// Track is one playable track with its credited artists.
type Track struct {
	ID         string   `json:"id"`
	URI        string   `json:"uri"`
	Name       string   `json:"name"`
	DurationMS int      `json:"duration_ms"`
	Explicit   bool     `json:"explicit"`
	Popularity int      `json:"popularity"`
	Artists    []Artist `json:"artists"`
	Album      Album    `json:"album"`
}

// PlaybackContext describes where playback originates, e.g. a playlist.
type PlaybackContext struct {
	Type string `json:"type"` // playlist, album, artist, show
	URI  string `json:"uri"`
}

// Device is the playback device a snapshot originates from.
type Device struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	IsActive bool   `json:"is_active"`
}

// PlaybackState is one snapshot of the player.
type PlaybackState struct {
	IsPlaying  bool             `json:"is_playing"`
	ProgressMS int              `json:"progress_ms"`
	Track      *Track           `json:"item"`
	Context    *PlaybackContext `json:"context"`
	Device     *Device          `json:"device"`
	FetchedAt  time.Time        `json:"-"`
}

// DeviceActive reports whether the snapshot carries an active playback
// device. Safe on a nil snapshot.
func (s *PlaybackState) DeviceActive() bool {
	return s != nil && s.Device != nil && s.Device.IsActive
}

// Playlist is one playlist summary.
type Playlist struct {
	ID      string `json:"id"`
	URI     string `json:"uri"`
	Name    string `json:"name"`
	OwnerID string `json:"-"`
}

// User is the authenticated account.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// RateLimitError reports a 429 from the provider together with how long the
// caller must back off.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited by provider, retry after %s", e.RetryAfter)
}

// IsRateLimit reports whether err is a provider rate limit response and
// returns the mandated backoff.
func IsRateLimit(err error) (time.Duration, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle.RetryAfter, true
	}
	return 0, false
}
