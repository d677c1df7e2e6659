package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/tlahtinen/trackguard/internal/classify"
	"github.com/tlahtinen/trackguard/internal/errors"
	"github.com/tlahtinen/trackguard/internal/observability/metrics"
)

// minSearchScore is the MusicBrainz search score below which a hit is not
// trusted to be the same artist.
const minSearchScore = 85

// MusicBrainzConfig carries the MusicBrainz adapter settings.
type MusicBrainzConfig struct {
	Endpoint           string
	UserAgent          string // MusicBrainz rejects requests without one
	Timeout            time.Duration
	RateLimitPerSecond float64 // API etiquette caps anonymous clients at 1/sec
	MinTagCount        int     // minimum tag vote count, filters drive-by tags
}

// MusicBrainzAdapter classifies artists from their MusicBrainz entity type
// and community tags and genres.
type MusicBrainzAdapter struct {
	cfg        MusicBrainzConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *metrics.SourceMetrics
}

// NewMusicBrainzAdapter creates a MusicBrainz adapter with a client side
// rate limiter. m may be nil.
func NewMusicBrainzAdapter(cfg MusicBrainzConfig, m *metrics.SourceMetrics) *MusicBrainzAdapter {
	limit := cfg.RateLimitPerSecond
	if limit <= 0 {
		limit = 1
	}
	return &MusicBrainzAdapter{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(limit), 1),
		metrics:    m,
	}
}

// Name implements classify.SourceAdapter.
func (a *MusicBrainzAdapter) Name() string { return "musicbrainz" }

type mbSearchResponse struct {
	Artists []struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Score int    `json:"score"`
		Type  string `json:"type"`
	} `json:"artists"`
}

type mbTag struct {
	Count int    `json:"count"`
	Name  string `json:"name"`
}

type mbArtistResponse struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Type   string  `json:"type"`
	Tags   []mbTag `json:"tags"`
	Genres []mbTag `json:"genres"`
}

// Lookup implements classify.SourceAdapter. It searches for the artist,
// then fetches the best hit with its tags and genres. Two API calls, both
// rate limited.
func (a *MusicBrainzAdapter) Lookup(ctx context.Context, artist classify.ArtistIdentity) (*classify.SourceSignal, error) {
	queriedAt := time.Now()

	searchURL := fmt.Sprintf("%s/artist?query=%s&fmt=json&limit=5",
		a.cfg.Endpoint, url.QueryEscape(fmt.Sprintf("artist:%q", artist.Name)))
	var search mbSearchResponse
	if err := a.doGet(ctx, searchURL, &search); err != nil {
		return nil, err
	}

	if len(search.Artists) == 0 || search.Artists[0].Score < minSearchScore {
		a.metrics.RecordSourceSignal(a.Name(), "none")
		logger.Debug("musicbrainz found no confident match",
			"artist_name", artist.Name, "hits", len(search.Artists))
		return &classify.SourceSignal{
			Source:    a.Name(),
			QueriedAt: queriedAt,
			Duration:  time.Since(queriedAt),
		}, nil
	}
	hit := search.Artists[0]

	detailURL := fmt.Sprintf("%s/artist/%s?inc=tags+genres&fmt=json", a.cfg.Endpoint, hit.ID)
	var detail mbArtistResponse
	if err := a.doGet(ctx, detailURL, &detail); err != nil {
		return nil, err
	}

	signal := a.signalFromArtist(&detail)
	signal.QueriedAt = queriedAt
	signal.Duration = time.Since(queriedAt)
	signal.URL = "https://musicbrainz.org/artist/" + hit.ID
	a.metrics.RecordSourceSignal(a.Name(), signalLabelForMetrics(signal))

	logger.Debug("musicbrainz lookup finished",
		"artist_name", artist.Name,
		"mbid", hit.ID,
		"label", signal.Label,
		"evidence", signal.Evidence)
	return signal, nil
}

// signalFromArtist derives a signal from the artist's type and its tags and
// genres. Virtual leaning tags on a group become a band signal with the
// virtual annotation; the aggregator's band policy takes it from there.
func (a *MusicBrainzAdapter) signalFromArtist(detail *mbArtistResponse) *classify.SourceSignal {
	var tagNames []string
	for _, t := range detail.Tags {
		if t.Count >= a.cfg.MinTagCount {
			tagNames = append(tagNames, t.Name)
		}
	}
	for _, g := range detail.Genres {
		if g.Count >= a.cfg.MinTagCount {
			tagNames = append(tagNames, g.Name)
		}
	}

	isGroup := detail.Type == "Group" || detail.Type == "Orchestra" || detail.Type == "Choir"

	if rule, matched, ok := strongestTagMatch(tagNames); ok {
		signal := &classify.SourceSignal{
			Source:     a.Name(),
			Label:      rule.label,
			Confidence: 0.85,
			Evidence:   fmt.Sprintf("type: %s, tags: %v", detail.Type, matched),
		}
		if rule.bandHint || (isGroup && rule.label.IsArtificial()) {
			signal.Label = classify.LabelBand
			signal.VirtualHint = true
		}
		return signal
	}

	switch {
	case detail.Type == "Person":
		return &classify.SourceSignal{
			Source:     a.Name(),
			Label:      classify.LabelHuman,
			Confidence: 0.7,
			Evidence:   "type: Person",
		}
	case detail.Type == "Character":
		return &classify.SourceSignal{
			Source:     a.Name(),
			Label:      classify.LabelFictional,
			Confidence: 0.8,
			Evidence:   "type: Character",
		}
	case isGroup:
		return &classify.SourceSignal{
			Source:     a.Name(),
			Label:      classify.LabelBand,
			Confidence: 0.7,
			Evidence:   "type: " + detail.Type,
		}
	default:
		return &classify.SourceSignal{Source: a.Name()}
	}
}

// doGet performs one rate limited GET against the MusicBrainz API and
// decodes the JSON response into result.
func (a *MusicBrainzAdapter) doGet(ctx context.Context, requestURL string, result any) error {
	if !a.limiter.Allow() {
		a.metrics.RecordRateLimitWait(a.Name())
		if err := a.limiter.Wait(ctx); err != nil {
			return errors.New(err).
				Component("sources").
				Category(errors.CategoryRateLimit).
				Context("source", a.Name()).
				Build()
		}
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, http.NoBody)
	if err != nil {
		a.metrics.RecordSourceError(a.Name(), "request_build")
		return errors.New(err).
			Component("sources").
			Category(errors.CategorySourceQuery).
			Context("source", a.Name()).
			Build()
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", a.cfg.UserAgent)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.metrics.RecordSourceRequest(a.Name(), "error")
		a.metrics.RecordSourceError(a.Name(), "network")
		return errors.New(err).
			Component("sources").
			Category(errors.CategoryNetwork).
			Context("source", a.Name()).
			Context("url", requestURL).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	a.metrics.RecordSourceDuration(a.Name(), time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		a.metrics.RecordSourceRequest(a.Name(), "error")
		a.metrics.RecordSourceError(a.Name(), fmt.Sprintf("http_%d", resp.StatusCode))
		return errors.Newf("musicbrainz returned status %d", resp.StatusCode).
			Component("sources").
			Category(errors.CategorySourceQuery).
			Context("source", a.Name()).
			Context("status_code", resp.StatusCode).
			Build()
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		a.metrics.RecordSourceError(a.Name(), "read_body")
		return errors.New(err).
			Component("sources").
			Category(errors.CategoryNetwork).
			Context("source", a.Name()).
			Build()
	}
	if err := json.Unmarshal(body, result); err != nil {
		a.metrics.RecordSourceError(a.Name(), "parse")
		return errors.New(err).
			Component("sources").
			Category(errors.CategorySourceQuery).
			Context("source", a.Name()).
			Build()
	}
	a.metrics.RecordSourceRequest(a.Name(), "success")
	return nil
}
