package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/shkh/lastfm-go/lastfm"

	"github.com/tlahtinen/trackguard/internal/classify"
	"github.com/tlahtinen/trackguard/internal/errors"
	"github.com/tlahtinen/trackguard/internal/observability/metrics"
)

// LastFMConfig carries the Last.fm adapter settings.
type LastFMConfig struct {
	APIKey       string
	SharedSecret string
	MaxTopTags   int // top tags considered per artist, filters long tail noise
}

// LastFMAdapter classifies artists from their Last.fm folksonomy tags.
// Tags can only assert an artificial act: the absence of virtual tags says
// nothing about a human performer, so this adapter never reports human.
type LastFMAdapter struct {
	cfg     LastFMConfig
	api     *lastfm.Api
	metrics *metrics.SourceMetrics
}

// NewLastFMAdapter creates a Last.fm adapter. m may be nil.
func NewLastFMAdapter(cfg LastFMConfig, m *metrics.SourceMetrics) *LastFMAdapter {
	if cfg.MaxTopTags <= 0 {
		cfg.MaxTopTags = 15
	}
	return &LastFMAdapter{
		cfg:     cfg,
		api:     lastfm.New(cfg.APIKey, cfg.SharedSecret),
		metrics: m,
	}
}

// Name implements classify.SourceAdapter.
func (a *LastFMAdapter) Name() string { return "lastfm" }

// Lookup implements classify.SourceAdapter. The underlying client has no
// context support, so the call runs in a goroutine and the result is
// abandoned on cancellation.
func (a *LastFMAdapter) Lookup(ctx context.Context, artist classify.ArtistIdentity) (*classify.SourceSignal, error) {
	queriedAt := time.Now()

	type topTagsResult struct {
		tags []string
		err  error
	}
	resultCh := make(chan topTagsResult, 1)
	go func() {
		result, err := a.api.Artist.GetTopTags(lastfm.P{
			"artist":      artist.Name,
			"autocorrect": 1,
		})
		if err != nil {
			resultCh <- topTagsResult{err: err}
			return
		}
		tags := make([]string, 0, len(result.Tags))
		for _, tag := range result.Tags {
			tags = append(tags, tag.Name)
		}
		resultCh <- topTagsResult{tags: tags}
	}()

	var tags []string
	select {
	case <-ctx.Done():
		a.metrics.RecordSourceRequest(a.Name(), "timeout")
		a.metrics.RecordSourceError(a.Name(), "canceled")
		return nil, errors.New(ctx.Err()).
			Component("sources").
			Category(errors.CategoryTimeout).
			Context("source", a.Name()).
			Build()
	case r := <-resultCh:
		a.metrics.RecordSourceDuration(a.Name(), time.Since(queriedAt).Seconds())
		if r.err != nil {
			a.metrics.RecordSourceRequest(a.Name(), "error")
			a.metrics.RecordSourceError(a.Name(), "api")
			return nil, errors.New(r.err).
				Component("sources").
				Category(errors.CategorySourceQuery).
				Context("source", a.Name()).
				Context("artist_name", artist.Name).
				Build()
		}
		tags = r.tags
	}
	a.metrics.RecordSourceRequest(a.Name(), "success")

	// Tags arrive ordered by weight; only the head of the list is trusted.
	if len(tags) > a.cfg.MaxTopTags {
		tags = tags[:a.cfg.MaxTopTags]
	}

	signal := &classify.SourceSignal{
		Source:    a.Name(),
		QueriedAt: queriedAt,
		Duration:  time.Since(queriedAt),
	}
	if rule, matched, ok := strongestTagMatch(tags); ok {
		signal.Label = rule.label
		signal.VirtualHint = rule.bandHint
		signal.Confidence = 0.75
		signal.Evidence = fmt.Sprintf("top tags: %v", matched)
	}
	a.metrics.RecordSourceSignal(a.Name(), signalLabelForMetrics(signal))

	logger.Debug("lastfm lookup finished",
		"artist_name", artist.Name,
		"label", signal.Label,
		"tags_considered", len(tags))
	return signal, nil
}
