package classify

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tlahtinen/trackguard/internal/errors"
	"github.com/tlahtinen/trackguard/internal/logging"
	"github.com/tlahtinen/trackguard/internal/observability/metrics"
)

// Package-level logger for the classification engine
var (
	engineLogger   *slog.Logger
	engineLevelVar = new(slog.LevelVar) // Dynamic level control
)

func init() {
	var err error
	engineLevelVar.Set(slog.LevelDebug)

	engineLogger, _, err = logging.NewFileLogger("logs/classify.log", "classify", engineLevelVar)
	if err != nil {
		logging.Error("Failed to initialize classify file logger", "error", err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: engineLevelVar})
		engineLogger = slog.New(fbHandler).With("service", "classify")
	}
}

// FallbackResult is the verdict produced by the LLM fallback classifier.
type FallbackResult struct {
	Label        Label
	IsArtificial bool
	Confidence   float64
	Reason       string
	Model        string
}

// Fallback is a secondary classifier consulted when source aggregation is
// inconclusive. Implementations must be deterministic for a given artist.
type Fallback interface {
	// Name returns the stable fallback name used in decisions and metrics.
	Name() string
	// Classify produces a verdict from the artist identity and whatever
	// signals the sources did return.
	Classify(ctx context.Context, artist ArtistIdentity, signals []SourceSignal) (*FallbackResult, error)
}

// Config carries the engine tunables.
type Config struct {
	MinSourceAgreement int           // sources that must concur before a label is accepted
	BandPolicy         bool          // virtual annotated band signals force artificial
	Timeout            time.Duration // upper bound for one classification pass
	FallbackThreshold  float64       // aggregate confidence below which the fallback runs
}

// Engine runs the classification pipeline for one artist: override check,
// cache lookup, parallel source fan out, aggregation and the optional LLM
// fallback. Safe for concurrent use.
type Engine struct {
	cfg        Config
	adapters   []SourceAdapter
	aggregator *Aggregator
	overrides  *OverrideStore
	cache      *DecisionCache
	fallback   Fallback // nil when the fallback is disabled
	metrics    *metrics.ClassificationMetrics
}

// New creates a classification engine. overrides and cache must be non nil;
// fallback and m may be nil.
func New(cfg Config, adapters []SourceAdapter, overrides *OverrideStore, cache *DecisionCache, fallback Fallback, m *metrics.ClassificationMetrics) *Engine {
	return &Engine{
		cfg:        cfg,
		adapters:   adapters,
		aggregator: NewAggregator(cfg.MinSourceAgreement, cfg.BandPolicy),
		overrides:  overrides,
		cache:      cache,
		fallback:   fallback,
		metrics:    m,
	}
}

// Classify resolves a verdict for the artist: override first, then cache,
// then the full source pipeline. The result is cached unless it came from
// an override. Classify never returns an error for source trouble, it fails
// open to unknown instead; only invalid input is an error.
func (e *Engine) Classify(ctx context.Context, artist ArtistIdentity) (*Decision, error) {
	return e.classify(ctx, artist, false)
}

// Reclassify resolves a verdict bypassing the decision cache, forcing fresh
// source lookups. Manual overrides still win. The fresh decision replaces
// the cached one.
func (e *Engine) Reclassify(ctx context.Context, artist ArtistIdentity) (*Decision, error) {
	e.cache.Invalidate(artist.ID)
	return e.classify(ctx, artist, true)
}

func (e *Engine) classify(ctx context.Context, artist ArtistIdentity, bypassCache bool) (*Decision, error) {
	if artist.ID == "" {
		return nil, errors.Newf("artist id is required").
			Component("classify").
			Category(errors.CategoryValidation).
			Build()
	}

	if override, ok := e.overrides.Get(artist.ID); ok {
		e.metrics.RecordOverrideHit()
		decision := e.overrideDecision(artist, &override)
		e.metrics.RecordClassification(decision.Label.String(), OriginOverride)
		engineLogger.Debug("override resolved artist",
			"artist_id", artist.ID, "artist_name", artist.Name,
			"is_artificial", decision.IsArtificial)
		return decision, nil
	}

	if !bypassCache {
		if cached := e.cache.Get(artist.ID); cached != nil {
			e.metrics.RecordCacheHit()
			e.metrics.RecordClassification(cached.Label.String(), OriginCache)
			return cached, nil
		}
		e.metrics.RecordCacheMiss()
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	signals := e.gatherSignals(ctx, artist)
	result := e.aggregator.Aggregate(signals)
	if result.BandPolicyApplied {
		e.metrics.RecordBandPolicyApplied()
	}

	decision := &Decision{
		ID:                uuid.NewString(),
		Artist:            artist,
		Label:             result.Label,
		IsArtificial:      result.IsArtificial,
		Confidence:        result.Confidence,
		AgreeingSources:   result.AgreeingSources,
		BandPolicyApplied: result.BandPolicyApplied,
		Reason:            result.Reason,
		Signals:           signals,
		DecidedAt:         time.Now(),
	}
	origin := OriginSources

	if e.fallback != nil && e.needsFallback(&result) {
		if fb, took := e.runFallback(ctx, artist, signals); fb != nil {
			decision.Label = fb.Label
			decision.IsArtificial = fb.IsArtificial
			decision.Confidence = fb.Confidence
			decision.AgreeingSources = []string{e.fallback.Name()}
			decision.BandPolicyApplied = false
			decision.UsedFallback = true
			decision.Reason = fb.Reason
			decision.Fallback = fb
			decision.FallbackDuration = took
			origin = OriginFallback
		}
	}

	e.cache.Set(decision)

	elapsed := time.Since(start)
	e.metrics.RecordClassification(decision.Label.String(), origin)
	e.metrics.RecordClassificationDuration(elapsed.Seconds())
	engineLogger.Info("artist classified",
		"artist_id", artist.ID,
		"artist_name", artist.Name,
		"label", decision.Label,
		"is_artificial", decision.IsArtificial,
		"confidence", decision.Confidence,
		"agreeing_sources", decision.AgreeingSources,
		"band_policy", decision.BandPolicyApplied,
		"used_fallback", decision.UsedFallback,
		"duration_ms", elapsed.Milliseconds())

	return decision, nil
}

// gatherSignals queries every adapter concurrently. Adapter failures and
// timeouts become failed signals; the fan out itself never fails.
func (e *Engine) gatherSignals(ctx context.Context, artist ArtistIdentity) []SourceSignal {
	signals := make([]SourceSignal, len(e.adapters))

	g, gctx := errgroup.WithContext(ctx)
	for i, adapter := range e.adapters {
		i, adapter := i, adapter
		g.Go(func() error {
			queriedAt := time.Now()
			signal, err := adapter.Lookup(gctx, artist)
			if err != nil {
				signals[i] = SourceSignal{
					Source:    adapter.Name(),
					QueriedAt: queriedAt,
					Duration:  time.Since(queriedAt),
					Err:       err.Error(),
				}
				engineLogger.Warn("source lookup failed",
					"source", adapter.Name(),
					"artist_id", artist.ID,
					"artist_name", artist.Name,
					"error", err)
				return nil
			}
			if signal == nil {
				signal = &SourceSignal{Source: adapter.Name(), QueriedAt: queriedAt}
			}
			if signal.QueriedAt.IsZero() {
				signal.QueriedAt = queriedAt
			}
			if signal.Duration == 0 {
				signal.Duration = time.Since(queriedAt)
			}
			signals[i] = *signal
			return nil
		})
	}
	_ = g.Wait()

	return signals
}

// needsFallback reports whether the aggregate warrants a second opinion:
// the fail open unknown branch, or a conclusive call below the configured
// confidence threshold.
func (e *Engine) needsFallback(result *AggregateResult) bool {
	if !result.Conclusive {
		return true
	}
	return result.Confidence < e.cfg.FallbackThreshold
}

// runFallback invokes the fallback classifier and validates its output.
// Returns a nil result when the fallback errored or produced an unusable
// verdict, in which case the aggregate result stands.
func (e *Engine) runFallback(ctx context.Context, artist ArtistIdentity, signals []SourceSignal) (*FallbackResult, time.Duration) {
	start := time.Now()
	result, err := e.fallback.Classify(ctx, artist, signals)
	took := time.Since(start)
	e.metrics.RecordFallbackDuration(took.Seconds())
	if err != nil {
		e.metrics.RecordFallbackInvocation("error")
		engineLogger.Warn("fallback classification failed",
			"artist_id", artist.ID, "artist_name", artist.Name, "error", err)
		return nil, took
	}
	if result == nil || !result.Label.Valid() || result.Label == LabelUnknown ||
		result.Confidence < 0 || result.Confidence > 1 {
		e.metrics.RecordFallbackInvocation("invalid_output")
		engineLogger.Warn("fallback produced unusable verdict",
			"artist_id", artist.ID, "artist_name", artist.Name)
		return nil, took
	}
	// The artificial bit must agree with the label, the model occasionally
	// contradicts itself.
	if result.IsArtificial != result.Label.IsArtificial() {
		e.metrics.RecordFallbackInvocation("invalid_output")
		engineLogger.Warn("fallback verdict contradicts its own label",
			"artist_id", artist.ID, "label", result.Label, "is_artificial", result.IsArtificial)
		return nil, took
	}
	e.metrics.RecordFallbackInvocation("success")
	return result, took
}

// overrideDecision builds a decision straight from a manual override.
func (e *Engine) overrideDecision(artist ArtistIdentity, override *Override) *Decision {
	reason := override.Reason
	if reason == "" {
		reason = "manual override"
	}
	return &Decision{
		ID:              uuid.NewString(),
		Artist:          artist,
		Label:           override.Label(),
		IsArtificial:    override.IsArtificial,
		Confidence:      1.0,
		AgreeingSources: []string{OriginOverride},
		FromOverride:    true,
		Reason:          reason,
		DecidedAt:       time.Now(),
	}
}
