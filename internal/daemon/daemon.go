// Package daemon wires the configured components together and runs the
// long lived monitor process: provider client, decision engine, datastore,
// review API and the polling loop.
package daemon

import (
	"context"
	"io"
	"log"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tlahtinen/trackguard/internal/api"
	"github.com/tlahtinen/trackguard/internal/classify"
	"github.com/tlahtinen/trackguard/internal/conf"
	"github.com/tlahtinen/trackguard/internal/datastore"
	"github.com/tlahtinen/trackguard/internal/errors"
	"github.com/tlahtinen/trackguard/internal/llm"
	"github.com/tlahtinen/trackguard/internal/logging"
	"github.com/tlahtinen/trackguard/internal/monitor"
	"github.com/tlahtinen/trackguard/internal/observability"
	"github.com/tlahtinen/trackguard/internal/observability/metrics"
	"github.com/tlahtinen/trackguard/internal/sources"
	"github.com/tlahtinen/trackguard/internal/spotify"
)

// Package-level logger for daemon lifecycle events
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar) // Dynamic level control
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "daemon.log")
	serviceLevelVar.Set(slog.LevelDebug)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "daemon", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize daemon file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "daemon")
		closeLogger = func() error { return nil }
	}
}

// Accessors tolerating a nil metrics instance, used so one-shot commands
// can run without a registry.
func metricsSource(m *observability.Metrics) *metrics.SourceMetrics {
	if m == nil {
		return nil
	}
	return m.Source
}

func metricsClassification(m *observability.Metrics) *metrics.ClassificationMetrics {
	if m == nil {
		return nil
	}
	return m.Classification
}

func metricsMonitor(m *observability.Metrics) *metrics.MonitorMetrics {
	if m == nil {
		return nil
	}
	return m.Monitor
}

func metricsDatastore(m *observability.Metrics) *metrics.DatastoreMetrics {
	if m == nil {
		return nil
	}
	return m.Datastore
}

// BuildAdapters creates one source adapter per enabled knowledge source.
func BuildAdapters(settings *conf.Settings, m *observability.Metrics) []classify.SourceAdapter {
	sourceMetrics := metricsSource(m)
	var adapters []classify.SourceAdapter

	if settings.Sources.Wikidata.Enabled {
		adapters = append(adapters, sources.NewWikidataAdapter(sources.WikidataConfig{
			Endpoint:  settings.Sources.Wikidata.Endpoint,
			UserAgent: settings.Sources.Wikidata.UserAgent,
			Timeout:   time.Duration(settings.Sources.Wikidata.Timeout) * time.Second,
		}, sourceMetrics))
	}
	if settings.Sources.MusicBrainz.Enabled {
		adapters = append(adapters, sources.NewMusicBrainzAdapter(sources.MusicBrainzConfig{
			Endpoint:           settings.Sources.MusicBrainz.Endpoint,
			UserAgent:          settings.Sources.MusicBrainz.UserAgent,
			Timeout:            time.Duration(settings.Sources.MusicBrainz.Timeout) * time.Second,
			RateLimitPerSecond: settings.Sources.MusicBrainz.RateLimitPerSecond,
			MinTagCount:        settings.Sources.MusicBrainz.MinTagCount,
		}, sourceMetrics))
	}
	if settings.Sources.LastFM.Enabled && settings.Sources.LastFM.APIKey != "" {
		adapters = append(adapters, sources.NewLastFMAdapter(sources.LastFMConfig{
			APIKey:       settings.Sources.LastFM.APIKey,
			SharedSecret: settings.Sources.LastFM.SharedSecret,
			MaxTopTags:   settings.Sources.LastFM.MaxTopTags,
		}, sourceMetrics))
	}
	return adapters
}

// BuildEngine assembles the decision engine from the settings: adapters,
// cache, override store and the optional Ollama fallback.
func BuildEngine(settings *conf.Settings, overrides *classify.OverrideStore, m *observability.Metrics) (*classify.Engine, error) {
	adapters := BuildAdapters(settings, m)
	if len(adapters) == 0 {
		return nil, errors.Newf("no knowledge sources enabled").
			Component("daemon").
			Category(errors.CategoryConfiguration).
			Build()
	}

	cache := classify.NewDecisionCache(time.Duration(settings.Classification.CacheDuration) * time.Second)

	var fallback classify.Fallback
	if settings.Ollama.Enabled {
		ollama, err := llm.NewOllamaClassifier(llm.OllamaConfig{
			Host:        settings.Ollama.Host,
			Model:       settings.Ollama.Model,
			KeepAlive:   settings.Ollama.KeepAlive,
			Seed:        settings.Ollama.Seed,
			Temperature: settings.Ollama.Temperature,
			NumPredict:  settings.Ollama.NumPredict,
			Timeout:     time.Duration(settings.Ollama.Timeout) * time.Second,
			PromptPath:  settings.Ollama.PromptPath,
		})
		if err != nil {
			return nil, err
		}
		fallback = ollama
	}

	cfg := classify.Config{
		MinSourceAgreement: settings.Classification.MinSourceAgreement,
		BandPolicy:         settings.Classification.BandPolicy.VirtualOrFictionalIsArtificial,
		Timeout:            time.Duration(settings.Classification.Timeout) * time.Second,
		FallbackThreshold:  settings.Classification.FallbackThreshold,
	}
	return classify.New(cfg, adapters, overrides, cache, fallback, metricsClassification(m)), nil
}

// Run starts the full daemon and blocks until the context is cancelled.
func Run(ctx context.Context, settings *conf.Settings) error {
	m, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	store := datastore.New(settings, metricsDatastore(m))
	if store != nil {
		if err := store.Open(); err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
	}

	overrides := classify.NewOverrideStore()
	if store != nil {
		saved, err := store.GetAllOverrides()
		if err != nil {
			return err
		}
		hydrated := make([]classify.Override, 0, len(saved))
		for i := range saved {
			hydrated = append(hydrated, saved[i].ToClassifyOverride())
		}
		overrides.Hydrate(hydrated)
		logger.Info("overrides hydrated", "count", len(hydrated))
	}

	engine, err := BuildEngine(settings, overrides, m)
	if err != nil {
		return err
	}

	auth, err := spotify.NewAuthenticator(spotify.AuthConfig{
		ClientID:     settings.Spotify.ClientID,
		ClientSecret: settings.Spotify.ClientSecret,
		RedirectURI:  settings.Spotify.RedirectURI,
		TokenPath:    settings.Spotify.TokenPath,
	})
	if err != nil {
		return err
	}
	tokenSource, err := auth.TokenSource(ctx)
	if err != nil {
		return err
	}
	player := spotify.NewClient(ctx, tokenSource)

	mon := monitor.New(settings, player, engine, store, metricsMonitor(m))

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return mon.Run(ctx)
	})

	if settings.WebServer.Enabled {
		controller := api.New(settings, store, engine, overrides, m)
		group.Go(func() error {
			if err := controller.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		group.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return controller.Shutdown(shutdownCtx)
		})
	}

	logger.Info("trackguard daemon running", "node", settings.Main.Name)
	err = group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
