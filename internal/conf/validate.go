// validate.go: startup time validation of the settings struct.
package conf

import (
	"fmt"

	"github.com/tlahtinen/trackguard/internal/errors"
)

// ValidateSettings checks the loaded settings for configuration errors.
// Validation failures are fatal at startup; steady state code never re-validates.
func ValidateSettings(settings *Settings) error {
	if err := validateMonitorSettings(&settings.Monitor); err != nil {
		return err
	}
	if err := validateClassificationSettings(&settings.Classification); err != nil {
		return err
	}
	if err := validateSourcesSettings(&settings.Sources); err != nil {
		return err
	}
	if err := validateOutputSettings(&settings.Output); err != nil {
		return err
	}
	return nil
}

func validateMonitorSettings(monitor *MonitorSettings) error {
	if monitor.PollInterval < 1 {
		return errors.Newf("monitor poll interval must be at least 1 second, got %d", monitor.PollInterval).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("poll_interval", monitor.PollInterval).
			Build()
	}
	if monitor.BackoffMultiplier <= 1.0 {
		return errors.Newf("monitor backoff multiplier must be greater than 1.0, got %.2f", monitor.BackoffMultiplier).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if monitor.ActionThreshold < 0 || monitor.ActionThreshold > 1 {
		return errors.Newf("monitor action threshold must be within [0,1], got %.2f", monitor.ActionThreshold).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if monitor.ActionRetries < 0 {
		return errors.Newf("monitor action retries must not be negative, got %d", monitor.ActionRetries).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

func validateClassificationSettings(classification *ClassificationSettings) error {
	if classification.MinSourceAgreement < 1 {
		return errors.Newf("minimum source agreement must be at least 1, got %d", classification.MinSourceAgreement).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("min_source_agreement", classification.MinSourceAgreement).
			Build()
	}
	if classification.CacheDuration < 0 {
		return errors.Newf("cache duration must not be negative, got %d", classification.CacheDuration).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if classification.FallbackThreshold < 0 || classification.FallbackThreshold > 1 {
		return errors.Newf("fallback threshold must be within [0,1], got %.2f", classification.FallbackThreshold).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

func validateSourcesSettings(sources *SourcesSettings) error {
	if !sources.Wikidata.Enabled && !sources.MusicBrainz.Enabled && !sources.LastFM.Enabled {
		return errors.Newf("at least one knowledge source must be enabled").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if sources.LastFM.Enabled && sources.LastFM.APIKey == "" {
		return errors.Newf("lastfm source is enabled but no API key is configured").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if sources.MusicBrainz.Enabled {
		if sources.MusicBrainz.UserAgent == "" {
			return errors.Newf("musicbrainz source is enabled but no user agent is configured").
				Component("conf").
				Category(errors.CategoryConfiguration).
				Build()
		}
		if sources.MusicBrainz.RateLimitPerSecond <= 0 {
			return errors.Newf("musicbrainz rate limit must be positive, got %.2f", sources.MusicBrainz.RateLimitPerSecond).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Build()
		}
	}
	return nil
}

func validateOutputSettings(output *OutputSettings) error {
	if !output.SQLite.Enabled && !output.MySQL.Enabled {
		return errors.Newf("no database output enabled, enable either sqlite or mysql").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if output.SQLite.Enabled && output.MySQL.Enabled {
		return errors.Newf("only one database output may be enabled at a time").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if output.SQLite.Enabled && output.SQLite.Path == "" {
		return fmt.Errorf("sqlite output enabled but path is empty")
	}
	return nil
}
