package conf

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultConfigIsValid guards against shipping defaults that refuse to
// start: a fresh install must come up without any hand editing.
func TestDefaultConfigIsValid(t *testing.T) {
	viper.Reset()
	setDefaultConfig()

	settings := &Settings{}
	require.NoError(t, viper.Unmarshal(settings))
	require.NoError(t, ValidateSettings(settings))

	// Last.fm needs an API key, so it must ship disabled.
	assert.False(t, settings.Sources.LastFM.Enabled)
	assert.True(t, settings.Sources.Wikidata.Enabled)
	assert.True(t, settings.Sources.MusicBrainz.Enabled)
	assert.NotEmpty(t, settings.Sources.Wikidata.UserAgent)
}

// Nested keys are reachable through TRACKGUARD_ environment variables with
// underscores standing in for the config dots.
func TestLoadEnvOverridesNestedKeys(t *testing.T) {
	viper.Reset()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("TRACKGUARD_SPOTIFY_CLIENTID", "client-from-env")
	t.Setenv("TRACKGUARD_SOURCES_LASTFM_APIKEY", "key-from-env")

	settings, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "client-from-env", settings.Spotify.ClientID)
	assert.Equal(t, "key-from-env", settings.Sources.LastFM.APIKey)
}
