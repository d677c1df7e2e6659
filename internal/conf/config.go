// config.go: This file contains the configuration for the trackguard application. It defines the settings struct and functions to load and save the settings.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

//go:embed config.yaml
var configFiles embed.FS

// LogConfig contains settings for a rotating log file.
type LogConfig struct {
	Enabled bool   // true to enable this log
	Path    string // path to log file
}

// MainSettings contains general application settings.
type MainSettings struct {
	Name string    // name of the node
	Log  LogConfig // main log settings
}

// SpotifySettings contains credentials and token storage for the playback provider.
type SpotifySettings struct {
	ClientID     string `yaml:"clientid"`     // Spotify application client ID
	ClientSecret string `yaml:"clientsecret"` // optional, PKCE is used when empty
	RedirectURI  string `yaml:"redirecturi"`  // OAuth redirect URI
	TokenPath    string `yaml:"tokenpath"`    // path to cached OAuth token
}

// MonitorSettings contains settings for the playback polling loop and actions.
type MonitorSettings struct {
	PollInterval            int     // playback poll interval in seconds
	BackoffMultiplier       float64 // rate limit backoff multiplier
	MaxBackoff              int     // maximum backoff in seconds
	AutoSkip                bool    // skip tracks by artificial artists
	RemoveFromUserPlaylists bool    // remove flagged tracks from user owned playlists
	BlockedPlaylist         string  // name of playlist collecting flagged tracks, empty to disable
	ActionThreshold         float64 // minimum decision confidence before actions run
	ActionRetries           int     // provider action retry attempts
}

// BandPolicySettings controls how nominal "band" signals are treated.
type BandPolicySettings struct {
	VirtualOrFictionalIsArtificial bool `yaml:"virtualorfictionalisartificial"`
}

// ClassificationSettings contains settings for the decision engine.
type ClassificationSettings struct {
	MinSourceAgreement int                // sources that must agree before a label is accepted
	CacheDuration      int                // decision cache TTL in seconds
	Timeout            int                // upper bound for one classification pass in seconds
	FallbackThreshold  float64            // confidence below which the LLM fallback runs
	BandPolicy         BandPolicySettings // band policy settings
}

// WikidataSettings contains settings for the Wikidata SPARQL source.
type WikidataSettings struct {
	Enabled   bool
	Endpoint  string // SPARQL endpoint URL
	UserAgent string // sent with every query per Wikimedia etiquette
	Timeout   int    // query timeout in seconds
}

// MusicBrainzSettings contains settings for the MusicBrainz source.
type MusicBrainzSettings struct {
	Enabled            bool
	Endpoint           string  // API base URL
	UserAgent          string  // required by MusicBrainz API etiquette
	Timeout            int     // request timeout in seconds
	RateLimitPerSecond float64 `yaml:"ratelimitpersecond"` // MusicBrainz requires <=1/sec
	MinTagCount        int     `yaml:"mintagcount"`        // minimum tag vote count to consider, filters noise
}

// LastFMSettings contains settings for the Last.fm source.
type LastFMSettings struct {
	Enabled      bool
	APIKey       string `yaml:"apikey"`
	SharedSecret string `yaml:"sharedsecret"`
	Timeout      int    // request timeout in seconds
	MaxTopTags   int    `yaml:"maxtoptags"` // top tags considered per artist, filters long tail noise
}

// SourcesSettings groups the knowledge source adapters.
type SourcesSettings struct {
	Wikidata    WikidataSettings
	MusicBrainz MusicBrainzSettings `yaml:"musicbrainz"`
	LastFM      LastFMSettings      `yaml:"lastfm"`
}

// OllamaSettings contains settings for the local LLM fallback.
type OllamaSettings struct {
	Enabled     bool
	Host        string // Ollama host URL
	Model       string // model name
	KeepAlive   string `yaml:"keepalive"` // model keep alive duration
	Seed        int    // fixed sampling seed for reproducible output
	Temperature float64
	NumPredict  int    `yaml:"numpredict"` // output token budget
	Timeout     int    // request timeout in seconds
	PromptPath  string `yaml:"promptpath"` // prompt template file, embedded default when empty
}

// WebServerSettings contains settings for the review API server.
type WebServerSettings struct {
	Enabled bool
	Host    string
	Port    string
	Log     LogConfig
}

// SQLiteSettings contains settings for the SQLite store.
type SQLiteSettings struct {
	Enabled bool
	Path    string
}

// MySQLSettings contains settings for the MySQL store.
type MySQLSettings struct {
	Enabled  bool
	Username string
	Password string
	Database string
	Host     string
	Port     int
}

// OutputSettings groups the persistence backends.
type OutputSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// Settings is the root configuration structure.
type Settings struct {
	Debug bool // true to enable debug logging

	Main           MainSettings
	Spotify        SpotifySettings
	Monitor        MonitorSettings
	Classification ClassificationSettings
	Sources        SourcesSettings
	Ollama         OllamaSettings
	WebServer      WebServerSettings `yaml:"webserver"`
	Output         OutputSettings
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into the settings struct.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	// Initialize viper and read config
	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	// Unmarshal the config into settings
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	// Validate settings
	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Credentials can come from the environment, e.g. TRACKGUARD_SPOTIFY_CLIENTID.
	// Nested keys use dots internally, the replacer maps them to underscores.
	viper.SetEnvPrefix("trackguard")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set default values for each configuration parameter
	// function defined in defaults.go
	setDefaultConfig()

	// Read configuration file
	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create config with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig creates a default config file and writes it to the default config path
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")
	defaultConfig := getDefaultConfig()

	// Create directories for config file
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	// Write default config file
	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}
	return string(data)
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, initializing it if necessary
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			_, err := Load()
			if err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// SaveSettings saves the current settings to the configuration file.
func SaveSettings() error {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()

	settingsCopy := *settingsInstance

	configPath, err := FindConfigFile()
	if err != nil {
		return fmt.Errorf("error finding config file: %w", err)
	}

	if err := SaveYAMLConfig(configPath, &settingsCopy); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}

	log.Printf("Settings saved successfully to %s", configPath)
	return nil
}

// SaveYAMLConfig updates the YAML configuration file with new settings.
// It overwrites the existing file, not preserving comments or structure.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	// Write to a temporary file first to keep the write atomic
	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		_ = os.Remove(tempFileName)
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		_ = os.Remove(tempFileName)
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		_ = os.Remove(tempFileName)
		return fmt.Errorf("error replacing config file: %w", err)
	}

	return nil
}

// FindConfigFile locates the active config file from the default search paths.
func FindConfigFile() (string, error) {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return "", fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		configPath := filepath.Join(path, "config.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}
	}

	return "", fmt.Errorf("config file not found in search paths")
}

// GetDefaultConfigPaths returns the platform specific config file search paths.
func GetDefaultConfigPaths() ([]string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("error resolving user config directory: %w", err)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error resolving user home directory: %w", err)
	}

	return []string{
		filepath.Join(configDir, "trackguard"),
		filepath.Join(homeDir, ".trackguard"),
		".",
	}, nil
}
