// Package conf loads, validates and persists Haven settings.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/iscle/haven-go/internal/logger"
)

// MainSettings contains process-wide settings.
type MainSettings struct {
	Name string `yaml:"name"` // instance name, used as the HTTP User-Agent prefix
}

// PhotoSettings configures photo acquisition and rotation.
type PhotoSettings struct {
	Query            string        `yaml:"query"`            // search query, "wallpaper nature" by default
	Interval         int           `yaml:"interval"`         // rotation interval in seconds
	IncludeFavorites bool          `yaml:"includefavorites"` // occasionally resurface favorites
	BaseURL          string        `yaml:"baseurl"`          // search API base URL
	SearchPath       string        `yaml:"searchpath"`       // search endpoint path relative to BaseURL
	AccessKey        string        `yaml:"accesskey"`        // optional API access key
	PageCap          int           `yaml:"pagecap"`          // deepest result page considered
	MaxPageRetries   int           `yaml:"maxpageretries"`   // distinct pages tried per fetch
	PerPage          int           `yaml:"perpage"`          // photos requested per page
	RateLimit        int           `yaml:"ratelimit"`        // max search requests per minute, 0 disables
	Timeout          time.Duration `yaml:"timeout"`          // per-request timeout
}

// RetrySettings configures transient failure retries for the search API.
type RetrySettings struct {
	MaxRetries   int           `yaml:"maxretries"`   // additional attempts after the first
	InitialDelay time.Duration `yaml:"initialdelay"` // delay before the first retry
	MaxDelay     time.Duration `yaml:"maxdelay"`     // delay ceiling
	Jitter       float64       `yaml:"jitter"`       // multiplicative jitter factor, 0.1 = ±10%
}

// CacheSettings configures in-memory helpers around the persistent cache.
type CacheSettings struct {
	FavoritesTTL time.Duration `yaml:"favoritesttl"` // how long the favorites list is memoized
}

// WeatherSettings holds the weather widget configuration. The core only
// stores these values for the presentation layer.
type WeatherSettings struct {
	City   string `yaml:"city"`
	APIKey string `yaml:"apikey"`
}

// SQLiteSettings configures the SQLite store.
type SQLiteSettings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MySQLSettings configures the MySQL store.
type MySQLSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Database string `yaml:"database"`
}

// OutputSettings selects the persistent store.
type OutputSettings struct {
	SQLite SQLiteSettings `yaml:"sqlite"`
	MySQL  MySQLSettings  `yaml:"mysql"`
}

// WebServerSettings configures the HTTP API.
type WebServerSettings struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// TelemetrySettings configures optional error reporting.
type TelemetrySettings struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

// Settings contains all configuration options for Haven.
type Settings struct {
	Debug bool `yaml:"debug"`

	Main      MainSettings         `yaml:"main"`
	Photos    PhotoSettings        `yaml:"photos"`
	Retry     RetrySettings        `yaml:"retry"`
	Cache     CacheSettings        `yaml:"cache"`
	Weather   WeatherSettings      `yaml:"weather"`
	Output    OutputSettings       `yaml:"output"`
	WebServer WebServerSettings    `yaml:"webserver"`
	Telemetry TelemetrySettings    `yaml:"telemetry"`
	Logging   logger.LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

// RotationInterval returns the configured rotation interval.
func (s *Settings) RotationInterval() time.Duration {
	return time.Duration(s.Photos.Interval) * time.Second
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file, environment variables and bound flags.
// configFile may be empty, in which case the default search paths are used and
// a missing file is not an error.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper sets defaults, environment handling and reads the config file.
func initViper(configFile string) error {
	setDefaultConfig()

	viper.SetEnvPrefix("HAVEN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("fatal error reading config file %s: %w", configFile, err)
		}
		return nil
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	for _, path := range GetDefaultConfigPaths() {
		viper.AddConfigPath(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Defaults only
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPaths returns the directories searched for config.yaml, in order.
func GetDefaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "haven"))
	}
	return append(paths, "/etc/haven")
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath atomically.
// It overwrites the existing file, not preserving comments or structure.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}

	return nil
}
