package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetViper isolates tests that go through the global viper instance.
func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	resetViper(t)

	path := writeConfig(t, `
photos:
  query: "mountain lake"
  interval: 30
  includefavorites: false
  accesskey: "abc123"
retry:
  maxretries: 5
  initialdelay: 250ms
  maxdelay: 4s
weather:
  city: "Lisbon"
`)

	settings, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "mountain lake", settings.Photos.Query)
	assert.Equal(t, 30, settings.Photos.Interval)
	assert.Equal(t, 30*time.Second, settings.RotationInterval())
	assert.False(t, settings.Photos.IncludeFavorites)
	assert.Equal(t, "abc123", settings.Photos.AccessKey)
	assert.Equal(t, 5, settings.Retry.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, settings.Retry.InitialDelay)
	assert.Equal(t, 4*time.Second, settings.Retry.MaxDelay)
	assert.Equal(t, "Lisbon", settings.Weather.City)

	// Untouched keys keep their defaults
	assert.Equal(t, DefaultPageCap, settings.Photos.PageCap)
	assert.InDelta(t, DefaultJitter, settings.Retry.Jitter, 1e-9)
	assert.Same(t, settings, GetSettings())
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	resetViper(t)
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	settings, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultQuery, settings.Photos.Query)
	assert.Equal(t, DefaultInterval, settings.Photos.Interval)
	assert.True(t, settings.Photos.IncludeFavorites)
	assert.Equal(t, DefaultCity, settings.Weather.City)
	assert.Equal(t, DefaultBaseURL, settings.Photos.BaseURL)
	assert.Equal(t, DefaultSearchPath, settings.Photos.SearchPath)
	assert.Equal(t, DefaultMaxRetries, settings.Retry.MaxRetries)
	assert.Equal(t, DefaultInitialDelay, settings.Retry.InitialDelay)
	assert.Equal(t, DefaultMaxDelay, settings.Retry.MaxDelay)
	assert.True(t, settings.Output.SQLite.Enabled)
	assert.Equal(t, "info", settings.Logging.DefaultLevel)
	require.NotNil(t, settings.Logging.Console)
	assert.True(t, settings.Logging.Console.Enabled)
}

func TestEnvironmentOverrides(t *testing.T) {
	resetViper(t)
	t.Setenv("HAVEN_PHOTOS_QUERY", "desert dunes")
	t.Setenv("HAVEN_RETRY_MAXRETRIES", "7")
	t.Setenv("HAVEN_PHOTOS_INCLUDEFAVORITES", "false")

	settings, err := Load(writeConfig(t, "photos:\n  query: ignored\n"))
	require.NoError(t, err)

	assert.Equal(t, "desert dunes", settings.Photos.Query)
	assert.Equal(t, 7, settings.Retry.MaxRetries)
	assert.False(t, settings.Photos.IncludeFavorites)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	resetViper(t)

	_, err := Load(writeConfig(t, "retry:\n  maxretries: 11\n"))
	require.Error(t, err)

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Error(), "max retries")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	resetViper(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestSaveYAMLConfigRoundTrip(t *testing.T) {
	resetViper(t)

	settings, err := Load(writeConfig(t, "photos:\n  query: forest\n"))
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, SaveYAMLConfig(out, settings))

	viper.Reset()
	reloaded, err := Load(out)
	require.NoError(t, err)
	assert.Equal(t, "forest", reloaded.Photos.Query)
	assert.Equal(t, settings.Retry, reloaded.Retry)

	// No temp files left behind
	entries, err := os.ReadDir(filepath.Dir(out))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestGetDefaultConfigPaths(t *testing.T) {
	t.Setenv("HOME", "/home/tester")

	paths := GetDefaultConfigPaths()
	assert.Equal(t, []string{".", "/home/tester/.config/haven", "/etc/haven"}, paths)
}
