package conf

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestSetDefaultConfig(t *testing.T) {
	resetViper(t)
	setDefaultConfig()

	tests := []struct {
		key      string
		expected any
	}{
		{"photos.query", "wallpaper nature"},
		{"photos.interval", 10},
		{"photos.includefavorites", true},
		{"photos.baseurl", "https://unsplash.com/"},
		{"photos.searchpath", "napi/search/photos"},
		{"photos.pagecap", 50},
		{"photos.maxpageretries", 5},
		{"photos.perpage", 20},
		{"retry.maxretries", 3},
		{"retry.initialdelay", 500 * time.Millisecond},
		{"retry.maxdelay", 8 * time.Second},
		{"retry.jitter", 0.1},
		{"weather.city", "Barcelona"},
		{"output.sqlite.enabled", true},
		{"output.mysql.enabled", false},
		{"webserver.enabled", false},
		{"telemetry.enabled", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.expected, viper.Get(tt.key))
		})
	}
}

func TestDefaultsPassValidation(t *testing.T) {
	resetViper(t)
	setDefaultConfig()

	settings := &Settings{}
	if !assert.NoError(t, viper.Unmarshal(settings)) {
		return
	}
	assert.NoError(t, ValidateSettings(settings))
}
