// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Default values shared with components that fall back when no settings are loaded.
const (
	DefaultQuery          = "wallpaper nature"
	DefaultInterval       = 10
	DefaultCity           = "Barcelona"
	DefaultBaseURL        = "https://unsplash.com/"
	DefaultSearchPath     = "napi/search/photos"
	DefaultPageCap        = 50
	DefaultMaxPageRetries = 5
	DefaultPerPage        = 20
	DefaultMaxRetries     = 3
	DefaultInitialDelay   = 500 * time.Millisecond
	DefaultMaxDelay       = 8 * time.Second
	DefaultJitter         = 0.1
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "Haven")

	viper.SetDefault("photos.query", DefaultQuery)
	viper.SetDefault("photos.interval", DefaultInterval)
	viper.SetDefault("photos.includefavorites", true)
	viper.SetDefault("photos.baseurl", DefaultBaseURL)
	viper.SetDefault("photos.searchpath", DefaultSearchPath)
	viper.SetDefault("photos.accesskey", "")
	viper.SetDefault("photos.pagecap", DefaultPageCap)
	viper.SetDefault("photos.maxpageretries", DefaultMaxPageRetries)
	viper.SetDefault("photos.perpage", DefaultPerPage)
	viper.SetDefault("photos.ratelimit", 50)
	viper.SetDefault("photos.timeout", 15*time.Second)

	viper.SetDefault("retry.maxretries", DefaultMaxRetries)
	viper.SetDefault("retry.initialdelay", DefaultInitialDelay)
	viper.SetDefault("retry.maxdelay", DefaultMaxDelay)
	viper.SetDefault("retry.jitter", DefaultJitter)

	viper.SetDefault("cache.favoritesttl", 30*time.Second)

	viper.SetDefault("weather.city", DefaultCity)
	viper.SetDefault("weather.apikey", "")

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "haven.db")

	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "haven")
	viper.SetDefault("output.mysql.password", "secret")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")
	viper.SetDefault("output.mysql.database", "haven")

	viper.SetDefault("webserver.enabled", false)
	viper.SetDefault("webserver.listen", "127.0.0.1:8080")

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.dsn", "")

	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.default_level", "info")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file_output.enabled", false)
	viper.SetDefault("logging.file_output.path", "logs/haven.log")
	viper.SetDefault("logging.file_output.level", "info")
}
