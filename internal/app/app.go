// Package app wires settings into the running components: the store, the
// search client, the wallpaper service and their metrics.
package app

import (
	"fmt"

	"github.com/iscle/haven-go/internal/buildinfo"
	"github.com/iscle/haven-go/internal/conf"
	"github.com/iscle/haven-go/internal/datastore"
	"github.com/iscle/haven-go/internal/errors"
	"github.com/iscle/haven-go/internal/httpclient"
	"github.com/iscle/haven-go/internal/logger"
	"github.com/iscle/haven-go/internal/observability"
	"github.com/iscle/haven-go/internal/retry"
	"github.com/iscle/haven-go/internal/unsplash"
	"github.com/iscle/haven-go/internal/wallpaper"
)

// App owns every component opened for one command invocation.
type App struct {
	Settings *conf.Settings
	Build    *buildinfo.Context
	Metrics  *observability.Metrics
	Service  *wallpaper.Service

	store   *datastore.Store
	history *datastore.HistoryRepository
	client  *unsplash.Client
	module  func(name string) logger.Logger
	log     logger.Logger
}

type options struct {
	http *httpclient.Client
	log  logger.Logger
}

// Option configures New.
type Option func(*options)

// WithHTTPClient replaces the HTTP client used for photo searches.
func WithHTTPClient(c *httpclient.Client) Option {
	return func(o *options) { o.http = c }
}

// WithLogger sets the base logger; components log through its modules.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// New opens the configured store and builds the service on top of it.
// Callers must Close the returned App.
func New(settings *conf.Settings, build *buildinfo.Context, opts ...Option) (*App, error) {
	if settings == nil {
		return nil, errors.Newf("settings are required").
			Component("app").
			Category(errors.CategoryConfiguration).
			Build()
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	module := func(name string) logger.Logger {
		if o.log != nil {
			return o.log.Module(name)
		}
		return logger.Global().Module(name)
	}

	m, err := observability.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	store, err := datastore.Open(settings,
		datastore.WithLogger(module("datastore")),
		datastore.WithMetrics(m.Datastore),
	)
	if err != nil {
		return nil, err
	}

	httpClient := o.http
	if httpClient == nil {
		httpClient = httpclient.New(&httpclient.Config{
			DefaultTimeout: settings.Photos.Timeout,
			UserAgent:      userAgent(settings, build),
		})
	}

	client, err := unsplash.NewClient(ClientConfig(settings), RetryPolicy(settings),
		unsplash.WithHTTPClient(httpClient),
		unsplash.WithLogger(module("unsplash")),
		unsplash.WithMetrics(m.Wallpaper),
	)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	cache := datastore.NewPhotoCacheRepository(store)
	history := datastore.NewHistoryRepository(store)

	svc := wallpaper.NewService(client, cache, history, ServiceConfig(settings),
		wallpaper.WithLogger(module("wallpaper")),
		wallpaper.WithMetrics(m.Wallpaper),
	)

	return &App{
		Settings: settings,
		Build:    build,
		Metrics:  m,
		Service:  svc,
		store:    store,
		history:  history,
		client:   client,
		module:   module,
		log:      module("app"),
	}, nil
}

// Close releases the client, the history observers and the store.
func (a *App) Close() error {
	a.client.Close()
	a.history.Close()
	if err := a.store.Close(); err != nil {
		a.log.Warn("failed to close store", logger.Error(err))
		return err
	}
	return nil
}

// Logger returns the logger for the named module.
func (a *App) Logger(module string) logger.Logger {
	return a.module(module)
}

// ServiceConfig maps settings onto the wallpaper service configuration.
func ServiceConfig(settings *conf.Settings) wallpaper.Config {
	cfg := wallpaper.DefaultConfig()
	if settings.Photos.Query != "" {
		cfg.DefaultQuery = settings.Photos.Query
	}
	if settings.Photos.PerPage > 0 {
		cfg.PerPage = settings.Photos.PerPage
	}
	if settings.Photos.PageCap > 0 {
		cfg.PageCap = settings.Photos.PageCap
	}
	if settings.Photos.MaxPageRetries > 0 {
		cfg.MaxPageRetries = settings.Photos.MaxPageRetries
	}
	cfg.FavoritesTTL = settings.Cache.FavoritesTTL
	return cfg
}

// ClientConfig maps settings onto the search client configuration.
func ClientConfig(settings *conf.Settings) unsplash.Config {
	return unsplash.Config{
		BaseURL:    settings.Photos.BaseURL,
		SearchPath: settings.Photos.SearchPath,
		AccessKey:  settings.Photos.AccessKey,
		RateLimit:  settings.Photos.RateLimit,
		Timeout:    settings.Photos.Timeout,
	}
}

// RetryPolicy maps settings onto the search retry policy.
func RetryPolicy(settings *conf.Settings) retry.Policy {
	return retry.Policy{
		MaxRetries:   settings.Retry.MaxRetries,
		InitialDelay: settings.Retry.InitialDelay,
		MaxDelay:     settings.Retry.MaxDelay,
		Jitter:       settings.Retry.Jitter,
	}
}

func userAgent(settings *conf.Settings, build *buildinfo.Context) string {
	name := settings.Main.Name
	if name == "" {
		name = "Haven"
	}
	return name + "/" + build.GetVersion()
}
