package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	mw "github.com/iscle/haven-go/internal/api/middleware"
	"github.com/iscle/haven-go/internal/buildinfo"
	"github.com/iscle/haven-go/internal/datastore"
	"github.com/iscle/haven-go/internal/logger"
	"github.com/iscle/haven-go/internal/model"
	"github.com/iscle/haven-go/internal/observability"
	"github.com/iscle/haven-go/internal/observability/metrics"
)

// WallpaperService is the part of wallpaper.Service the API exposes.
type WallpaperService interface {
	GetRandomPhoto(ctx context.Context, query string, includeFavorites bool) (*model.Photo, error)
	RecordShown(ctx context.Context, photo *model.Photo) error
	ToggleFavorite(ctx context.Context, photoID string) (bool, error)
	IsFavorite(ctx context.Context, photoID string) (bool, error)
	GetFavorites(ctx context.Context) ([]model.Photo, error)
	History(ctx context.Context) ([]model.HistoryRecord, error)
	ObserveHistory(ctx context.Context) (<-chan []model.HistoryRecord, error)
	ClearHistory(ctx context.Context) error
	ClearPhotoCache(ctx context.Context) error
	CacheStats(ctx context.Context, query string) (datastore.CacheStats, error)
}

// Server is the HTTP presentation boundary of the wallpaper service.
type Server struct {
	echo    *echo.Echo
	config  *Config
	service WallpaperService
	log     logger.Logger
	metrics *observability.Metrics
	build   *buildinfo.Context

	// ctx is the base context of every request; cancelling it ends open streams
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) { s.log = l }
}

// WithMetrics enables request metrics and the /metrics endpoint.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// WithBuildInfo sets the version reported by the health endpoint.
func WithBuildInfo(b *buildinfo.Context) ServerOption {
	return func(s *Server) { s.build = b }
}

// New creates a new HTTP server for service.
func New(cfg *Config, service WallpaperService, opts ...ServerOption) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}
	if service == nil {
		return nil, fmt.Errorf("wallpaper service is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:    cfg,
		service:   service,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Global().Module("api")
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Debug = cfg.Debug
	s.echo.HTTPErrorHandler = s.errorHandler

	s.echo.Server.ReadTimeout = cfg.ReadTimeout
	s.echo.Server.IdleTimeout = cfg.IdleTimeout
	s.echo.Server.BaseContext = func(net.Listener) context.Context { return s.ctx }

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// setupMiddleware configures the Echo middleware stack.
func (s *Server) setupMiddleware() {
	// Recovery middleware - should be first
	s.echo.Use(echomw.Recover())
	s.echo.Use(mw.NewRequestID())
	s.echo.Use(mw.NewRequestLoggerWithSkipper(s.log, func(c echo.Context) bool {
		return c.Path() == "/metrics"
	}))

	var httpMetrics *metrics.HTTPMetrics
	if s.metrics != nil {
		httpMetrics = s.metrics.HTTP
	}
	s.echo.Use(mw.NewHTTPMetrics(httpMetrics))

	security := mw.DefaultSecurityConfig()
	security.AllowedOrigins = s.config.AllowedOrigins
	s.echo.Use(mw.NewCORS(security))
	s.echo.Use(mw.NewBodyLimit(s.config.BodyLimit))
	s.echo.Use(mw.NewSecureHeaders(security))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	v1 := s.echo.Group("/api/v1")
	v1.GET("/health", s.healthCheck)

	v1.GET("/photos/random", s.randomPhoto)

	v1.GET("/history", s.listHistory)
	v1.POST("/history", s.recordShown)
	v1.DELETE("/history", s.clearHistory)
	v1.GET("/history/stream", s.streamHistory)

	v1.GET("/favorites", s.listFavorites)
	v1.GET("/favorites/:id", s.favoriteStatus)
	v1.POST("/favorites/:id/toggle", s.toggleFavorite)

	v1.DELETE("/cache", s.clearCache)
	v1.GET("/cache/stats", s.cacheStats)
}

// healthCheck handles the server health check endpoint.
func (s *Server) healthCheck(c echo.Context) error {
	uptime := time.Since(s.startTime)

	return c.JSON(http.StatusOK, map[string]any{
		"status":         "healthy",
		"version":        s.build.GetVersion(),
		"build_date":     s.build.GetBuildDate(),
		"uptime":         uptime.String(),
		"uptime_seconds": uptime.Seconds(),
		"streams":        int(s.httpMetrics().ActiveSSEConnections()),
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server starting", logger.String("address", s.config.Listen))
		errCh <- s.echo.Start(s.config.Listen)
	}()

	select {
	case err := <-errCh:
		s.cancel()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	if err := s.Shutdown(); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown ends open streams and gracefully stops the server.
func (s *Server) Shutdown() error {
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		s.log.Error("error during server shutdown", logger.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}

	s.log.Info("server shutdown complete")
	return nil
}
