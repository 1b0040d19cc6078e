// Package wallpaper picks the next wallpaper photo: occasionally a favorite,
// otherwise the next unshown photo of the query's cache, refilling the cache
// from the search API on a miss.
package wallpaper

import (
	"context"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/iscle/haven-go/internal/datastore"
	"github.com/iscle/haven-go/internal/errors"
	"github.com/iscle/haven-go/internal/keylock"
	"github.com/iscle/haven-go/internal/logger"
	"github.com/iscle/haven-go/internal/model"
	"github.com/iscle/haven-go/internal/observability/metrics"
	"github.com/iscle/haven-go/internal/retry"
)

const favoritesCacheKey = "favorites"

// Config tunes the acquisition pipeline.
type Config struct {
	DefaultQuery   string        // used when a caller passes an empty query
	PerPage        int           // photos per fetched page
	ProbePerPage   int           // photos requested when probing for the page count
	PageCap        int           // highest page ever requested
	MaxPageRetries int           // distinct pages tried before giving up
	FavoriteOdds   int           // a favorite is picked with probability 1/FavoriteOdds
	FavoritesTTL   time.Duration // favorites memo lifetime; 0 disables the memo
}

// DefaultConfig returns the default pipeline settings.
func DefaultConfig() Config {
	return Config{
		DefaultQuery:   "wallpaper nature",
		PerPage:        20,
		ProbePerPage:   1,
		PageCap:        50,
		MaxPageRetries: 5,
		FavoriteOdds:   10,
		FavoritesTTL:   30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DefaultQuery == "" {
		c.DefaultQuery = d.DefaultQuery
	}
	if c.PerPage <= 0 {
		c.PerPage = d.PerPage
	}
	if c.ProbePerPage <= 0 {
		c.ProbePerPage = d.ProbePerPage
	}
	if c.PageCap <= 0 {
		c.PageCap = d.PageCap
	}
	if c.MaxPageRetries <= 0 {
		c.MaxPageRetries = d.MaxPageRetries
	}
	if c.FavoriteOdds <= 0 {
		c.FavoriteOdds = d.FavoriteOdds
	}
	return c
}

// intner is the subset of *rand.Rand the service draws from.
type intner interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Service is the presentation boundary of the wallpaper backend.
// Safe for concurrent use.
type Service struct {
	fetcher PhotoFetcher
	cache   CacheStore
	history HistoryStore
	cfg     Config

	rngMu sync.Mutex
	rng   intner

	// fetchLocks serializes miss, fetch and write-back per cache key
	fetchLocks keylock.Map
	favorites  *gocache.Cache // nil when the memo is disabled

	log     logger.Logger
	metrics *metrics.WallpaperMetrics
}

// Option configures a Service.
type Option func(*Service)

// WithRand makes every random choice come from rng.
func WithRand(rng *rand.Rand) Option {
	return func(s *Service) {
		if rng != nil {
			s.rng = rng
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithMetrics enables cache and favorite metrics.
func WithMetrics(m *metrics.WallpaperMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a new Service.
func NewService(fetcher PhotoFetcher, cache CacheStore, history HistoryStore, cfg Config, opts ...Option) *Service {
	s := &Service{
		fetcher: fetcher,
		cache:   cache,
		history: history,
		cfg:     cfg.withDefaults(),
		rng:     globalRand{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Global().Module("wallpaper")
	}
	if s.cfg.FavoritesTTL > 0 {
		// No janitor: expired items are ignored on Get
		s.favorites = gocache.New(s.cfg.FavoritesTTL, 0)
	}
	return s
}

func (s *Service) intN(n int) int {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.IntN(n)
}

func (s *Service) normalizeQuery(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.cfg.DefaultQuery
	}
	return query
}

// GetRandomPhoto returns the next photo for query. With includeFavorites a
// random favorite is returned one time in FavoriteOdds; otherwise the photo
// comes from the cache, which is refilled from the search API on a miss.
// The returned photo is not recorded in the history; call RecordShown.
func (s *Service) GetRandomPhoto(ctx context.Context, query string, includeFavorites bool) (*model.Photo, error) {
	query = s.normalizeQuery(query)
	log := s.log.WithContext(ctx).With(logger.String("query", query))

	if includeFavorites {
		photo, err := s.pickFavorite(ctx)
		if err != nil {
			return nil, wrapError(err, "pick_favorite", query)
		}
		if photo != nil {
			s.metrics.RecordFavoritePick()
			log.Debug("showing a favorite", logger.String("photo_id", photo.ID))
			return photo, nil
		}
	}

	photo, err := s.cache.GetRandomCachedPhoto(ctx, query)
	if err != nil {
		return nil, wrapError(err, "cache_read", query)
	}
	if photo != nil {
		s.metrics.RecordCacheHit()
		return photo, nil
	}

	unlock := s.fetchLocks.Lock(model.CacheKey(query))
	defer unlock()

	// A concurrent caller may have refilled the cache while we waited
	photo, err = s.cache.GetRandomCachedPhoto(ctx, query)
	if err != nil {
		return nil, wrapError(err, "cache_read", query)
	}
	if photo != nil {
		s.metrics.RecordCacheHit()
		return photo, nil
	}

	s.metrics.RecordCacheMiss()
	log.Debug("cache miss, fetching photos")

	return s.fetchAndCache(ctx, query)
}

// pickFavorite returns nil unless favorites exist and the odds come up.
func (s *Service) pickFavorite(ctx context.Context) (*model.Photo, error) {
	favorites, err := s.loadFavorites(ctx)
	if err != nil {
		return nil, err
	}
	if len(favorites) == 0 || s.intN(s.cfg.FavoriteOdds) != 0 {
		return nil, nil
	}
	photo := favorites[s.intN(len(favorites))]
	return &photo, nil
}

func (s *Service) loadFavorites(ctx context.Context) ([]model.Photo, error) {
	if s.favorites != nil {
		if cached, found := s.favorites.Get(favoritesCacheKey); found {
			if favorites, ok := cached.([]model.Photo); ok {
				return favorites, nil
			}
		}
	}

	favorites, err := s.history.GetFavorites(ctx)
	if err != nil {
		return nil, err
	}
	if s.favorites != nil {
		s.favorites.Set(favoritesCacheKey, favorites, gocache.DefaultExpiration)
	}
	return favorites, nil
}

func (s *Service) invalidateFavorites() {
	if s.favorites != nil {
		s.favorites.Delete(favoritesCacheKey)
	}
}

// fetchAndCache runs the fetch pipeline: probe the page count, then try up
// to MaxPageRetries distinct random pages until one has landscape photos,
// cache them and return one at random. A page whose retries ran out counts
// as an empty page; any other fetch failure aborts.
func (s *Service) fetchAndCache(ctx context.Context, query string) (*model.Photo, error) {
	log := s.log.WithContext(ctx).With(logger.String("query", query))

	probe, err := s.fetcher.Search(ctx, query, 1, s.cfg.ProbePerPage)
	if err != nil {
		return nil, wrapError(err, "probe", query)
	}
	if probe.TotalPages == 0 || len(probe.Results) == 0 {
		return nil, emptyResultError(ErrNoPhotosFound, query)
	}

	maxPages := min(probe.TotalPages, s.cfg.PageCap)
	remaining := make([]int, maxPages)
	for i := range remaining {
		remaining[i] = i + 1
	}

	var lastErr error
	fetched := false
	attempts := min(s.cfg.MaxPageRetries, maxPages)
	for range attempts {
		idx := s.intN(len(remaining))
		page := remaining[idx]
		remaining = append(remaining[:idx], remaining[idx+1:]...)

		result, err := s.fetcher.Search(ctx, query, page, s.cfg.PerPage)
		if err != nil {
			var exhausted *retry.ExhaustedError
			if ctx.Err() != nil || !errors.As(err, &exhausted) {
				return nil, wrapError(err, "fetch_page", query)
			}
			log.Warn("page fetch failed, trying another page",
				logger.Int("page", page),
				logger.Int("attempts", exhausted.Attempts),
				logger.Error(err))
			lastErr = err
			continue
		}
		fetched = true

		landscape := model.FilterLandscape(result.Results)
		if len(landscape) == 0 {
			log.Debug("page has no landscape photos",
				logger.Int("page", page),
				logger.Int("results", len(result.Results)))
			continue
		}

		// The returned photo goes in already shown so the next draw skips it.
		photo := landscape[s.intN(len(landscape))]
		if err := s.cache.CachePhotos(ctx, query, landscape, photo.ID); err != nil {
			return nil, wrapError(err, "cache_write", query)
		}

		log.Info("cache refilled",
			logger.Int("page", page),
			logger.Int("max_pages", maxPages),
			logger.Int("photos", len(landscape)))

		return &photo, nil
	}

	if !fetched && lastErr != nil {
		return nil, wrapError(lastErr, "fetch_page", query)
	}
	return nil, emptyResultError(ErrNoLandscapePhotos, query, "pages_tried", attempts)
}

// RecordShown adds photo to the history or bumps its view count.
func (s *Service) RecordShown(ctx context.Context, photo *model.Photo) error {
	if err := s.history.AddOrUpdate(ctx, photo); err != nil {
		return err
	}
	s.invalidateFavorites()
	s.refreshHistoryGauge(ctx)
	return nil
}

func (s *Service) refreshHistoryGauge(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	count, err := s.history.Count(ctx)
	if err != nil {
		s.log.Debug("failed to count history", logger.Error(err))
		return
	}
	s.metrics.SetHistoryRecords(count)
}

// ToggleFavorite flips the favorite flag of a shown photo.
func (s *Service) ToggleFavorite(ctx context.Context, photoID string) (bool, error) {
	favorite, err := s.history.ToggleFavorite(ctx, photoID)
	if err != nil {
		return false, err
	}
	s.invalidateFavorites()
	return favorite, nil
}

// IsFavorite reports whether photoID is a favorite.
func (s *Service) IsFavorite(ctx context.Context, photoID string) (bool, error) {
	return s.history.IsFavorite(ctx, photoID)
}

// GetFavorites returns favorite photos, most recent first.
func (s *Service) GetFavorites(ctx context.Context) ([]model.Photo, error) {
	favorites, err := s.loadFavorites(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(favorites), nil
}

// History returns every history record, most recent first.
func (s *Service) History(ctx context.Context) ([]model.HistoryRecord, error) {
	return s.history.GetAll(ctx)
}

// ObserveHistory streams history snapshots until ctx is done.
func (s *Service) ObserveHistory(ctx context.Context) (<-chan []model.HistoryRecord, error) {
	return s.history.Observe(ctx)
}

// ClearHistory deletes the history, favorites included.
func (s *Service) ClearHistory(ctx context.Context) error {
	if err := s.history.Clear(ctx); err != nil {
		return err
	}
	s.invalidateFavorites()
	s.metrics.SetHistoryRecords(0)
	return nil
}

// ClearPhotoCache deletes every cached photo.
func (s *Service) ClearPhotoCache(ctx context.Context) error {
	return s.cache.ClearCache(ctx)
}

// CacheStats describes the cache entry for query.
func (s *Service) CacheStats(ctx context.Context, query string) (datastore.CacheStats, error) {
	return s.cache.Stats(ctx, s.normalizeQuery(query))
}

// IsEmptyResult reports whether err means the search had nothing to show.
func IsEmptyResult(err error) bool {
	return errors.Is(err, ErrNoPhotosFound) || errors.Is(err, ErrNoLandscapePhotos)
}
