package wallpaper

import (
	"context"

	"github.com/iscle/haven-go/internal/datastore"
	"github.com/iscle/haven-go/internal/model"
	"github.com/iscle/haven-go/internal/unsplash"
)

// PhotoFetcher searches the remote photo API.
type PhotoFetcher interface {
	Search(ctx context.Context, query string, page, perPage int) (*unsplash.SearchResult, error)
}

// CacheStore is the query-scoped photo cache.
type CacheStore interface {
	HasCachedPhotos(ctx context.Context, query string) (bool, error)
	GetRandomCachedPhoto(ctx context.Context, query string) (*model.Photo, error)
	// CachePhotos replaces the entry for query; shownIDs start out shown.
	CachePhotos(ctx context.Context, query string, photos []model.Photo, shownIDs ...string) error
	ClearCache(ctx context.Context) error
	Stats(ctx context.Context, query string) (datastore.CacheStats, error)
}

// HistoryStore is the shown-photos log with favorites.
type HistoryStore interface {
	AddOrUpdate(ctx context.Context, photo *model.Photo) error
	ToggleFavorite(ctx context.Context, photoID string) (bool, error)
	IsFavorite(ctx context.Context, photoID string) (bool, error)
	GetFavorites(ctx context.Context) ([]model.Photo, error)
	GetAll(ctx context.Context) ([]model.HistoryRecord, error)
	Observe(ctx context.Context) (<-chan []model.HistoryRecord, error)
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
}

var (
	_ CacheStore   = (*datastore.PhotoCacheRepository)(nil)
	_ HistoryStore = (*datastore.HistoryRepository)(nil)
	_ PhotoFetcher = (*unsplash.Client)(nil)
)
