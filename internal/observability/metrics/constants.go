package metrics

// Operation labels used by the store metrics.
const (
	OpHasCached    = "has_cached"
	OpDrawPhoto    = "draw_photo"
	OpCachePhotos  = "cache_photos"
	OpClearCache   = "clear_cache"
	OpCacheStats   = "cache_stats"
	OpAddOrUpdate  = "add_or_update"
	OpToggleFav    = "toggle_favorite"
	OpIsFavorite   = "is_favorite"
	OpGetFavorites = "get_favorites"
	OpGetHistory   = "get_history"
	OpClearHistory = "clear_history"
	OpCountHistory = "count_history"
)

// Table labels.
const (
	TablePhotoCache = "photo_cache"
	TableHistory    = "wallpaper_history"
)

// Histogram bucket parameters.
const (
	BucketStart1ms = 0.001
	BucketFactor2  = 2.0
	BucketCount15  = 15
)
