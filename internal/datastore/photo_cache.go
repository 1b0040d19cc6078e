package datastore

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/iscle/haven-go/internal/errors"
	"github.com/iscle/haven-go/internal/keylock"
	"github.com/iscle/haven-go/internal/logger"
	"github.com/iscle/haven-go/internal/model"
	"github.com/iscle/haven-go/internal/observability/metrics"
)

// ExpiryDuration is how long a cache entry stays valid after it was written.
const ExpiryDuration = 24 * time.Hour

const insertBatchSize = 100

// CacheStats describes one cache entry.
type CacheStats struct {
	Key      string    `json:"key"`
	Exists   bool      `json:"exists"`
	CachedAt time.Time `json:"cached_at,omitzero"`
	Expired  bool      `json:"expired"`
	Total    int       `json:"total"`
	Shown    int       `json:"shown"`
}

// PhotoCacheRepository stores fetched photos per normalized query and hands
// them out in random order without repeats until the rotation is exhausted.
// Operations on the same key are serialized.
type PhotoCacheRepository struct {
	store *Store
	db    *gorm.DB
	locks keylock.Map
	now   func() time.Time
	log   logger.Logger

	rngMu sync.Mutex
	rng   *rand.Rand // nil uses the global source
}

// CacheOption configures a PhotoCacheRepository.
type CacheOption func(*PhotoCacheRepository)

// WithClock replaces the wall clock used for expiry.
func WithClock(now func() time.Time) CacheOption {
	return func(r *PhotoCacheRepository) { r.now = now }
}

// WithRand makes draws deterministic.
func WithRand(rng *rand.Rand) CacheOption {
	return func(r *PhotoCacheRepository) { r.rng = rng }
}

// NewPhotoCacheRepository creates a new PhotoCacheRepository.
func NewPhotoCacheRepository(store *Store, opts ...CacheOption) *PhotoCacheRepository {
	r := &PhotoCacheRepository{
		store: store,
		db:    store.db,
		now:   time.Now,
		log:   store.log.Module("cache"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *PhotoCacheRepository) intN(n int) int {
	if r.rng == nil {
		return rand.IntN(n)
	}
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	return r.rng.IntN(n)
}

func (r *PhotoCacheRepository) expired(meta *CacheMetadata) bool {
	return r.now().Sub(meta.CachedAt) > ExpiryDuration
}

// loadMetadata returns nil when the key has no entry.
func loadMetadata(tx *gorm.DB, key string) (*CacheMetadata, error) {
	var meta CacheMetadata
	err := tx.Where("cache_key = ?", key).Take(&meta).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

// deleteEntry removes the entry with its photos and shown markers.
func deleteEntry(tx *gorm.DB, key string) error {
	if err := tx.Where("cache_key = ?", key).Delete(&ShownPhoto{}).Error; err != nil {
		return err
	}
	if err := tx.Where("cache_key = ?", key).Delete(&PhotoCache{}).Error; err != nil {
		return err
	}
	return tx.Where("cache_key = ?", key).Delete(&CacheMetadata{}).Error
}

// HasCachedPhotos reports whether a non-expired entry with at least one photo
// exists for query. An expired entry is deleted.
func (r *PhotoCacheRepository) HasCachedPhotos(ctx context.Context, query string) (has bool, err error) {
	start := time.Now()
	defer func() { r.store.observe(metrics.OpHasCached, metrics.TablePhotoCache, start, err) }()

	key := model.CacheKey(query)
	unlock := r.locks.Lock(key)
	defer unlock()

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		meta, err := loadMetadata(tx, key)
		if err != nil || meta == nil {
			return err
		}
		if r.expired(meta) {
			r.store.metrics.RecordCacheExpired()
			r.log.Debug("cache entry expired", logger.String("cache_key", key))
			return deleteEntry(tx, key)
		}

		var count int64
		if err := tx.Model(&PhotoCache{}).Where("cache_key = ?", key).Count(&count).Error; err != nil {
			return err
		}
		has = count > 0
		return nil
	})
	if err != nil {
		return false, dbError(err, metrics.OpHasCached, "cache_key", key)
	}
	return has, nil
}

// GetRandomCachedPhoto draws a photo not yet shown in the current rotation
// and marks it shown. Once every photo has been shown the rotation restarts.
// A missing, expired, empty or unreadable entry is a miss: nil photo, nil error.
func (r *PhotoCacheRepository) GetRandomCachedPhoto(ctx context.Context, query string) (photo *model.Photo, err error) {
	start := time.Now()
	defer func() { r.store.observe(metrics.OpDrawPhoto, metrics.TablePhotoCache, start, err) }()

	key := model.CacheKey(query)
	unlock := r.locks.Lock(key)
	defer unlock()

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		meta, err := loadMetadata(tx, key)
		if err != nil || meta == nil {
			return err
		}
		if r.expired(meta) {
			r.store.metrics.RecordCacheExpired()
			r.log.Debug("cache entry expired",
				logger.String("cache_key", key),
				logger.Time("cached_at", meta.CachedAt))
			return deleteEntry(tx, key)
		}

		shown := tx.Model(&ShownPhoto{}).Select("photo_id").Where("cache_key = ?", key)
		var candidates []PhotoCache
		if err := tx.Where("cache_key = ? AND photo_id NOT IN (?)", key, shown).
			Order("position ASC").
			Find(&candidates).Error; err != nil {
			return err
		}

		if len(candidates) == 0 {
			if err := tx.Where("cache_key = ?", key).Order("position ASC").Find(&candidates).Error; err != nil {
				return err
			}
			if len(candidates) == 0 {
				return nil
			}
			if err := tx.Where("cache_key = ?", key).Delete(&ShownPhoto{}).Error; err != nil {
				return err
			}
			r.store.metrics.RecordRotationReset()
			r.log.Debug("rotation exhausted, starting over",
				logger.String("cache_key", key),
				logger.Int("photos", len(candidates)))
		}

		picked := candidates[r.intN(len(candidates))]

		var p model.Photo
		if err := json.Unmarshal([]byte(picked.Payload), &p); err != nil {
			r.log.Warn("discarding unreadable cache entry",
				logger.String("cache_key", key),
				logger.String("photo_id", picked.PhotoID),
				logger.Error(err))
			return deleteEntry(tx, key)
		}

		marker := ShownPhoto{CacheKey: key, PhotoID: picked.PhotoID, ShownAt: r.now()}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&marker).Error; err != nil {
			return err
		}

		photo = &p
		return nil
	})
	if err != nil {
		return nil, dbError(err, metrics.OpDrawPhoto, "cache_key", key)
	}
	return photo, nil
}

// CachePhotos replaces the entry for query with photos in one transaction.
// The new entry starts with only shownIDs marked shown; ids not in photos are
// ignored. Duplicate ids keep their first occurrence. Empty input leaves the
// cache untouched.
func (r *PhotoCacheRepository) CachePhotos(ctx context.Context, query string, photos []model.Photo, shownIDs ...string) (err error) {
	key := model.CacheKey(query)
	if len(photos) == 0 {
		r.log.Warn("refusing to cache an empty photo batch", logger.String("cache_key", key))
		return nil
	}

	start := time.Now()
	defer func() {
		r.store.observe(metrics.OpCachePhotos, metrics.TablePhotoCache, start, err)
		r.store.metrics.RecordTransaction(err)
	}()

	rows := make([]PhotoCache, 0, len(photos))
	seen := make(map[string]struct{}, len(photos))
	for i := range photos {
		id := photos[i].ID
		if id == "" {
			return validationError("photo id must not be empty", "photos", i)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		payload, err := json.Marshal(&photos[i])
		if err != nil {
			return errors.New(err).
				Component("datastore").
				Category(errors.CategoryImageCache).
				Context("photo_id", id).
				Build()
		}
		rows = append(rows, PhotoCache{
			CacheKey: key,
			PhotoID:  id,
			Position: len(rows),
			Payload:  string(payload),
		})
	}

	now := r.now()
	var markers []ShownPhoto
	for _, id := range shownIDs {
		if _, ok := seen[id]; !ok {
			continue
		}
		delete(seen, id)
		markers = append(markers, ShownPhoto{CacheKey: key, PhotoID: id, ShownAt: now})
	}

	unlock := r.locks.Lock(key)
	defer unlock()

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteEntry(tx, key); err != nil {
			return err
		}
		meta := CacheMetadata{CacheKey: key, CachedAt: now, PhotoCount: len(rows)}
		if err := tx.Create(&meta).Error; err != nil {
			return err
		}
		if err := tx.CreateInBatches(rows, insertBatchSize).Error; err != nil {
			return err
		}
		if len(markers) == 0 {
			return nil
		}
		return tx.Create(&markers).Error
	})
	if err != nil {
		return dbError(err, metrics.OpCachePhotos, "cache_key", key, "photos", len(rows))
	}

	r.log.Debug("photos cached",
		logger.String("cache_key", key),
		logger.Int("photos", len(rows)),
		logger.Int("duplicates", len(photos)-len(rows)),
		logger.Int("shown", len(markers)))
	return nil
}

// ClearCache deletes every entry.
func (r *PhotoCacheRepository) ClearCache(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { r.store.observe(metrics.OpClearCache, metrics.TablePhotoCache, start, err) }()

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, entity := range []any{&ShownPhoto{}, &PhotoCache{}, &CacheMetadata{}} {
			if err := tx.Where("1 = 1").Delete(entity).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return dbError(err, metrics.OpClearCache)
	}

	r.log.Info("photo cache cleared")
	return nil
}

// Stats describes the entry for query without modifying it.
func (r *PhotoCacheRepository) Stats(ctx context.Context, query string) (stats CacheStats, err error) {
	start := time.Now()
	defer func() { r.store.observe(metrics.OpCacheStats, metrics.TablePhotoCache, start, err) }()

	key := model.CacheKey(query)
	stats.Key = key

	unlock := r.locks.Lock(key)
	defer unlock()

	db := r.db.WithContext(ctx)
	meta, err := loadMetadata(db, key)
	if err != nil {
		return stats, dbError(err, metrics.OpCacheStats, "cache_key", key)
	}
	if meta == nil {
		return stats, nil
	}

	var total, shown int64
	if err := db.Model(&PhotoCache{}).Where("cache_key = ?", key).Count(&total).Error; err != nil {
		return stats, dbError(err, metrics.OpCacheStats, "cache_key", key)
	}
	if err := db.Model(&ShownPhoto{}).Where("cache_key = ?", key).Count(&shown).Error; err != nil {
		return stats, dbError(err, metrics.OpCacheStats, "cache_key", key)
	}

	stats.Exists = true
	stats.CachedAt = meta.CachedAt
	stats.Expired = r.expired(meta)
	stats.Total = int(total)
	stats.Shown = int(shown)
	return stats, nil
}
