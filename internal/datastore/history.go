package datastore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/iscle/haven-go/internal/errors"
	"github.com/iscle/haven-go/internal/events"
	"github.com/iscle/haven-go/internal/logger"
	"github.com/iscle/haven-go/internal/model"
	"github.com/iscle/haven-go/internal/observability/metrics"
)

// MaxHistorySize caps the history table; the oldest records by ShownAt go first.
const MaxHistorySize = 1000

// HistoryRepository records every shown photo with a view count and a
// favorite flag, and streams snapshots of the log to observers.
type HistoryRepository struct {
	store   *Store
	db      *gorm.DB
	now     func() time.Time
	maxSize int
	log     logger.Logger

	// publishMu orders snapshot loads with broker publishes and subscriptions
	publishMu sync.Mutex
	broker    *events.Broker[[]model.HistoryRecord]
}

// HistoryOption configures a HistoryRepository.
type HistoryOption func(*HistoryRepository)

// WithHistoryClock replaces the clock used for ShownAt.
func WithHistoryClock(now func() time.Time) HistoryOption {
	return func(r *HistoryRepository) { r.now = now }
}

// WithMaxHistorySize overrides MaxHistorySize.
func WithMaxHistorySize(n int) HistoryOption {
	return func(r *HistoryRepository) {
		if n > 0 {
			r.maxSize = n
		}
	}
}

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository(store *Store, opts ...HistoryOption) *HistoryRepository {
	r := &HistoryRepository{
		store:   store,
		db:      store.db,
		now:     time.Now,
		maxSize: MaxHistorySize,
		log:     store.log.Module("history"),
		broker:  events.NewBroker[[]model.HistoryRecord](),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Close ends every Observe stream.
func (r *HistoryRepository) Close() {
	r.broker.Close()
}

func (r *HistoryRepository) toRecord(row *WallpaperHistory) (model.HistoryRecord, error) {
	rec := model.HistoryRecord{
		ShownAt:    row.ShownAt,
		IsFavorite: row.IsFavorite,
		TimesShown: row.TimesShown,
	}
	if err := json.Unmarshal([]byte(row.Payload), &rec.Photo); err != nil {
		return rec, err
	}
	return rec, nil
}

// AddOrUpdate records that photo was shown now. A known photo has its count
// incremented; a new one is inserted and the table trimmed to its cap.
func (r *HistoryRepository) AddOrUpdate(ctx context.Context, photo *model.Photo) (err error) {
	if photo == nil || photo.ID == "" {
		return validationError("photo id must not be empty", "photo_id", "")
	}

	start := time.Now()
	defer func() { r.store.observe(metrics.OpAddOrUpdate, metrics.TableHistory, start, err) }()

	payload, err := json.Marshal(photo)
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("photo_id", photo.ID).
			Build()
	}

	var evicted int64
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := r.now()

		res := tx.Model(&WallpaperHistory{}).
			Where("photo_id = ?", photo.ID).
			Updates(map[string]any{
				"times_shown": gorm.Expr("times_shown + 1"),
				"shown_at":    now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}

		row := WallpaperHistory{
			PhotoID:    photo.ID,
			Payload:    string(payload),
			ShownAt:    now,
			TimesShown: 1,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}

		n, evictErr := r.evictExcess(tx)
		evicted = n
		return evictErr
	})
	if err != nil {
		return dbError(err, metrics.OpAddOrUpdate, "photo_id", photo.ID)
	}

	if evicted > 0 {
		r.store.metrics.RecordHistoryEvictions(evicted)
		r.log.Debug("history trimmed", logger.Int64("evicted", evicted), logger.Int("cap", r.maxSize))
	}

	r.publish(ctx)
	return nil
}

// evictExcess deletes the oldest records above the cap.
func (r *HistoryRepository) evictExcess(tx *gorm.DB) (int64, error) {
	var count int64
	if err := tx.Model(&WallpaperHistory{}).Count(&count).Error; err != nil {
		return 0, err
	}
	excess := int(count) - r.maxSize
	if excess <= 0 {
		return 0, nil
	}

	var ids []string
	if err := tx.Model(&WallpaperHistory{}).
		Order("shown_at ASC").
		Order("created_at ASC").
		Limit(excess).
		Pluck("photo_id", &ids).Error; err != nil {
		return 0, err
	}

	res := tx.Where("photo_id IN ?", ids).Delete(&WallpaperHistory{})
	return res.RowsAffected, res.Error
}

// ToggleFavorite flips the favorite flag and returns the new value. An
// unknown id returns false and an error matching ErrHistoryNotFound.
func (r *HistoryRepository) ToggleFavorite(ctx context.Context, photoID string) (favorite bool, err error) {
	start := time.Now()
	defer func() {
		if !errors.Is(err, ErrHistoryNotFound) {
			r.store.observe(metrics.OpToggleFav, metrics.TableHistory, start, err)
		}
	}()

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row WallpaperHistory
		if err := tx.Select("photo_id", "is_favorite").Where("photo_id = ?", photoID).Take(&row).Error; err != nil {
			return err
		}
		favorite = !row.IsFavorite
		return tx.Model(&WallpaperHistory{}).
			Where("photo_id = ?", photoID).
			Update("is_favorite", favorite).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, notFoundError(ErrHistoryNotFound, metrics.OpToggleFav, "photo_id", photoID)
	}
	if err != nil {
		return false, dbError(err, metrics.OpToggleFav, "photo_id", photoID)
	}

	r.publish(ctx)
	return favorite, nil
}

// IsFavorite reports the favorite flag; unknown ids are not favorites.
func (r *HistoryRepository) IsFavorite(ctx context.Context, photoID string) (favorite bool, err error) {
	start := time.Now()
	defer func() { r.store.observe(metrics.OpIsFavorite, metrics.TableHistory, start, err) }()

	var flags []bool
	if err := r.db.WithContext(ctx).Model(&WallpaperHistory{}).
		Where("photo_id = ?", photoID).
		Limit(1).
		Pluck("is_favorite", &flags).Error; err != nil {
		return false, dbError(err, metrics.OpIsFavorite, "photo_id", photoID)
	}
	return len(flags) > 0 && flags[0], nil
}

// GetFavorites returns favorite photos, most recently shown first.
func (r *HistoryRepository) GetFavorites(ctx context.Context) (photos []model.Photo, err error) {
	start := time.Now()
	defer func() { r.store.observe(metrics.OpGetFavorites, metrics.TableHistory, start, err) }()

	records, err := r.load(ctx, true)
	if err != nil {
		return nil, dbError(err, metrics.OpGetFavorites)
	}
	photos = make([]model.Photo, len(records))
	for i := range records {
		photos[i] = records[i].Photo
	}
	return photos, nil
}

// GetAll returns every record, most recently shown first.
func (r *HistoryRepository) GetAll(ctx context.Context) (records []model.HistoryRecord, err error) {
	start := time.Now()
	defer func() { r.store.observe(metrics.OpGetHistory, metrics.TableHistory, start, err) }()

	records, err = r.load(ctx, false)
	if err != nil {
		return nil, dbError(err, metrics.OpGetHistory)
	}
	return records, nil
}

func (r *HistoryRepository) load(ctx context.Context, favoritesOnly bool) ([]model.HistoryRecord, error) {
	q := r.db.WithContext(ctx).Order("shown_at DESC").Order("created_at DESC")
	if favoritesOnly {
		q = q.Where("is_favorite = ?", true)
	}

	var rows []WallpaperHistory
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]model.HistoryRecord, 0, len(rows))
	for i := range rows {
		rec, err := r.toRecord(&rows[i])
		if err != nil {
			r.log.Warn("skipping unreadable history record",
				logger.String("photo_id", rows[i].PhotoID),
				logger.Error(err))
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Observe streams history snapshots. The current snapshot is delivered
// first, then a new one after every mutation. A slow reader only sees the
// latest snapshot. The channel closes when ctx is done.
func (r *HistoryRepository) Observe(ctx context.Context) (<-chan []model.HistoryRecord, error) {
	r.publishMu.Lock()
	defer r.publishMu.Unlock()

	records, err := r.load(ctx, false)
	if err != nil {
		return nil, dbError(err, "observe")
	}

	ch, err := r.broker.Subscribe(ctx, records)
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryBroadcast).
			Build()
	}
	return ch, nil
}

// publish sends a fresh snapshot to observers, if any.
func (r *HistoryRepository) publish(ctx context.Context) {
	r.publishMu.Lock()
	defer r.publishMu.Unlock()

	if r.broker.Stats().Subscribers == 0 {
		return
	}

	// The mutation is committed; a canceled caller must not suppress the update
	records, err := r.load(context.WithoutCancel(ctx), false)
	if err != nil {
		r.log.Warn("failed to load history snapshot", logger.Error(err))
		return
	}
	r.broker.Publish(records)
}

// Clear deletes every record.
func (r *HistoryRepository) Clear(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { r.store.observe(metrics.OpClearHistory, metrics.TableHistory, start, err) }()

	if err := r.db.WithContext(ctx).Where("1 = 1").Delete(&WallpaperHistory{}).Error; err != nil {
		return dbError(err, metrics.OpClearHistory)
	}

	r.log.Info("history cleared")
	r.publish(ctx)
	return nil
}

// Count returns the number of records.
func (r *HistoryRepository) Count(ctx context.Context) (count int64, err error) {
	start := time.Now()
	defer func() { r.store.observe(metrics.OpCountHistory, metrics.TableHistory, start, err) }()

	if err := r.db.WithContext(ctx).Model(&WallpaperHistory{}).Count(&count).Error; err != nil {
		return 0, dbError(err, metrics.OpCountHistory)
	}
	return count, nil
}
