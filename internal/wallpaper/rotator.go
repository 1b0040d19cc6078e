package wallpaper

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iscle/haven-go/internal/logger"
	"github.com/iscle/haven-go/internal/model"
)

// RotationHandler receives the outcome of every rotation. On failure photo
// is nil and the previous photo stays current.
type RotationHandler func(photo *model.Photo, err error)

// Rotator shows a new photo every Interval until its context is done.
type Rotator struct {
	service          *Service
	query            string
	includeFavorites bool
	interval         time.Duration
	handler          RotationHandler
	log              logger.Logger

	mu      sync.RWMutex
	current *model.Photo
}

// NewRotator creates a rotator. Intervals under one second are raised to one second.
func NewRotator(service *Service, query string, includeFavorites bool, interval time.Duration, handler RotationHandler) *Rotator {
	return &Rotator{
		service:          service,
		query:            query,
		includeFavorites: includeFavorites,
		interval:         max(interval, time.Second),
		handler:          handler,
		log:              service.log.Module("rotator"),
	}
}

// Current returns the photo shown last, or nil before the first success.
func (r *Rotator) Current() *model.Photo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Run rotates immediately and then on every tick. It returns when ctx is done.
func (r *Rotator) Run(ctx context.Context) error {
	r.log.Info("rotation started",
		logger.String("query", r.query),
		logger.Bool("include_favorites", r.includeFavorites),
		logger.Duration("interval", r.interval))

	r.Rotate(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("rotation stopped")
			return nil
		case <-ticker.C:
			r.Rotate(ctx)
		}
	}
}

// Rotate performs one rotation: pick a photo, record it as shown and hand it
// to the handler.
func (r *Rotator) Rotate(ctx context.Context) {
	ctx = logger.WithTraceID(ctx, uuid.NewString())
	log := r.log.WithContext(ctx)

	photo, err := r.service.GetRandomPhoto(ctx, r.query, r.includeFavorites)
	if err == nil {
		err = r.service.RecordShown(ctx, photo)
	}
	if err != nil {
		if ctx.Err() == nil {
			log.Warn("rotation failed, keeping current photo", logger.Error(err))
		}
		if r.handler != nil {
			r.handler(nil, err)
		}
		return
	}

	r.mu.Lock()
	r.current = photo
	r.mu.Unlock()

	log.Debug("photo rotated",
		logger.String("photo_id", photo.ID),
		logger.String("photographer", photo.PhotographerName))

	if r.handler != nil {
		r.handler(photo, nil)
	}
}
