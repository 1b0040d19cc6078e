package wallpaper

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iscle/haven-go/internal/datastore"
	"github.com/iscle/haven-go/internal/logger"
	"github.com/iscle/haven-go/internal/model"
	"github.com/iscle/haven-go/internal/unsplash"
)

func quietLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
}

// scriptedRand returns queued values (modulo n), then zeros.
type scriptedRand struct {
	mu     sync.Mutex
	values []int
	calls  []int // n of every call
}

func (r *scriptedRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, n)
	if len(r.values) == 0 {
		return 0
	}
	v := r.values[0]
	r.values = r.values[1:]
	return v % n
}

func (r *scriptedRand) Calls() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.calls...)
}

func landscape(id string) model.Photo {
	return model.Photo{
		ID:               id,
		FullImageURL:     "https://images.example.com/" + id,
		Width:            1920,
		Height:           1080,
		PhotographerName: "Ansel " + id,
	}
}

func portrait(id string) model.Photo {
	p := landscape(id)
	p.Width, p.Height = 1080, 1920
	return p
}

type searchCall struct {
	Query   string
	Page    int
	PerPage int
}

// fakeFetcher serves canned pages. The probe (page 1 with a small page
// size) reports totalPages.
type fakeFetcher struct {
	mu         sync.Mutex
	totalPages int
	pages      map[int][]model.Photo
	pageErrs   map[int]error // failures for single pages after the page-count request
	err        error
	delay      time.Duration
	calls      []searchCall
}

func newFakeFetcher(totalPages int, pages map[int][]model.Photo) *fakeFetcher {
	return &fakeFetcher{totalPages: totalPages, pages: pages}
}

func (f *fakeFetcher) Search(ctx context.Context, query string, page, perPage int) (*unsplash.SearchResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, searchCall{Query: query, Page: page, PerPage: perPage})
	err, delay := f.err, f.delay
	if pageErr, ok := f.pageErrs[page]; ok && len(f.calls) > 1 {
		err = pageErr
	}
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	results := f.pages[page]
	if perPage < len(results) {
		results = results[:perPage]
	}
	if f.totalPages > 0 && len(results) == 0 && page == 1 {
		// probe of a query whose first page was not scripted
		results = []model.Photo{portrait("probe")}
	}
	return &unsplash.SearchResult{
		Total:      f.totalPages * 20,
		TotalPages: f.totalPages,
		Results:    append([]model.Photo(nil), results...),
	}, nil
}

func (f *fakeFetcher) Calls() []searchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]searchCall(nil), f.calls...)
}

// pageCalls returns the pages requested after the probe.
func (f *fakeFetcher) pageCalls() []int {
	var pages []int
	for i, c := range f.Calls() {
		if i == 0 {
			continue
		}
		pages = append(pages, c.Page)
	}
	return pages
}

// fakeCache always serves the same photo, or fails.
type fakeCache struct {
	mu    sync.Mutex
	photo *model.Photo
	err   error
	draws int
}

func (c *fakeCache) set(photo *model.Photo, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.photo, c.err = photo, err
}

func (c *fakeCache) HasCachedPhotos(context.Context, string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.photo != nil, c.err
}

func (c *fakeCache) GetRandomCachedPhoto(context.Context, string) (*model.Photo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draws++
	if c.err != nil {
		return nil, c.err
	}
	if c.photo == nil {
		return nil, nil
	}
	p := *c.photo
	return &p, nil
}

func (c *fakeCache) CachePhotos(_ context.Context, _ string, photos []model.Photo, _ ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(photos) > 0 {
		p := photos[0]
		c.photo = &p
	}
	return nil
}

func (c *fakeCache) ClearCache(context.Context) error {
	c.set(nil, nil)
	return nil
}

func (c *fakeCache) Stats(_ context.Context, query string) (datastore.CacheStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := datastore.CacheStats{Key: model.CacheKey(query), Exists: c.photo != nil}
	if c.photo != nil {
		stats.Total = 1
	}
	return stats, nil
}

// fakeHistory is a map-backed HistoryStore.
type fakeHistory struct {
	mu        sync.Mutex
	records   map[string]*model.HistoryRecord
	favorites []model.Photo
	loads     int
	shown     []string
}

func newFakeHistory(favorites ...model.Photo) *fakeHistory {
	return &fakeHistory{records: make(map[string]*model.HistoryRecord), favorites: favorites}
}

func (h *fakeHistory) AddOrUpdate(_ context.Context, photo *model.Photo) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.shown = append(h.shown, photo.ID)
	if r, ok := h.records[photo.ID]; ok {
		r.TimesShown++
		return nil
	}
	h.records[photo.ID] = &model.HistoryRecord{Photo: *photo, TimesShown: 1}
	return nil
}

func (h *fakeHistory) ToggleFavorite(_ context.Context, photoID string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.records[photoID]
	if !ok {
		return false, fmt.Errorf("photo %s not in history", photoID)
	}
	r.IsFavorite = !r.IsFavorite
	return r.IsFavorite, nil
}

func (h *fakeHistory) IsFavorite(_ context.Context, photoID string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.records[photoID]
	return ok && r.IsFavorite, nil
}

func (h *fakeHistory) GetFavorites(context.Context) ([]model.Photo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loads++
	return append([]model.Photo(nil), h.favorites...), nil
}

func (h *fakeHistory) GetAll(context.Context) ([]model.HistoryRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]model.HistoryRecord, 0, len(h.records))
	for _, r := range h.records {
		out = append(out, *r)
	}
	return out, nil
}

func (h *fakeHistory) Observe(ctx context.Context) (<-chan []model.HistoryRecord, error) {
	ch := make(chan []model.HistoryRecord)
	context.AfterFunc(ctx, func() { close(ch) })
	return ch, nil
}

func (h *fakeHistory) Clear(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	clear(h.records)
	h.favorites = nil
	return nil
}

func (h *fakeHistory) Count(context.Context) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return int64(len(h.records)), nil
}

func (h *fakeHistory) Shown() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.shown...)
}

func (h *fakeHistory) Loads() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loads
}

// sqliteStores opens real repositories on a private in-memory database.
func sqliteStores(t *testing.T) (*datastore.PhotoCacheRepository, *datastore.HistoryRepository) {
	t.Helper()

	store, err := datastore.OpenSQLite(datastore.MemoryPath, datastore.WithLogger(quietLogger()))
	require.NoError(t, err)

	cache := datastore.NewPhotoCacheRepository(store, datastore.WithRand(rand.New(rand.NewPCG(3, 5))))
	history := datastore.NewHistoryRepository(store)
	t.Cleanup(func() {
		history.Close()
		assert.NoError(t, store.Close())
	})
	return cache, history
}

func newTestService(fetcher PhotoFetcher, cache CacheStore, history HistoryStore, cfg Config, rng intner) *Service {
	s := NewService(fetcher, cache, history, cfg, WithLogger(quietLogger()))
	if rng != nil {
		s.rng = rng
	}
	return s
}
