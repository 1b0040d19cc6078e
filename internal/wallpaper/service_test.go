package wallpaper

import (
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iscle/haven-go/internal/errors"
	"github.com/iscle/haven-go/internal/model"
	"github.com/iscle/haven-go/internal/observability/metrics"
	"github.com/iscle/haven-go/internal/retry"
)

func TestMissFetchesRandomPageAndCachesLandscapeOnly(t *testing.T) {
	t.Parallel()

	cache, history := sqliteStores(t)
	pageTwo := []model.Photo{
		portrait("p1"), landscape("l1"), portrait("p2"), landscape("l2"), portrait("p3"),
	}
	fetcher := newFakeFetcher(3, map[int][]model.Photo{2: pageTwo})
	rng := &scriptedRand{values: []int{1, 0}} // page index 1 of [1 2 3], then the first landscape photo

	svc := newTestService(fetcher, cache, history, DefaultConfig(), rng)

	photo, err := svc.GetRandomPhoto(t.Context(), "wallpaper nature", false)
	require.NoError(t, err)
	require.NotNil(t, photo)
	assert.Equal(t, "l1", photo.ID)

	assert.Equal(t, []searchCall{
		{Query: "wallpaper nature", Page: 1, PerPage: 1},
		{Query: "wallpaper nature", Page: 2, PerPage: 20},
	}, fetcher.Calls())
	assert.Equal(t, []int{3, 2}, rng.Calls())

	stats, err := svc.CacheStats(t.Context(), "wallpaper nature")
	require.NoError(t, err)
	assert.True(t, stats.Exists)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Shown, "the returned photo is cached as shown")

	// The next draw is the other photo, then the rotation starts over
	p, err := svc.GetRandomPhoto(t.Context(), "wallpaper nature", false)
	require.NoError(t, err)
	assert.Equal(t, "l2", p.ID)

	p, err = svc.GetRandomPhoto(t.Context(), "wallpaper nature", false)
	require.NoError(t, err)
	assert.Contains(t, []string{"l1", "l2"}, p.ID)
	assert.Len(t, fetcher.Calls(), 2)
}

func TestEmptyQueryUsesDefault(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(1, map[int][]model.Photo{1: {landscape("a")}})
	svc := newTestService(fetcher, &fakeCache{}, newFakeHistory(), DefaultConfig(), &scriptedRand{})

	_, err := svc.GetRandomPhoto(t.Context(), "   ", false)
	require.NoError(t, err)

	calls := fetcher.Calls()
	require.NotEmpty(t, calls)
	assert.Equal(t, "wallpaper nature", calls[0].Query)
}

func TestNoPhotosFound(t *testing.T) {
	t.Parallel()

	cache := &fakeCache{}
	fetcher := newFakeFetcher(0, nil)
	svc := newTestService(fetcher, cache, newFakeHistory(), DefaultConfig(), &scriptedRand{})

	photo, err := svc.GetRandomPhoto(t.Context(), "xyzzy", false)
	require.Error(t, err)
	assert.Nil(t, photo)
	assert.ErrorIs(t, err, ErrNoPhotosFound)
	assert.True(t, IsEmptyResult(err))
	assert.True(t, errors.IsCategory(err, errors.CategoryImageFetch))
	assert.Len(t, fetcher.Calls(), 1)

	has, err := cache.HasCachedPhotos(t.Context(), "xyzzy")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestNoLandscapePhotos(t *testing.T) {
	t.Parallel()

	pages := map[int][]model.Photo{
		1: {portrait("a")},
		2: {portrait("b")},
		3: {portrait("c")},
	}
	fetcher := newFakeFetcher(3, pages)
	svc := newTestService(fetcher, &fakeCache{}, newFakeHistory(), DefaultConfig(), nil)

	_, err := svc.GetRandomPhoto(t.Context(), "portraits", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoLandscapePhotos)
	assert.NotErrorIs(t, err, ErrNoPhotosFound)
	assert.True(t, IsEmptyResult(err))

	// Fewer pages than retries: each page is tried once
	assert.ElementsMatch(t, []int{1, 2, 3}, fetcher.pageCalls())
}

func TestPageAttemptsAreDistinctAndBounded(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(10, nil)
	svc := NewService(fetcher, &fakeCache{}, newFakeHistory(), DefaultConfig(),
		WithLogger(quietLogger()), WithRand(rand.New(rand.NewPCG(42, 7))))

	_, err := svc.GetRandomPhoto(t.Context(), "portraits", false)
	require.ErrorIs(t, err, ErrNoLandscapePhotos)

	pages := fetcher.pageCalls()
	require.Len(t, pages, 5)
	seen := make(map[int]bool)
	for _, p := range pages {
		assert.False(t, seen[p], "page %d requested twice", p)
		seen[p] = true
		assert.GreaterOrEqual(t, p, 1)
		assert.LessOrEqual(t, p, 10)
	}
}

func TestPagesAreCapped(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(500, map[int][]model.Photo{50: {landscape("deep")}})
	rng := &scriptedRand{values: []int{49}}
	svc := newTestService(fetcher, &fakeCache{}, newFakeHistory(), DefaultConfig(), rng)

	photo, err := svc.GetRandomPhoto(t.Context(), "popular", false)
	require.NoError(t, err)
	assert.Equal(t, "deep", photo.ID)
	assert.Equal(t, []int{50}, fetcher.pageCalls())
	assert.Equal(t, 50, rng.Calls()[0])
}

func TestFetchErrorPropagates(t *testing.T) {
	t.Parallel()

	upstream := errors.NewStd("upstream unavailable")
	fetcher := newFakeFetcher(3, nil)
	fetcher.err = upstream
	svc := newTestService(fetcher, &fakeCache{}, newFakeHistory(), DefaultConfig(), nil)

	_, err := svc.GetRandomPhoto(t.Context(), "nature", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, upstream)
	assert.False(t, IsEmptyResult(err))
}

func TestExhaustedPageIsSkipped(t *testing.T) {
	t.Parallel()

	cache, history := sqliteStores(t)
	fetcher := newFakeFetcher(3, map[int][]model.Photo{3: {landscape("l3")}})
	fetcher.pageErrs = map[int]error{2: &retry.ExhaustedError{Attempts: 4, Err: errors.NewStd("503")}}
	rng := &scriptedRand{values: []int{1, 1, 0}} // page 2, then page 3 of [1 3]

	svc := newTestService(fetcher, cache, history, DefaultConfig(), rng)

	photo, err := svc.GetRandomPhoto(t.Context(), "nature", false)
	require.NoError(t, err)
	require.NotNil(t, photo)
	assert.Equal(t, "l3", photo.ID)
	assert.Equal(t, []int{2, 3}, fetcher.pageCalls())
}

func TestAllPagesExhaustedReturnsLastError(t *testing.T) {
	t.Parallel()

	last := &retry.ExhaustedError{Attempts: 4, Err: errors.NewStd("503")}
	fetcher := newFakeFetcher(2, nil)
	fetcher.pageErrs = map[int]error{
		1: &retry.ExhaustedError{Attempts: 4, Err: errors.NewStd("502")},
		2: last,
	}
	rng := &scriptedRand{values: []int{0, 0}} // page 1, then page 2
	svc := newTestService(fetcher, &fakeCache{}, newFakeHistory(), DefaultConfig(), rng)

	_, err := svc.GetRandomPhoto(t.Context(), "nature", false)
	require.Error(t, err)

	var exhausted *retry.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Same(t, last, exhausted)
	assert.False(t, IsEmptyResult(err))
	assert.Equal(t, []int{1, 2}, fetcher.pageCalls())
}

func TestExhaustedAndEmptyPagesReportNoLandscape(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(2, map[int][]model.Photo{2: {portrait("p2")}})
	fetcher.pageErrs = map[int]error{1: &retry.ExhaustedError{Attempts: 4, Err: errors.NewStd("503")}}
	rng := &scriptedRand{values: []int{0, 0}}
	svc := newTestService(fetcher, &fakeCache{}, newFakeHistory(), DefaultConfig(), rng)

	_, err := svc.GetRandomPhoto(t.Context(), "nature", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoLandscapePhotos)
	assert.True(t, IsEmptyResult(err))
}

func TestNonRetryablePageFailureAborts(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(3, map[int][]model.Photo{3: {landscape("l3")}})
	fetcher.pageErrs = map[int]error{2: &retry.NonRetryableError{Attempts: 1, Err: errors.NewStd("401")}}
	rng := &scriptedRand{values: []int{1, 1}}
	svc := newTestService(fetcher, &fakeCache{}, newFakeHistory(), DefaultConfig(), rng)

	_, err := svc.GetRandomPhoto(t.Context(), "nature", false)
	require.Error(t, err)
	var nonRetryable *retry.NonRetryableError
	assert.ErrorAs(t, err, &nonRetryable)
	assert.Equal(t, []int{2}, fetcher.pageCalls())
}

func TestCacheHitSkipsFetch(t *testing.T) {
	t.Parallel()

	cached := landscape("cached")
	fetcher := newFakeFetcher(3, nil)
	svc := newTestService(fetcher, &fakeCache{photo: &cached}, newFakeHistory(), DefaultConfig(), nil)

	photo, err := svc.GetRandomPhoto(t.Context(), "nature", false)
	require.NoError(t, err)
	assert.Equal(t, "cached", photo.ID)
	assert.Empty(t, fetcher.Calls())
}

func TestFavoriteGateNeedsFavorites(t *testing.T) {
	t.Parallel()

	cached := landscape("cached")
	rng := &scriptedRand{}
	svc := newTestService(newFakeFetcher(1, nil), &fakeCache{photo: &cached}, newFakeHistory(), DefaultConfig(), rng)

	photo, err := svc.GetRandomPhoto(t.Context(), "nature", true)
	require.NoError(t, err)
	assert.Equal(t, "cached", photo.ID)
	assert.Empty(t, rng.Calls(), "no draw without favorites")
}

func TestFavoriteGatePicksRandomFavorite(t *testing.T) {
	t.Parallel()

	cached := landscape("cached")
	history := newFakeHistory(landscape("fav-a"), landscape("fav-b"))
	rng := &scriptedRand{values: []int{0, 1}}
	svc := newTestService(newFakeFetcher(1, nil), &fakeCache{photo: &cached}, history, DefaultConfig(), rng)

	photo, err := svc.GetRandomPhoto(t.Context(), "nature", true)
	require.NoError(t, err)
	assert.Equal(t, "fav-b", photo.ID)
	assert.Equal(t, []int{10, 2}, rng.Calls())
}

func TestFavoriteProbability(t *testing.T) {
	t.Parallel()

	const draws = 10_000

	registry := prometheus.NewRegistry()
	wm, err := metrics.NewWallpaperMetrics(registry)
	require.NoError(t, err)

	cached := landscape("cached")
	history := newFakeHistory(landscape("fav"))
	svc := NewService(newFakeFetcher(1, nil), &fakeCache{photo: &cached}, history, DefaultConfig(),
		WithLogger(quietLogger()), WithMetrics(wm), WithRand(rand.New(rand.NewPCG(7, 11))))

	favorites := 0
	for range draws {
		photo, err := svc.GetRandomPhoto(t.Context(), "nature", true)
		require.NoError(t, err)
		if photo.ID == "fav" {
			favorites++
		}
	}

	// Binomial(10000, 0.1) has a standard deviation of 30
	assert.InDelta(t, draws/10, favorites, 150)
	assert.InDelta(t, float64(favorites), testutil.ToFloat64(wm.FavoritePicks), 0)
	assert.InDelta(t, float64(draws-favorites), testutil.ToFloat64(wm.CacheHits), 0)
	assert.Equal(t, 1, history.Loads(), "favorites are memoized")
}

func TestFavoritesMemoDisabled(t *testing.T) {
	t.Parallel()

	cached := landscape("cached")
	history := newFakeHistory(landscape("fav"))
	cfg := DefaultConfig()
	cfg.FavoritesTTL = 0
	svc := newTestService(newFakeFetcher(1, nil), &fakeCache{photo: &cached}, history, cfg, &scriptedRand{values: []int{1, 1, 1}})

	for range 3 {
		_, err := svc.GetRandomPhoto(t.Context(), "nature", true)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, history.Loads())
}

func TestFavoritesFollowToggles(t *testing.T) {
	t.Parallel()

	cache, history := sqliteStores(t)
	svc := newTestService(newFakeFetcher(1, nil), cache, history, DefaultConfig(), nil)
	ctx := t.Context()

	photo := landscape("a")
	require.NoError(t, svc.RecordShown(ctx, &photo))

	favorites, err := svc.GetFavorites(ctx)
	require.NoError(t, err)
	assert.Empty(t, favorites)

	on, err := svc.ToggleFavorite(ctx, "a")
	require.NoError(t, err)
	assert.True(t, on)

	favorites, err = svc.GetFavorites(ctx)
	require.NoError(t, err)
	require.Len(t, favorites, 1)
	assert.Equal(t, "a", favorites[0].ID)

	isFav, err := svc.IsFavorite(ctx, "a")
	require.NoError(t, err)
	assert.True(t, isFav)

	require.NoError(t, svc.ClearHistory(ctx))
	favorites, err = svc.GetFavorites(ctx)
	require.NoError(t, err)
	assert.Empty(t, favorites)

	records, err := svc.History(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestToggleFavoriteUnknownPhoto(t *testing.T) {
	t.Parallel()

	cache, history := sqliteStores(t)
	svc := newTestService(newFakeFetcher(1, nil), cache, history, DefaultConfig(), nil)

	_, err := svc.ToggleFavorite(t.Context(), "missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestRecordShownUpdatesHistoryGauge(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	wm, err := metrics.NewWallpaperMetrics(registry)
	require.NoError(t, err)

	svc := NewService(newFakeFetcher(1, nil), &fakeCache{}, newFakeHistory(), DefaultConfig(),
		WithLogger(quietLogger()), WithMetrics(wm))

	for _, id := range []string{"a", "b", "a"} {
		p := landscape(id)
		require.NoError(t, svc.RecordShown(t.Context(), &p))
	}
	assert.InDelta(t, 2, testutil.ToFloat64(wm.HistoryRecords), 0)

	require.NoError(t, svc.ClearHistory(t.Context()))
	assert.InDelta(t, 0, testutil.ToFloat64(wm.HistoryRecords), 0)
}

func TestConcurrentMissesFetchOnce(t *testing.T) {
	t.Parallel()

	cache, history := sqliteStores(t)
	fetcher := newFakeFetcher(1, map[int][]model.Photo{
		1: {landscape("a"), landscape("b"), landscape("c")},
	})
	fetcher.delay = 20 * time.Millisecond
	svc := newTestService(fetcher, cache, history, DefaultConfig(), nil)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range callers {
		wg.Go(func() {
			_, errs[i] = svc.GetRandomPhoto(t.Context(), "Nature", false)
		})
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	// one probe plus one page
	assert.Len(t, fetcher.Calls(), 2)
}

func TestClearPhotoCache(t *testing.T) {
	t.Parallel()

	cache, history := sqliteStores(t)
	fetcher := newFakeFetcher(1, map[int][]model.Photo{1: {landscape("a")}})
	svc := newTestService(fetcher, cache, history, DefaultConfig(), nil)

	_, err := svc.GetRandomPhoto(t.Context(), "nature", false)
	require.NoError(t, err)
	require.NoError(t, svc.ClearPhotoCache(t.Context()))

	stats, err := svc.CacheStats(t.Context(), "nature")
	require.NoError(t, err)
	assert.False(t, stats.Exists)

	_, err = svc.GetRandomPhoto(t.Context(), "nature", false)
	require.NoError(t, err)
	assert.Len(t, fetcher.Calls(), 4, "cleared cache is refetched")
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{PerPage: 30}.withDefaults()
	assert.Equal(t, 30, cfg.PerPage)
	assert.Equal(t, "wallpaper nature", cfg.DefaultQuery)
	assert.Equal(t, 1, cfg.ProbePerPage)
	assert.Equal(t, 50, cfg.PageCap)
	assert.Equal(t, 5, cfg.MaxPageRetries)
	assert.Equal(t, 10, cfg.FavoriteOdds)
}
