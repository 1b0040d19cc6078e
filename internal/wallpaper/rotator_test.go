package wallpaper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/iscle/haven-go/internal/errors"
	"github.com/iscle/haven-go/internal/model"
	"github.com/iscle/haven-go/internal/testutil"
)

type rotation struct {
	photo *model.Photo
	err   error
}

func TestRotatorRunRotatesImmediatelyAndStops(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cached := landscape("first")
	history := newFakeHistory()
	svc := newTestService(newFakeFetcher(1, nil), &fakeCache{photo: &cached}, history, DefaultConfig(), nil)

	rotations := make(chan rotation, 4)
	r := NewRotator(svc, "nature", false, time.Hour, func(p *model.Photo, err error) {
		rotations <- rotation{p, err}
	})

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	got := testutil.Receive(t, rotations, testutil.DefaultTestTimeout)
	require.NoError(t, got.err)
	assert.Equal(t, "first", got.photo.ID)

	cancel()
	assert.NoError(t, testutil.Receive(t, done, testutil.DefaultTestTimeout))

	require.NotNil(t, r.Current())
	assert.Equal(t, "first", r.Current().ID)
	assert.Equal(t, []string{"first"}, history.Shown())
}

func TestRotatorKeepsCurrentOnFailure(t *testing.T) {
	t.Parallel()

	cached := landscape("first")
	cache := &fakeCache{photo: &cached}
	history := newFakeHistory()
	svc := newTestService(newFakeFetcher(1, nil), cache, history, DefaultConfig(), nil)

	var got []rotation
	r := NewRotator(svc, "nature", false, time.Minute, func(p *model.Photo, err error) {
		got = append(got, rotation{p, err})
	})
	assert.Nil(t, r.Current())

	r.Rotate(t.Context())
	require.NotNil(t, r.Current())

	storeDown := errors.NewStd("store unavailable")
	cache.set(nil, storeDown)
	r.Rotate(t.Context())

	require.Len(t, got, 2)
	assert.NoError(t, got[0].err)
	assert.Nil(t, got[1].photo)
	assert.ErrorIs(t, got[1].err, storeDown)

	assert.Equal(t, "first", r.Current().ID)
	assert.Equal(t, []string{"first"}, history.Shown(), "failed rotations are not recorded")
}

func TestRotatorFavoritesAndNilHandler(t *testing.T) {
	t.Parallel()

	cached := landscape("cached")
	history := newFakeHistory(landscape("fav"))
	svc := newTestService(newFakeFetcher(1, nil), &fakeCache{photo: &cached}, history, DefaultConfig(),
		&scriptedRand{values: []int{0, 0}})

	r := NewRotator(svc, "nature", true, 0, nil)
	assert.Equal(t, time.Second, r.interval)

	r.Rotate(t.Context())
	require.NotNil(t, r.Current())
	assert.Equal(t, "fav", r.Current().ID)
}
