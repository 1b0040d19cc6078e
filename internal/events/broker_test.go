package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/iscle/haven-go/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSubscribeDeliversInitialValue(t *testing.T) {
	t.Parallel()

	b := NewBroker[int]()
	defer b.Close()

	ch, err := b.Subscribe(t.Context(), 7)
	require.NoError(t, err)
	assert.Equal(t, 7, testutil.Receive(t, ch, testutil.ShortTestTimeout))
}

func TestPublishFansOut(t *testing.T) {
	t.Parallel()

	b := NewBroker[string]()
	defer b.Close()

	first, err := b.Subscribe(t.Context(), "")
	require.NoError(t, err)
	second, err := b.Subscribe(t.Context(), "")
	require.NoError(t, err)
	testutil.Receive(t, first, testutil.ShortTestTimeout)
	testutil.Receive(t, second, testutil.ShortTestTimeout)

	b.Publish("hello")
	assert.Equal(t, "hello", testutil.Receive(t, first, testutil.ShortTestTimeout))
	assert.Equal(t, "hello", testutil.Receive(t, second, testutil.ShortTestTimeout))

	stats := b.Stats()
	assert.Equal(t, uint64(1), stats.Published)
	assert.Equal(t, uint64(2), stats.Delivered)
	assert.Equal(t, 2, stats.Subscribers)
}

func TestSlowSubscriberSeesLatestValue(t *testing.T) {
	t.Parallel()

	b := NewBroker[int]()
	defer b.Close()

	ch, err := b.Subscribe(t.Context(), 0)
	require.NoError(t, err)

	// Never drained: each publish replaces the pending value
	for i := 1; i <= 5; i++ {
		b.Publish(i)
	}

	assert.Equal(t, 5, testutil.Receive(t, ch, testutil.ShortTestTimeout))
	assert.Equal(t, uint64(5), b.Stats().Coalesced)

	testutil.RequireEmpty(t, ch)
}

func TestPublishNeverBlocks(t *testing.T) {
	t.Parallel()

	b := NewBroker[int]()
	defer b.Close()

	for range 10 {
		_, err := b.Subscribe(t.Context(), 0)
		require.NoError(t, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range 1000 {
			b.Publish(i)
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publish blocked on undrained subscribers")
	}
}

func TestContextCancelClosesSubscription(t *testing.T) {
	t.Parallel()

	b := NewBroker[int]()
	defer b.Close()

	ctx, cancel := context.WithCancel(t.Context())
	ch, err := b.Subscribe(ctx, 1)
	require.NoError(t, err)
	testutil.Receive(t, ch, testutil.ShortTestTimeout)

	cancel()
	testutil.RequireClosed(t, ch, testutil.ShortTestTimeout)

	assert.Eventually(t, func() bool { return b.Stats().Subscribers == 0 }, time.Second, 5*time.Millisecond)

	// Publishing after the subscriber left is harmless
	assert.NotPanics(t, func() { b.Publish(2) })
}

func TestSubscribeWithDoneContext(t *testing.T) {
	t.Parallel()

	b := NewBroker[int]()
	defer b.Close()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := b.Subscribe(ctx, 0)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, b.Stats().Subscribers)
}

func TestCloseClosesAllSubscribers(t *testing.T) {
	t.Parallel()

	b := NewBroker[int]()

	a, err := b.Subscribe(t.Context(), 1)
	require.NoError(t, err)
	c, err := b.Subscribe(t.Context(), 1)
	require.NoError(t, err)
	testutil.Receive(t, a, testutil.ShortTestTimeout)
	testutil.Receive(t, c, testutil.ShortTestTimeout)

	b.Close()
	b.Close()

	testutil.RequireClosed(t, a, testutil.ShortTestTimeout)
	testutil.RequireClosed(t, c, testutil.ShortTestTimeout)

	_, err = b.Subscribe(t.Context(), 0)
	require.ErrorIs(t, err, ErrBrokerClosed)

	assert.NotPanics(t, func() { b.Publish(3) })
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	t.Parallel()

	b := NewBroker[int]()
	defer b.Close()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Go(func() {
			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()
			ch, err := b.Subscribe(ctx, i)
			if !assert.NoError(t, err) {
				return
			}
			<-ch
		})
		wg.Go(func() {
			for j := range 100 {
				b.Publish(i*100 + j)
			}
		})
	}
	wg.Wait()

	assert.Eventually(t, func() bool { return b.Stats().Subscribers == 0 }, time.Second, 5*time.Millisecond)
}
