// Package events provides an in-memory publish/subscribe broker that delivers
// the latest value to each subscriber without ever blocking the publisher.
package events

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/iscle/haven-go/internal/errors"
)

// ErrBrokerClosed is returned by Subscribe after Close.
var ErrBrokerClosed = errors.NewStd("event broker closed")

// BrokerStats holds broker counters
type BrokerStats struct {
	Published   uint64
	Delivered   uint64
	Coalesced   uint64 // undelivered values replaced by a newer one
	Subscribers int
}

type subscription[T any] struct {
	ch   chan T
	stop func() bool
}

// Broker fans values out to subscribers. Each subscriber has a one-slot
// buffer: a value the subscriber has not yet received is replaced by the
// next one, so slow consumers always see the latest value.
type Broker[T any] struct {
	mu     sync.Mutex
	subs   map[uint64]*subscription[T]
	nextID uint64
	closed bool

	published atomic.Uint64
	delivered atomic.Uint64
	coalesced atomic.Uint64
}

// NewBroker creates a new event broker.
func NewBroker[T any]() *Broker[T] {
	return &Broker[T]{subs: make(map[uint64]*subscription[T])}
}

// Subscribe registers a subscriber whose channel already holds initial.
// The channel is closed when ctx is done or the broker is closed.
func (b *Broker[T]) Subscribe(ctx context.Context, initial T) (<-chan T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBrokerClosed
	}

	id := b.nextID
	b.nextID++

	sub := &subscription[T]{ch: make(chan T, 1)}
	sub.ch <- initial
	b.subs[id] = sub

	// AfterFunc holds no goroutine until ctx is done
	sub.stop = context.AfterFunc(ctx, func() { b.unsubscribe(id) })

	return sub.ch, nil
}

// Publish delivers v to every subscriber without blocking.
func (b *Broker[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.published.Add(1)

	for _, sub := range b.subs {
		select {
		case sub.ch <- v:
			b.delivered.Add(1)
			continue
		default:
		}

		// Slot is full: drop the stale value and retry once
		select {
		case <-sub.ch:
			b.coalesced.Add(1)
		default:
		}
		select {
		case sub.ch <- v:
			b.delivered.Add(1)
		default:
		}
	}
}

func (b *Broker[T]) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(sub.ch)
	}
}

// Close closes every subscriber channel. Further publishes are ignored.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		sub.stop()
		close(sub.ch)
		delete(b.subs, id)
	}
}

// Stats returns current broker statistics
func (b *Broker[T]) Stats() BrokerStats {
	b.mu.Lock()
	subscribers := len(b.subs)
	b.mu.Unlock()

	return BrokerStats{
		Published:   b.published.Load(),
		Delivered:   b.delivered.Load(),
		Coalesced:   b.coalesced.Load(),
		Subscribers: subscribers,
	}
}
