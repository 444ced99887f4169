// Package broadcast provides an in-memory fan-out primitive. Every subscriber
// owns a bounded queue; a subscriber that falls behind loses its oldest
// queued messages while other subscribers are unaffected.
package broadcast

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Receive once the subscription has ended.
var ErrClosed = errors.New("broadcast: closed")

// Broadcaster delivers each published message to all current subscribers.
type Broadcaster[T any] struct {
	mu       sync.Mutex
	subs     map[*Subscriber[T]]struct{}
	capacity int
	closed   bool
}

// Subscriber is one receiving end of a Broadcaster.
type Subscriber[T any] struct {
	b       *Broadcaster[T]
	ch      chan T
	dropped atomic.Uint64
}

// New creates a broadcaster whose subscribers buffer up to capacity messages.
func New[T any](capacity int) *Broadcaster[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Broadcaster[T]{
		subs:     make(map[*Subscriber[T]]struct{}),
		capacity: capacity,
	}
}

// Subscribe registers a new subscriber. It only sees messages published after
// the call returns. Subscribing to a closed broadcaster yields a subscriber
// whose channel is already closed.
func (b *Broadcaster[T]) Subscribe() *Subscriber[T] {
	s := &Subscriber[T]{b: b, ch: make(chan T, b.capacity)}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(s.ch)
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Publish hands msg to every live subscriber and returns how many were reached.
// Publishing with no subscribers is not an error.
func (b *Broadcaster[T]) Publish(msg T) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0
	}
	for s := range b.subs {
		s.deliver(msg)
	}
	return len(b.subs)
}

// Len returns the number of live subscribers.
func (b *Broadcaster[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close ends every subscription. Further publishes reach nobody.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		delete(b.subs, s)
		close(s.ch)
	}
}

func (b *Broadcaster[T]) remove(s *Subscriber[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[s]; ok {
		delete(b.subs, s)
		close(s.ch)
	}
}

// deliver must be called with b.mu held: the queue is only ever closed under
// the same lock, and the consumer can only make room, so the loop ends.
func (s *Subscriber[T]) deliver(msg T) {
	for {
		select {
		case s.ch <- msg:
			return
		default:
		}

		select {
		case <-s.ch:
			s.dropped.Add(1)
		default:
		}
	}
}

// C exposes the queue for use in select statements. It is closed when the
// subscription ends.
func (s *Subscriber[T]) C() <-chan T {
	return s.ch
}

// Receive waits for the next message.
func (s *Subscriber[T]) Receive(ctx context.Context) (T, error) {
	var zero T
	select {
	case msg, ok := <-s.ch:
		if !ok {
			return zero, ErrClosed
		}
		return msg, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Dropped reports how many messages were discarded because this subscriber lagged.
func (s *Subscriber[T]) Dropped() uint64 {
	return s.dropped.Load()
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscriber[T]) Close() {
	s.b.remove(s)
}
