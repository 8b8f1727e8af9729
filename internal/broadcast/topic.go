// Package broadcast provides a replay-latest publish/subscribe topic used to
// fan out client state (auth state, auth level, item changes) to any number
// of observers.
package broadcast

import "sync"

// Topic delivers published values to all current subscribers. Each
// subscriber holds at most one pending value; a slow subscriber loses
// intermediate values but always sees the most recent one. New subscribers
// receive the latest value immediately if one has been published.
type Topic[T any] struct {
	mu     sync.Mutex
	latest T
	has    bool
	subs   map[*subscriber[T]]struct{}
}

type subscriber[T any] struct {
	ch     chan T
	closed bool
}

// New creates an empty topic.
func New[T any]() *Topic[T] {
	return &Topic[T]{subs: make(map[*subscriber[T]]struct{})}
}

// Publish stores v as the latest value and offers it to every subscriber.
// It never blocks.
func (t *Topic[T]) Publish(v T) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.latest = v
	t.has = true
	for s := range t.subs {
		offer(s.ch, v)
	}
}

// offer replaces any pending value in ch with v. Callers hold the topic lock,
// so the channel has no other writer.
func offer[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}

// Subscribe registers a new subscriber. The returned cancel func removes it
// and closes the channel; calling it more than once is safe.
func (t *Topic[T]) Subscribe() (<-chan T, func()) {
	s := &subscriber[T]{ch: make(chan T, 1)}

	t.mu.Lock()
	if t.subs == nil {
		t.subs = make(map[*subscriber[T]]struct{})
	}
	t.subs[s] = struct{}{}
	if t.has {
		s.ch <- t.latest
	}
	t.mu.Unlock()

	cancel := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if s.closed {
			return
		}
		s.closed = true
		delete(t.subs, s)
		close(s.ch)
	}
	return s.ch, cancel
}

// Latest returns the most recently published value.
func (t *Topic[T]) Latest() (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest, t.has
}

// Subscribers returns the number of active subscribers.
func (t *Topic[T]) Subscribers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}
