package inventory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/erazemk/idear/internal/broadcast"
)

// LiveList keeps a list fresh by reloading it in full whenever a change in
// its scope is announced.
type LiveList[T any] struct {
	load    func(context.Context) ([]T, error)
	changes *broadcast.Topic[Change]
	scope   Scope
	logger  *slog.Logger

	// Updates carries every successfully reloaded list.
	Updates *broadcast.Topic[[]T]

	mu    sync.RWMutex
	items []T
	err   error
}

// NewLiveList creates a list that reloads with load on changes in scope.
func NewLiveList[T any](load func(context.Context) ([]T, error), changes *broadcast.Topic[Change], scope Scope, logger *slog.Logger) *LiveList[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &LiveList[T]{
		load:    load,
		changes: changes,
		scope:   scope,
		logger:  logger,
		Updates: broadcast.New[[]T](),
	}
}

// Reload fetches the list now.
func (l *LiveList[T]) Reload(ctx context.Context) error {
	items, err := l.load(ctx)

	l.mu.Lock()
	l.err = err
	if err == nil {
		l.items = items
	}
	l.mu.Unlock()

	if err != nil {
		l.logger.Error("reloading list failed", "scope", l.scope, "error", err)
		return err
	}
	l.Updates.Publish(items)
	return nil
}

// Run loads the list and then reloads it on every matching change until
// ctx is done.
func (l *LiveList[T]) Run(ctx context.Context) error {
	events, cancel := l.changes.Subscribe()
	defer cancel()

	// The topic replays the last change; drop it since we load anyway.
	select {
	case <-events:
	default:
	}
	l.Reload(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Scope != l.scope {
				continue
			}
			l.Reload(ctx)
		}
	}
}

// Items returns the last successfully loaded list and the error of the
// last attempt, if any.
func (l *LiveList[T]) Items() ([]T, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.items, l.err
}

// SearchView shows the results of the most recently issued search. A
// response that arrives after a newer search was started is discarded.
type SearchView[T any] struct {
	mu      sync.Mutex
	issued  uint64
	results []T

	// Results carries every result set that was shown.
	Results *broadcast.Topic[[]T]
}

func NewSearchView[T any]() *SearchView[T] {
	return &SearchView[T]{Results: broadcast.New[[]T]()}
}

// Search runs search and shows its results unless a newer search was
// issued in the meantime. shown reports whether the results were kept.
func (v *SearchView[T]) Search(ctx context.Context, search func(context.Context) ([]T, error)) (results []T, shown bool, err error) {
	v.mu.Lock()
	v.issued++
	seq := v.issued
	v.mu.Unlock()

	results, err = search(ctx)
	if err != nil {
		return nil, false, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if seq != v.issued {
		return results, false, nil
	}
	v.results = results
	v.Results.Publish(results)
	return results, true, nil
}

// Current returns the results on display.
func (v *SearchView[T]) Current() []T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.results
}
