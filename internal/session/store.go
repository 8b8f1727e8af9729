// Package session holds the client's credential and publishes the
// authentication state and access level to whoever is watching.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/erazemk/idear/internal/broadcast"
)

// TokenExpiry is how long a stored credential is kept.
const TokenExpiry = 7 * 24 * time.Hour

// Persister is durable storage for the credential.
type Persister interface {
	LoadToken(ctx context.Context) (token string, expires time.Time, ok bool, err error)
	SaveToken(ctx context.Context, token string, expires time.Time) error
	ClearToken(ctx context.Context) error
}

// Store is the single owner of the session token. It never talks to the
// network.
type Store struct {
	mu        sync.RWMutex
	token     string
	expiresAt time.Time

	persist Persister
	now     func() time.Time

	// AuthState carries whether the server last confirmed the session.
	AuthState *broadcast.Topic[bool]
	// AuthLevel carries the last known access level.
	AuthLevel *broadcast.Topic[int]
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a store backed by p and loads a previously saved token if it
// has not expired yet.
func New(ctx context.Context, p Persister, opts ...Option) (*Store, error) {
	if p == nil {
		p = NewMemoryPersister()
	}
	s := &Store{
		persist:   p,
		now:       time.Now,
		AuthState: broadcast.New[bool](),
		AuthLevel: broadcast.New[int](),
	}
	for _, opt := range opts {
		opt(s)
	}

	token, expires, ok, err := p.LoadToken(ctx)
	if err != nil {
		return s, fmt.Errorf("loading token: %w", err)
	}
	if ok && s.now().Before(expires) {
		s.token = token
		s.expiresAt = expires
	}
	return s, nil
}

// Token returns the current credential.
func (s *Store) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" || !s.now().Before(s.expiresAt) {
		return "", false
	}
	return s.token, true
}

// ExpiresAt returns when the current credential stops being sent.
func (s *Store) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

// SetToken stores the credential in memory and persists it. The in-memory
// value is updated even if persisting fails.
func (s *Store) SetToken(ctx context.Context, token string) error {
	expires := s.now().Add(TokenExpiry)

	s.mu.Lock()
	s.token = token
	s.expiresAt = expires
	s.mu.Unlock()

	if err := s.persist.SaveToken(ctx, token, expires); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	return nil
}

// ClearToken forgets the credential in memory and in storage.
func (s *Store) ClearToken(ctx context.Context) error {
	s.mu.Lock()
	s.token = ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()

	if err := s.persist.ClearToken(ctx); err != nil {
		return fmt.Errorf("clearing token: %w", err)
	}
	return nil
}
