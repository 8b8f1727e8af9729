package session

import (
	"context"
	"sync"
	"time"
)

// MemoryPersister keeps the token for the life of the process only.
type MemoryPersister struct {
	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{}
}

func (m *MemoryPersister) LoadToken(context.Context) (string, time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, m.expires, m.token != "", nil
}

func (m *MemoryPersister) SaveToken(_ context.Context, token string, expires time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	m.expires = expires
	return nil
}

func (m *MemoryPersister) ClearToken(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.expires = time.Time{}
	return nil
}
