package cache

import (
	"context"
	"sync"
	"time"

	"github.com/erp/bcsync/internal/domain/shared"
)

// InMemoryRunLock implements shared.RunLock within a single process.
// Expired holders are replaced on the next Acquire.
type InMemoryRunLock struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock func() time.Time
}

// NewInMemoryRunLock creates a new in-memory run lock
func NewInMemoryRunLock() *InMemoryRunLock {
	return &InMemoryRunLock{
		held:  make(map[string]time.Time),
		clock: time.Now,
	}
}

// Acquire takes the lock for ttl. Returns false if it is held and not expired.
func (l *InMemoryRunLock) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if expiresAt, ok := l.held[key]; ok && now.Before(expiresAt) {
		return false, nil
	}
	l.held[key] = now.Add(ttl)
	return true, nil
}

// Release drops the lock; releasing a free lock is a no-op
func (l *InMemoryRunLock) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

// Held reports whether key is currently locked (for tests/monitoring)
func (l *InMemoryRunLock) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	expiresAt, ok := l.held[key]
	return ok && l.clock().Before(expiresAt)
}

var _ shared.RunLock = (*InMemoryRunLock)(nil)
