package shared

import (
	"context"
	"time"
)

// RunLock guards a named job against overlapping execution, possibly across processes
type RunLock interface {
	// Acquire takes the lock for ttl. Returns false if someone else holds it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release drops the lock
	Release(ctx context.Context, key string) error
}
