package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/bcsync/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultLockKeyPrefix = "erp:lock:"

// releaseScript deletes the lock only if it still carries our owner token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRunLock implements shared.RunLock with SETNX so that only one instance runs a job
type RedisRunLock struct {
	client    redis.Cmdable
	keyPrefix string
	owner     string
}

// NewRedisRunLock creates a lock; every process gets its own owner token
func NewRedisRunLock(client redis.Cmdable, keyPrefix string) *RedisRunLock {
	if keyPrefix == "" {
		keyPrefix = defaultLockKeyPrefix
	}
	return &RedisRunLock{
		client:    client,
		keyPrefix: keyPrefix,
		owner:     uuid.NewString(),
	}
}

// Acquire takes the lock for ttl. Returns false if someone else holds it.
func (l *RedisRunLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.keyPrefix+key, l.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	return ok, nil
}

// Release drops the lock if this process still owns it
func (l *RedisRunLock) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.keyPrefix + key}, l.owner).Err(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return nil
}

var _ shared.RunLock = (*RedisRunLock)(nil)
