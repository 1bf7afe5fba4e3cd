package cache

import (
	"context"
	"fmt"

	"github.com/erp/bcsync/internal/domain/phoneauth"
	"github.com/erp/bcsync/internal/domain/shared"
	"github.com/erp/bcsync/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Factory picks Redis backed coordination when Redis is configured and reachable
type Factory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to in-process state.
// Default is true.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowInMemoryFallback = allow
	}
}

// NewFactory creates a new factory
func NewFactory(cfg config.RedisConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Client returns a connected Redis client, or nil when Redis is not configured
// or unreachable and fallback is allowed.
func (f *Factory) Client(ctx context.Context) (*redis.Client, error) {
	if f.redisConfig.Addr() == "" {
		f.logger.Info("Redis not configured, using in-process coordination")
		return nil, nil
	}
	client, err := NewRedisClient(ctx, f.redisConfig)
	if err == nil {
		f.logger.Info("Using Redis for OAuth state, phone challenges and run locks", zap.String("addr", f.redisConfig.Addr()))
		return client, nil
	}
	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required but unavailable: %w", err)
	}
	f.logger.Warn("Redis unavailable, falling back to in-process coordination. "+
		"Overlapping sync runs across instances are not prevented.",
		zap.Error(err),
	)
	return nil, nil
}

// RunLock returns a Redis lock for a non-nil client and an in-memory lock otherwise
func (f *Factory) RunLock(client *redis.Client) shared.RunLock {
	if client == nil {
		return NewInMemoryRunLock()
	}
	return NewRedisRunLock(client, "")
}

// ChallengeStore returns a Redis challenge store for a non-nil client and an in-memory one otherwise
func (f *Factory) ChallengeStore(client *redis.Client) phoneauth.ChallengeStore {
	if client == nil {
		return NewInMemoryChallengeStore()
	}
	return NewRedisChallengeStore(client)
}
