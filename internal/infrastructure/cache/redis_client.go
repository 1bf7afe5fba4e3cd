package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/bcsync/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to the configured Redis and verifies the connection
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	addr := cfg.Addr()
	if addr == "" {
		return nil, fmt.Errorf("redis host is not configured")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}
