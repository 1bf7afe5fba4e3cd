//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/erp/bcsync/internal/domain/integration"
	"github.com/erp/bcsync/internal/domain/phoneauth"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisStateStore(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("consume is single use", func(t *testing.T) {
		store := NewRedisStateStore(client, "client-1", time.Minute)
		require.NoError(t, store.Put(ctx, integration.OAuthState{Value: "nonce", CreatedAt: created}))

		state, err := store.Consume(ctx)
		require.NoError(t, err)
		assert.Equal(t, "nonce", state.Value)
		assert.True(t, created.Equal(state.CreatedAt))

		_, err = store.Consume(ctx)
		assert.ErrorIs(t, err, integration.ErrStateNotFound)
	})

	t.Run("pending nonce expires with the ttl", func(t *testing.T) {
		store := NewRedisStateStore(client, "client-2", time.Minute)
		require.NoError(t, store.Put(ctx, integration.OAuthState{Value: "nonce", CreatedAt: created}))

		ttl, err := client.TTL(ctx, defaultStateKeyPrefix+"client-2").Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))
		assert.LessOrEqual(t, ttl, time.Minute)
	})

	t.Run("clear drops pending nonce", func(t *testing.T) {
		store := NewRedisStateStore(client, "client-3", time.Minute)
		require.NoError(t, store.Put(ctx, integration.OAuthState{Value: "nonce", CreatedAt: created}))
		require.NoError(t, store.Clear(ctx))

		_, err := store.Pending(ctx)
		assert.ErrorIs(t, err, integration.ErrStateNotFound)
	})
}

func TestRedisRunLock(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()

	first := NewRedisRunLock(client, "")
	second := NewRedisRunLock(client, "")

	ok, err := first.Acquire(ctx, "sync:items", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.Acquire(ctx, "sync:items", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// a non-owner cannot release someone else's lock
	require.NoError(t, second.Release(ctx, "sync:items"))
	ok, _ = second.Acquire(ctx, "sync:items", time.Minute)
	assert.False(t, ok)

	require.NoError(t, first.Release(ctx, "sync:items"))
	ok, err = second.Acquire(ctx, "sync:items", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisChallengeStore(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()
	store := NewRedisChallengeStore(client)

	require.NoError(t, store.Bind(ctx, "tok-1", "+37060000001", time.Minute))
	phone, err := store.Phone(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "+37060000001", phone)

	ttl, err := client.TTL(ctx, defaultChallengeKeyPrefix+"tok-1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, store.Forget(ctx, "tok-1"))
	_, err = store.Phone(ctx, "tok-1")
	assert.ErrorIs(t, err, phoneauth.ErrUnknownChallenge)
}
