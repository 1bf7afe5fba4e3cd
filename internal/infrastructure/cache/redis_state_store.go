package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/erp/bcsync/internal/domain/integration"
	"github.com/redis/go-redis/v9"
)

const defaultStateKeyPrefix = "erp:oauth:state:"

// RedisStateStore implements integration.StateStore for deployments with several instances.
// The pending nonce lives under one key per credential and expires on its own after the ttl.
type RedisStateStore struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
}

type storedState struct {
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRedisStateStore creates a state store bound to one credential key
func NewRedisStateStore(client redis.Cmdable, credentialKey string, ttl time.Duration) *RedisStateStore {
	return &RedisStateStore{
		client: client,
		key:    defaultStateKeyPrefix + credentialKey,
		ttl:    ttl,
	}
}

// Put replaces any pending nonce
func (s *RedisStateStore) Put(ctx context.Context, state integration.OAuthState) error {
	payload, err := json.Marshal(storedState{Value: state.Value, CreatedAt: state.CreatedAt.UTC()})
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store oauth state: %w", err)
	}
	return nil
}

// Consume reads and deletes the pending nonce in one GETDEL
func (s *RedisStateStore) Consume(ctx context.Context) (*integration.OAuthState, error) {
	raw, err := s.client.GetDel(ctx, s.key).Bytes()
	return s.decode(raw, err)
}

// Pending returns the pending nonce without consuming it
func (s *RedisStateStore) Pending(ctx context.Context) (*integration.OAuthState, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	return s.decode(raw, err)
}

// Clear drops any pending nonce
func (s *RedisStateStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}

func (s *RedisStateStore) decode(raw []byte, err error) (*integration.OAuthState, error) {
	if errors.Is(err, redis.Nil) {
		return nil, integration.ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read oauth state: %w", err)
	}
	var st storedState
	if err := json.Unmarshal(raw, &st); err != nil {
		// an unreadable nonce can never match, treat it as absent
		return nil, integration.ErrStateNotFound
	}
	return &integration.OAuthState{Value: st.Value, CreatedAt: st.CreatedAt}, nil
}

var _ integration.StateStore = (*RedisStateStore)(nil)
