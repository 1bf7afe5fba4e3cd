package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/erp/bcsync/internal/domain/phoneauth"
	"github.com/redis/go-redis/v9"
)

const defaultChallengeKeyPrefix = "erp:phoneauth:challenge:"

// RedisChallengeStore keeps token to phone bindings in Redis so any instance can answer a status check
type RedisChallengeStore struct {
	client    redis.Cmdable
	keyPrefix string
}

// NewRedisChallengeStore creates a Redis challenge store
func NewRedisChallengeStore(client redis.Cmdable) *RedisChallengeStore {
	return &RedisChallengeStore{client: client, keyPrefix: defaultChallengeKeyPrefix}
}

// Bind records phone for token until ttl passes
func (s *RedisChallengeStore) Bind(ctx context.Context, token, phone string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.keyPrefix+token, phone, ttl).Err(); err != nil {
		return fmt.Errorf("failed to bind phone challenge: %w", err)
	}
	return nil
}

// Phone returns the phone token was issued to
func (s *RedisChallengeStore) Phone(ctx context.Context, token string) (string, error) {
	phone, err := s.client.Get(ctx, s.keyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", phoneauth.ErrUnknownChallenge
	}
	if err != nil {
		return "", fmt.Errorf("failed to read phone challenge: %w", err)
	}
	return phone, nil
}

// Forget drops the binding
func (s *RedisChallengeStore) Forget(ctx context.Context, token string) error {
	return s.client.Del(ctx, s.keyPrefix+token).Err()
}

// InMemoryChallengeStore keeps bindings in process. Expired entries are swept on Bind.
type InMemoryChallengeStore struct {
	mu      sync.Mutex
	entries map[string]boundPhone
	clock   func() time.Time
}

type boundPhone struct {
	phone     string
	expiresAt time.Time
}

// NewInMemoryChallengeStore creates an empty store
func NewInMemoryChallengeStore() *InMemoryChallengeStore {
	return &InMemoryChallengeStore{
		entries: make(map[string]boundPhone),
		clock:   time.Now,
	}
}

func (s *InMemoryChallengeStore) Bind(_ context.Context, token, phone string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
	s.entries[token] = boundPhone{phone: phone, expiresAt: now.Add(ttl)}
	return nil
}

func (s *InMemoryChallengeStore) Phone(_ context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[token]
	if !ok || !s.clock().Before(e.expiresAt) {
		return "", phoneauth.ErrUnknownChallenge
	}
	return e.phone, nil
}

func (s *InMemoryChallengeStore) Forget(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, token)
	return nil
}

var (
	_ phoneauth.ChallengeStore = (*RedisChallengeStore)(nil)
	_ phoneauth.ChallengeStore = (*InMemoryChallengeStore)(nil)
)
