package phoneauth

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/erp/bcsync/internal/domain/integration"
	"github.com/erp/bcsync/internal/domain/phoneauth"
)

// MockClient is a mock implementation of phoneauth.Client
type MockClient struct {
	mock.Mock
}

func (m *MockClient) InitiateLogin(ctx context.Context, phone string) (*phoneauth.Challenge, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*phoneauth.Challenge), args.Error(1)
}

func (m *MockClient) CheckStatus(ctx context.Context, token string) (*phoneauth.StatusResult, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*phoneauth.StatusResult), args.Error(1)
}

// MockCustomerFinder is a mock implementation of CustomerFinder
type MockCustomerFinder struct {
	mock.Mock
}

func (m *MockCustomerFinder) FindByPhoneNumber(ctx context.Context, phone string) (*integration.Customer, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Customer), args.Error(1)
}

// MockChallengeStore is a mock implementation of phoneauth.ChallengeStore
type MockChallengeStore struct {
	mock.Mock
}

func (m *MockChallengeStore) Bind(ctx context.Context, token, phone string, ttl time.Duration) error {
	return m.Called(ctx, token, phone, ttl).Error(0)
}

func (m *MockChallengeStore) Phone(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

func (m *MockChallengeStore) Forget(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func pending() *phoneauth.StatusResult {
	return &phoneauth.StatusResult{Status: phoneauth.AuthStatusPending, RawStatus: "waiting"}
}

func authenticated() *phoneauth.StatusResult {
	return &phoneauth.StatusResult{
		Status:    phoneauth.AuthStatusAuthenticated,
		RawStatus: "ok",
		Code:      "38901010000",
		Name:      "Jonas",
		Surname:   "Jonaitis",
		Country:   "LT",
	}
}

// countingSleep records the waits instead of sleeping
type countingSleep struct {
	calls int
}

func (s *countingSleep) sleep(ctx context.Context, _ time.Duration) error {
	s.calls++
	return ctx.Err()
}

// memoryChallenges is a map backed phoneauth.ChallengeStore without expiry
type memoryChallenges struct {
	phones map[string]string
}

func newMemoryChallenges() *memoryChallenges {
	return &memoryChallenges{phones: make(map[string]string)}
}

func (m *memoryChallenges) Bind(_ context.Context, token, phone string, _ time.Duration) error {
	m.phones[token] = phone
	return nil
}

func (m *memoryChallenges) Phone(_ context.Context, token string) (string, error) {
	phone, ok := m.phones[token]
	if !ok {
		return "", phoneauth.ErrUnknownChallenge
	}
	return phone, nil
}

func (m *memoryChallenges) Forget(_ context.Context, token string) error {
	delete(m.phones, token)
	return nil
}
