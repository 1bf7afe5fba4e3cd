package phoneauth

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/erp/bcsync/internal/domain/integration"
	"github.com/erp/bcsync/internal/domain/phoneauth"
	"github.com/erp/bcsync/internal/domain/shared"
)

// CustomerFinder looks up a synchronized customer by phone number
type CustomerFinder interface {
	FindByPhoneNumber(ctx context.Context, phone string) (*integration.Customer, error)
}

// LoginResult is a resolved challenge and, when the phone belongs to a synchronized customer, that customer
type LoginResult struct {
	Status   *phoneauth.StatusResult
	Customer *integration.Customer
}

// DefaultChallengeTTL bounds how long a token stays bound to its phone
const DefaultChallengeTTL = 10 * time.Minute

// Service runs mobile sign-in for customers. Customers are matched only on
// the phone the challenge was issued to.
type Service struct {
	client       phoneauth.Client
	poller       *Poller
	challenges   phoneauth.ChallengeStore
	customers    CustomerFinder
	logger       *zap.Logger
	challengeTTL time.Duration
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithChallengeTTL sets how long a started challenge can be checked
func WithChallengeTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.challengeTTL = ttl
		}
	}
}

// NewService creates a Service. customers may be nil.
func NewService(client phoneauth.Client, poller *Poller, challenges phoneauth.ChallengeStore, customers CustomerFinder, logger *zap.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		client:       client,
		poller:       poller,
		challenges:   challenges,
		customers:    customers,
		logger:       logger,
		challengeTTL: DefaultChallengeTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start issues a challenge to the phone and binds the token to it
func (s *Service) Start(ctx context.Context, phone string) (*phoneauth.Challenge, error) {
	phone = strings.TrimSpace(phone)
	challenge, err := s.client.InitiateLogin(ctx, phone)
	if err != nil {
		return nil, err
	}
	if err := s.challenges.Bind(ctx, challenge.Token, phone, s.challengeTTL); err != nil {
		return nil, err
	}
	s.logger.Info("Phone login started")
	return challenge, nil
}

// Check performs exactly one status check
func (s *Service) Check(ctx context.Context, token string) (*LoginResult, error) {
	phone, err := s.challenges.Phone(ctx, token)
	if err != nil {
		return nil, err
	}
	status, err := s.client.CheckStatus(ctx, token)
	if err != nil {
		return nil, err
	}
	if status.Status.IsTerminal() {
		s.forget(ctx, token)
	}
	return s.withCustomer(ctx, status, phone), nil
}

// Wait polls until the challenge resolves, times out or ctx ends
func (s *Service) Wait(ctx context.Context, token string) (*LoginResult, error) {
	phone, err := s.challenges.Phone(ctx, token)
	if err != nil {
		return nil, err
	}
	status, err := s.poller.Wait(ctx, token)
	if status != nil {
		s.forget(ctx, token)
	}
	if err != nil {
		if status != nil {
			return &LoginResult{Status: status}, err
		}
		return nil, err
	}
	return s.withCustomer(ctx, status, phone), nil
}

func (s *Service) forget(ctx context.Context, token string) {
	if err := s.challenges.Forget(ctx, token); err != nil {
		s.logger.Warn("Failed to drop phone challenge binding", zap.Error(err))
	}
}

func (s *Service) withCustomer(ctx context.Context, status *phoneauth.StatusResult, phone string) *LoginResult {
	result := &LoginResult{Status: status}
	if status.Status != phoneauth.AuthStatusAuthenticated || s.customers == nil {
		return result
	}
	customer, err := s.customers.FindByPhoneNumber(ctx, phone)
	switch {
	case err == nil:
		result.Customer = customer
	case errors.Is(err, shared.ErrNotFound):
	default:
		s.logger.Warn("Customer lookup after phone login failed", zap.Error(err))
	}
	return result
}
