package phoneauth

import (
	"context"
	"time"
)

// Client issues and checks mobile challenges; one network call per method invocation
type Client interface {
	InitiateLogin(ctx context.Context, phone string) (*Challenge, error)
	CheckStatus(ctx context.Context, token string) (*StatusResult, error)
}

// ChallengeStore remembers which phone a challenge token was issued to.
// Phone returns ErrUnknownChallenge for tokens never bound or past their ttl.
type ChallengeStore interface {
	Bind(ctx context.Context, token, phone string, ttl time.Duration) error
	Phone(ctx context.Context, token string) (string, error)
	Forget(ctx context.Context, token string) error
}
