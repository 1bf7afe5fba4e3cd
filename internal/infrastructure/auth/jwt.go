// Package auth reads claims from Microsoft Entra access tokens.
// Business Central validates the signature; this service only needs the expiry and tenant,
// so tokens are parsed without verification and never trusted for authorization.
package auth

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/erp/bcsync/internal/domain/integration"
)

// Common errors
var (
	ErrInvalidToken  = errors.New("auth: token is not a JWT")
	ErrInvalidClaims = errors.New("auth: invalid token claims")
	ErrMissingExpiry = errors.New("auth: token has no exp claim")
)

// EntraClaims is the subset of Entra access-token claims we read
type EntraClaims struct {
	jwt.RegisteredClaims
	TenantID string   `json:"tid"`
	AppID    string   `json:"appid,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	Scope    string   `json:"scp,omitempty"`
}

// JWTInspector parses access tokens without verifying them
type JWTInspector struct {
	parser *jwt.Parser
}

// NewJWTInspector creates a JWTInspector
func NewJWTInspector() *JWTInspector {
	return &JWTInspector{parser: jwt.NewParser()}
}

// Claims returns the raw Entra claims of token
func (i *JWTInspector) Claims(tokenString string) (*EntraClaims, error) {
	// opaque (non JWT) tokens are legal OAuth access tokens
	if strings.Count(tokenString, ".") != 2 {
		return nil, ErrInvalidToken
	}
	claims := &EntraClaims{}
	if _, _, err := i.parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, errors.Join(ErrInvalidClaims, err)
	}
	return claims, nil
}

// Inspect implements integration.TokenInspector
func (i *JWTInspector) Inspect(tokenString string) (*integration.TokenClaims, error) {
	claims, err := i.Claims(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.ExpiresAt == nil {
		return nil, ErrMissingExpiry
	}
	return &integration.TokenClaims{
		TenantID:  claims.TenantID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
