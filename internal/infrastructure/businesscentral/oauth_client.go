package businesscentral

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/erp/bcsync/internal/domain/integration"
	"github.com/erp/bcsync/internal/domain/shared"
	"github.com/erp/bcsync/internal/infrastructure/telemetry"
)

// Grant types sent to the token endpoint
const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
	GrantClientCredentials = "client_credentials"
)

// OAuthClient speaks the Entra v2.0 authorize and token endpoints
type OAuthClient struct {
	authorityURL string
	httpClient   *http.Client
	logger       *zap.Logger
}

// NewOAuthClient creates an OAuthClient
func NewOAuthClient(config *Config, logger *zap.Logger) (*OAuthClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &OAuthClient{
		authorityURL: config.AuthorityURL,
		httpClient:   &http.Client{Timeout: config.Timeout},
		logger:       logger,
	}, nil
}

// AuthorizeURL builds the browser redirect target. No network call is made.
func (c *OAuthClient) AuthorizeURL(cred integration.OAuthCredential, redirectURI, scope, state string) string {
	q := url.Values{}
	q.Set("client_id", cred.ClientID)
	q.Set("response_type", "code")
	q.Set("redirect_uri", redirectURI)
	q.Set("scope", scope)
	q.Set("state", state)
	q.Set("response_mode", "query")
	return c.endpoint(cred, "authorize") + "?" + q.Encode()
}

// ExchangeCode redeems an authorization code
func (c *OAuthClient) ExchangeCode(ctx context.Context, cred integration.OAuthCredential, code, redirectURI string) (*integration.TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", GrantAuthorizationCode)
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	return c.postToken(ctx, cred, form)
}

// Refresh redeems a refresh token
func (c *OAuthClient) Refresh(ctx context.Context, cred integration.OAuthCredential, refreshToken string) (*integration.TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", GrantRefreshToken)
	form.Set("refresh_token", refreshToken)
	return c.postToken(ctx, cred, form)
}

// ClientCredentials requests an app-only token
func (c *OAuthClient) ClientCredentials(ctx context.Context, cred integration.OAuthCredential, scope string) (*integration.TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", GrantClientCredentials)
	form.Set("scope", scope)
	return c.postToken(ctx, cred, form)
}

func (c *OAuthClient) endpoint(cred integration.OAuthCredential, name string) string {
	return fmt.Sprintf("%s/%s/oauth2/v2.0/%s", c.authorityURL, url.PathEscape(cred.Tenant()), name)
}

// tokenResponseBody is the JSON body of a successful token response
type tokenResponseBody struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	ExpiresIn    seconds `json:"expires_in"`
	TokenType    string  `json:"token_type"`
	Scope        string  `json:"scope"`
}

// seconds accepts both 3600 and "3600"
type seconds int64

func (s *seconds) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		*s = 0
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("expires_in: %w", err)
	}
	*s = seconds(n)
	return nil
}

func (c *OAuthClient) postToken(ctx context.Context, cred integration.OAuthCredential, form url.Values) (*integration.TokenResponse, error) {
	grant := form.Get("grant_type")
	ctx, span := telemetry.StartSpan(ctx, "oauth.token", telemetry.WithAttribute(telemetry.SpanAttrGrantType, grant))
	defer span.End()

	form.Set("client_id", cred.ClientID)
	form.Set("client_secret", cred.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(cred, "token"), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("businesscentral: failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		terr := &shared.TransportError{Message: err.Error()}
		telemetry.RecordError(span, terr)
		return nil, terr
	}
	defer resp.Body.Close()
	telemetry.SetAttributes(span, telemetry.SpanAttrHTTPStatus, resp.StatusCode)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseSize))
	if err != nil {
		return nil, &shared.TransportError{Message: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		herr := shared.NewHTTPError(resp.StatusCode, body)
		c.logger.Warn("Token endpoint rejected request",
			zap.String("grant_type", grant),
			zap.Int("status", resp.StatusCode),
			zap.String("error", oauthErrorCode(body)),
		)
		telemetry.RecordError(span, herr)
		return nil, herr
	}

	var parsed tokenResponseBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &shared.DecodeError{Message: err.Error()}
	}
	if parsed.AccessToken == "" {
		return nil, &shared.DecodeError{Message: "token response has no access_token"}
	}

	telemetry.SetOK(span)
	return &integration.TokenResponse{
		AccessToken:  parsed.AccessToken,
		RefreshToken: parsed.RefreshToken,
		ExpiresIn:    int64(parsed.ExpiresIn),
		TokenType:    parsed.TokenType,
		Scope:        parsed.Scope,
	}, nil
}

// oauthErrorCode extracts the RFC 6749 error code, never the description which may echo input
func oauthErrorCode(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	return e.Error
}
