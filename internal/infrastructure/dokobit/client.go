// Package dokobit is the mobile identity provider adapter used for phone login.
// Each method issues exactly one request; polling belongs to the caller.
package dokobit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/erp/bcsync/internal/domain/integration"
	"github.com/erp/bcsync/internal/domain/phoneauth"
	"github.com/erp/bcsync/internal/domain/shared"
	"github.com/erp/bcsync/internal/infrastructure/telemetry"
)

// Client implements phoneauth.Client against the Dokobit mobile API
type Client struct {
	settings   integration.SettingsProvider
	message    string
	httpClient *http.Client
	validate   *validator.Validate
	logger     *zap.Logger
}

// NewClient creates a Client
func NewClient(config *Config, settings integration.SettingsProvider, logger *zap.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		settings:   settings,
		message:    config.Message,
		httpClient: &http.Client{Timeout: config.Timeout},
		validate:   validator.New(),
		logger:     logger,
	}, nil
}

// InitiateLogin sends a sign-in challenge to the phone
func (c *Client) InitiateLogin(ctx context.Context, phone string) (*phoneauth.Challenge, error) {
	body := loginRequest{Phone: strings.TrimSpace(phone), Message: c.message}
	if err := c.validate.Struct(body); err != nil {
		return nil, fmt.Errorf("%w: %q", phoneauth.ErrInvalidPhone, body.Phone)
	}

	var resp loginResponse
	form := url.Values{"phone": {body.Phone}, "message": {body.Message}}
	if err := c.call(ctx, http.MethodPost, "/v2/mobile/login.json", form, &resp); err != nil {
		return nil, err
	}
	if strings.EqualFold(resp.Status, statusError) {
		return nil, fmt.Errorf("%w: %s", phoneauth.ErrInvalidResponse, resp.Message)
	}
	if resp.Token == "" || resp.ControlCode == "" {
		return nil, fmt.Errorf("%w: token or control_code missing", phoneauth.ErrInvalidResponse)
	}
	return &phoneauth.Challenge{Token: resp.Token, ControlCode: resp.ControlCode}, nil
}

// CheckStatus asks once for the state of a challenge
func (c *Client) CheckStatus(ctx context.Context, token string) (*phoneauth.StatusResult, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: empty token", phoneauth.ErrInvalidResponse)
	}

	var resp statusResponse
	path := "/v2/mobile/login/status/" + url.PathEscape(token) + ".json"
	if err := c.call(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Status == "" {
		return nil, fmt.Errorf("%w: status missing", phoneauth.ErrInvalidResponse)
	}
	return &phoneauth.StatusResult{
		Status:    phoneauth.ParseAuthStatus(resp.Status),
		Code:      resp.Code,
		Name:      resp.Name,
		Surname:   resp.Surname,
		Country:   resp.Country,
		RawStatus: resp.Status,
	}, nil
}

// call sends the api key as access_token: in the query for a bodiless request,
// as a form field next to form otherwise. The JSON answer is decoded into out.
func (c *Client) call(ctx context.Context, method, path string, form url.Values, out any) error {
	endpoint, apiKey, err := c.credentials(ctx)
	if err != nil {
		return err
	}

	ctx, span := telemetry.StartSpan(ctx, "phone_auth.request")
	defer span.End()
	telemetry.SetAttributes(span, "http.request.method", method)

	target := endpoint + path
	var reader io.Reader
	if form == nil {
		target += "?" + url.Values{"access_token": {apiKey}}.Encode()
	} else {
		form.Set("access_token", apiKey)
		reader = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("dokobit: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		terr := &shared.TransportError{Message: redact(err)}
		telemetry.RecordError(span, terr)
		return terr
	}
	defer resp.Body.Close()
	telemetry.SetAttributes(span, telemetry.SpanAttrHTTPStatus, resp.StatusCode)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &shared.TransportError{Message: redact(err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		herr := shared.NewHTTPError(resp.StatusCode, data)
		c.logger.Warn("Dokobit request failed",
			zap.String("method", method),
			zap.Int("status", resp.StatusCode),
		)
		telemetry.RecordError(span, herr)
		return herr
	}

	if err := json.Unmarshal(data, out); err != nil {
		derr := &shared.DecodeError{Message: err.Error()}
		telemetry.RecordError(span, derr)
		return derr
	}
	return nil
}

func (c *Client) credentials(ctx context.Context) (string, string, error) {
	endpoint, err := c.settings.Get(ctx, integration.SettingDokobitEndpoint)
	if err != nil {
		return "", "", err
	}
	apiKey, err := c.settings.Get(ctx, integration.SettingDokobitAPIKey)
	if err != nil {
		return "", "", err
	}
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	apiKey = strings.TrimSpace(apiKey)
	if endpoint == "" || apiKey == "" {
		return "", "", phoneauth.ErrNotConfigured
	}
	return endpoint, apiKey, nil
}

// redact drops the request URL (it carries the api key) from transport errors
func redact(err error) string {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Op + ": " + uerr.Err.Error()
	}
	return err.Error()
}
