package businesscentral

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/erp/bcsync/internal/domain/integration"
	"github.com/erp/bcsync/internal/domain/shared"
	"github.com/erp/bcsync/internal/infrastructure/telemetry"
)

// ErrForeignNextLink indicates a continuation link pointing away from the configured API host
var ErrForeignNextLink = errors.New("businesscentral: next link does not belong to the configured api url")

// ListOptions are the OData query options of a collection request
type ListOptions struct {
	Top       int
	Filter    string
	Select    []string
	Expand    []string
	SkipToken string
}

// Values renders the options as OData query parameters
func (o ListOptions) Values() url.Values {
	q := url.Values{}
	if o.Top > 0 {
		q.Set("$top", strconv.Itoa(o.Top))
	}
	if o.Filter != "" {
		q.Set("$filter", o.Filter)
	}
	if len(o.Select) > 0 {
		q.Set("$select", strings.Join(o.Select, ","))
	}
	if len(o.Expand) > 0 {
		q.Set("$expand", strings.Join(o.Expand, ","))
	}
	if o.SkipToken != "" {
		q.Set("$skiptoken", o.SkipToken)
	}
	return q
}

// Page is one page of an OData collection
type Page struct {
	Value    []json.RawMessage `json:"value"`
	NextLink string            `json:"@odata.nextLink,omitempty"`
}

// HasMore reports whether a continuation link was returned
func (p *Page) HasMore() bool {
	return p.NextLink != ""
}

// SkipToken returns the $skiptoken of the continuation link, "" when absent
func (p *Page) SkipToken() string {
	if p.NextLink == "" {
		return ""
	}
	u, err := url.Parse(p.NextLink)
	if err != nil {
		return ""
	}
	return u.Query().Get("$skiptoken")
}

// Client issues authenticated requests against the company scoped Business Central API.
// A fresh token is requested from the token source for every call.
type Client struct {
	settings   integration.SettingsProvider
	tokens     integration.AccessTokenSource
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a Client
func NewClient(config *Config, settings integration.SettingsProvider, tokens integration.AccessTokenSource, logger *zap.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		settings:   settings,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
	}, nil
}

// Request calls <api_url>/companies(<company_id>)/<path> and returns the raw JSON body.
// An empty 2xx body yields nil.
func (c *Client) Request(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	endpoint, err := c.endpoint(ctx)
	if err != nil {
		return nil, err
	}
	target := fmt.Sprintf("%s/companies(%s)/%s", endpoint.BaseURL, endpoint.CompanyID, strings.TrimLeft(path, "/"))
	if len(query) > 0 {
		target += "?" + encodeQuery(query)
	}
	return c.do(ctx, method, target, body)
}

// ListPage fetches one page of an entity collection. Continuations are not followed.
func (c *Client) ListPage(ctx context.Context, entity string, opts ListOptions) (*Page, error) {
	raw, err := c.Request(ctx, http.MethodGet, entity, opts.Values(), nil)
	if err != nil {
		return nil, err
	}
	return decodePage(raw)
}

// FollowNextLink fetches the page behind an absolute @odata.nextLink
func (c *Client) FollowNextLink(ctx context.Context, nextLink string) (*Page, error) {
	endpoint, err := c.endpoint(ctx)
	if err != nil {
		return nil, err
	}
	if !sameOrigin(endpoint.BaseURL, nextLink) {
		return nil, fmt.Errorf("%w: %s", ErrForeignNextLink, nextLink)
	}
	raw, err := c.do(ctx, http.MethodGet, nextLink, nil)
	if err != nil {
		return nil, err
	}
	return decodePage(raw)
}

// companyBody is the wire shape of a company
type companyBody struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	DisplayName   string `json:"displayName"`
	SystemVersion string `json:"systemVersion"`
}

// ListCompanies lists the companies visible to the credential. Only the api url is required.
func (c *Client) ListCompanies(ctx context.Context) ([]integration.Company, error) {
	endpoint, err := integration.LoadAPIEndpoint(ctx, c.settings)
	if err != nil {
		return nil, err
	}
	if endpoint.BaseURL == "" {
		return nil, integration.ErrAPINotConfigured
	}

	raw, err := c.do(ctx, http.MethodGet, endpoint.BaseURL+"/companies", nil)
	if err != nil {
		return nil, err
	}
	page, err := decodePage(raw)
	if err != nil {
		return nil, err
	}

	companies := make([]integration.Company, 0, len(page.Value))
	for _, item := range page.Value {
		var body companyBody
		if err := json.Unmarshal(item, &body); err != nil {
			return nil, &shared.DecodeError{Message: err.Error()}
		}
		companies = append(companies, integration.Company{
			ExternalID:    body.ID,
			Name:          body.Name,
			DisplayName:   body.DisplayName,
			SystemVersion: body.SystemVersion,
		})
	}
	return companies, nil
}

func (c *Client) endpoint(ctx context.Context) (integration.APIEndpoint, error) {
	endpoint, err := integration.LoadAPIEndpoint(ctx, c.settings)
	if err != nil {
		return integration.APIEndpoint{}, err
	}
	if !endpoint.Configured() {
		return integration.APIEndpoint{}, integration.ErrAPINotConfigured
	}
	return endpoint, nil
}

func (c *Client) do(ctx context.Context, method, target string, body any) (json.RawMessage, error) {
	// no token, no request
	token, err := c.tokens.GetAccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", integration.ErrUnauthenticated, err)
	}

	ctx, span := telemetry.StartSpan(ctx, "erp.request")
	defer span.End()
	telemetry.SetAttributes(span, "http.request.method", method)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("businesscentral: failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("businesscentral: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		terr := &shared.TransportError{Message: err.Error()}
		telemetry.RecordError(span, terr)
		return nil, terr
	}
	defer resp.Body.Close()
	telemetry.SetAttributes(span, telemetry.SpanAttrHTTPStatus, resp.StatusCode)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &shared.TransportError{Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		herr := shared.NewHTTPError(resp.StatusCode, data)
		c.logger.Warn("Business Central request failed",
			zap.String("method", method),
			zap.Int("status", resp.StatusCode),
		)
		telemetry.RecordError(span, herr)
		return nil, herr
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	if !json.Valid(data) {
		derr := &shared.DecodeError{Message: "response body is not valid JSON"}
		telemetry.RecordError(span, derr)
		return nil, derr
	}
	return json.RawMessage(data), nil
}

func decodePage(raw json.RawMessage) (*Page, error) {
	if raw == nil {
		return nil, &shared.DecodeError{Message: "empty collection response"}
	}
	var page Page
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, &shared.DecodeError{Message: err.Error()}
	}
	return &page, nil
}

// encodeQuery keeps the OData "$" of option names readable
func encodeQuery(q url.Values) string {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		name := url.QueryEscape(k)
		if strings.HasPrefix(k, "$") {
			name = "$" + url.QueryEscape(k[1:])
		}
		for _, v := range q[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(name)
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

func sameOrigin(baseURL, link string) bool {
	base, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	next, err := url.Parse(link)
	if err != nil || !next.IsAbs() {
		return false
	}
	return strings.EqualFold(base.Scheme, next.Scheme) && strings.EqualFold(base.Host, next.Host)
}
