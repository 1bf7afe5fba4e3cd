package businesscentral

import (
	"errors"
	"strings"
	"time"
)

const (
	// DefaultAuthorityURL is the Microsoft Entra login host
	DefaultAuthorityURL = "https://login.microsoftonline.com"
	// DefaultTimeout bounds every token and API call
	DefaultTimeout = 30 * time.Second
	// DefaultPageSize is the $top sent on first page requests
	DefaultPageSize = 100
	// maxResponseSize limits the response body size to prevent memory exhaustion
	maxResponseSize = 32 * 1024 * 1024
	// maxTokenResponseSize limits token endpoint bodies
	maxTokenResponseSize = 1 * 1024 * 1024
)

// Errors for Business Central configuration
var (
	ErrConfigInvalidAuthority = errors.New("businesscentral: authority url must be absolute https or http")
	ErrConfigInvalidPageSize  = errors.New("businesscentral: page size must be between 1 and 20000")
)

// EntityPaths maps entity families to API pages
type EntityPaths struct {
	Items          string
	PriceLists     string
	PriceListLines string
	Customers      string
}

// DefaultEntityPaths returns the v2.0 API page names
func DefaultEntityPaths() EntityPaths {
	return EntityPaths{
		Items:          "items",
		PriceLists:     "priceLists",
		PriceListLines: "priceListLines",
		Customers:      "customers",
	}
}

// Config holds Business Central client configuration
type Config struct {
	// AuthorityURL is the identity provider base; the tenant segment is appended per credential
	AuthorityURL string
	// Timeout is the HTTP timeout of every call
	Timeout time.Duration
	// PageSize is the $top of first page requests
	PageSize int
	Paths    EntityPaths
}

// NewConfig creates a configuration with defaults
func NewConfig() *Config {
	return &Config{
		AuthorityURL: DefaultAuthorityURL,
		Timeout:      DefaultTimeout,
		PageSize:     DefaultPageSize,
		Paths:        DefaultEntityPaths(),
	}
}

// Validate fills defaults and checks the configuration
func (c *Config) Validate() error {
	c.AuthorityURL = strings.TrimRight(strings.TrimSpace(c.AuthorityURL), "/")
	if c.AuthorityURL == "" {
		c.AuthorityURL = DefaultAuthorityURL
	}
	if !strings.HasPrefix(c.AuthorityURL, "https://") && !strings.HasPrefix(c.AuthorityURL, "http://") {
		return ErrConfigInvalidAuthority
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
	if c.PageSize < 0 || c.PageSize > 20000 {
		return ErrConfigInvalidPageSize
	}
	defaults := DefaultEntityPaths()
	if c.Paths.Items == "" {
		c.Paths.Items = defaults.Items
	}
	if c.Paths.PriceLists == "" {
		c.Paths.PriceLists = defaults.PriceLists
	}
	if c.Paths.PriceListLines == "" {
		c.Paths.PriceListLines = defaults.PriceListLines
	}
	if c.Paths.Customers == "" {
		c.Paths.Customers = defaults.Customers
	}
	return nil
}
