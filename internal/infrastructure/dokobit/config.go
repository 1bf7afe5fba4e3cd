package dokobit

import (
	"errors"
	"time"
)

const (
	// DefaultTimeout bounds every call to the identity provider
	DefaultTimeout = 30 * time.Second
	// DefaultMessage is shown on the phone next to the control code
	DefaultMessage = "Login"
	// maxResponseSize limits the response body size to prevent memory exhaustion
	maxResponseSize = 1 * 1024 * 1024
	// maxMessageLength is the provider limit for the message shown on the phone
	maxMessageLength = 100
)

// ErrConfigMessageTooLong indicates a message the provider would reject
var ErrConfigMessageTooLong = errors.New("dokobit: message must be at most 100 characters")

// Config holds client configuration.
// Endpoint and API key are runtime settings read on every call.
type Config struct {
	Timeout time.Duration
	Message string
}

// NewConfig creates a configuration with defaults
func NewConfig() *Config {
	return &Config{
		Timeout: DefaultTimeout,
		Message: DefaultMessage,
	}
}

// Validate fills defaults and checks the configuration
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Message == "" {
		c.Message = DefaultMessage
	}
	if len([]rune(c.Message)) > maxMessageLength {
		return ErrConfigMessageTooLong
	}
	return nil
}
