package shared

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// ErrNotFound is returned by lookups that match no row
var ErrNotFound = NewDomainError("NOT_FOUND", "Resource not found")

// ---------------------------------------------------------------------------
// Remote call failures
// ---------------------------------------------------------------------------

// Sentinels for failures of outbound HTTP calls. The typed errors below unwrap
// to these so callers can branch with errors.Is.
var (
	ErrHTTPFailure      = errors.New("remote: unexpected http status")
	ErrTransportFailure = errors.New("remote: transport failure")
	ErrDecodeFailure    = errors.New("remote: response could not be decoded")
)

// maxErrorBodyLength caps the body kept on an HTTPError for diagnostics
const maxErrorBodyLength = 4096

// HTTPError is a non-success HTTP response, carrying the raw body
type HTTPError struct {
	StatusCode int
	Body       string
}

// NewHTTPError creates an HTTPError, truncating very large bodies
func NewHTTPError(statusCode int, body []byte) *HTTPError {
	if len(body) > maxErrorBodyLength {
		body = body[:maxErrorBodyLength]
	}
	return &HTTPError{StatusCode: statusCode, Body: string(body)}
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remote: http %d", e.StatusCode)
	}
	return fmt.Sprintf("remote: http %d: %s", e.StatusCode, e.Body)
}

// Unwrap returns ErrHTTPFailure
func (e *HTTPError) Unwrap() error {
	return ErrHTTPFailure
}

// TransportError is a network level failure (dial, TLS, timeout, reset)
type TransportError struct {
	Message string
}

func (e *TransportError) Error() string {
	return "remote: transport failure: " + e.Message
}

// Unwrap returns ErrTransportFailure
func (e *TransportError) Unwrap() error {
	return ErrTransportFailure
}

// DecodeError is a response body that is not the JSON the caller expected
type DecodeError struct {
	Message string
}

func (e *DecodeError) Error() string {
	return "remote: decode failure: " + e.Message
}

// Unwrap returns ErrDecodeFailure
func (e *DecodeError) Unwrap() error {
	return ErrDecodeFailure
}
