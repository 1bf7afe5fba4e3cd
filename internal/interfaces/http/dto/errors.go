package dto

import "net/http"

// Error codes of the response envelope, ERR_<AREA>_<REASON>
const (
	ErrCodeInternal         = "ERR_INTERNAL"
	ErrCodeBadRequest       = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput     = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON      = "ERR_INVALID_JSON"
	ErrCodeInvalidState     = "ERR_INVALID_STATE"
	ErrCodePayloadTooLarge  = "ERR_PAYLOAD_TOO_LARGE"
	ErrCodeNotFound         = "ERR_NOT_FOUND"
	ErrCodeUnauthorized     = "ERR_UNAUTHORIZED"
	ErrCodeForbidden        = "ERR_FORBIDDEN"
	ErrCodeRateLimited      = "ERR_RATE_LIMITED"

	ErrCodeValidation         = "ERR_VALIDATION"
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	ErrCodeValidationFormat   = "ERR_VALIDATION_FORMAT"

	// Credentials or endpoints have not been set up
	ErrCodeNotConfigured = "ERR_NOT_CONFIGURED"
	// The identity provider redirected back with an error
	ErrCodeOAuthDenied = "ERR_OAUTH_DENIED"
	// Callback state missing, expired or not ours
	ErrCodeOAuthState       = "ERR_OAUTH_STATE"
	ErrCodeNotAuthenticated = "ERR_NOT_AUTHENTICATED"
	// The stored grant can no longer be refreshed; the operator must reconnect
	ErrCodeReauthRequired = "ERR_REAUTH_REQUIRED"
	// ErrCodeSyncInProgress is used when another run of the same family holds the lock
	ErrCodeSyncInProgress  = "ERR_SYNC_IN_PROGRESS"
	ErrCodeUpstream        = "ERR_UPSTREAM"
	ErrCodeUpstreamTimeout = "ERR_UPSTREAM_TIMEOUT"

	ErrCodePhoneAuthFailed = "ERR_PHONE_AUTH_FAILED"
	// Still pending after the attempt cap
	ErrCodePhoneAuthTimeout = "ERR_PHONE_AUTH_TIMEOUT"
)

var statusByCode = map[string]int{
	ErrCodeInternal:         http.StatusInternalServerError,
	ErrCodeBadRequest:       http.StatusBadRequest,
	ErrCodeInvalidInput:     http.StatusBadRequest,
	ErrCodeInvalidJSON:      http.StatusBadRequest,
	ErrCodeInvalidState:     http.StatusUnprocessableEntity,
	ErrCodePayloadTooLarge:  http.StatusRequestEntityTooLarge,
	ErrCodeNotFound:         http.StatusNotFound,
	ErrCodeUnauthorized:     http.StatusUnauthorized,
	ErrCodeForbidden:        http.StatusForbidden,
	ErrCodeRateLimited:      http.StatusTooManyRequests,

	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRequired: http.StatusBadRequest,
	ErrCodeValidationFormat:   http.StatusBadRequest,

	ErrCodeNotConfigured:    http.StatusPreconditionFailed,
	ErrCodeOAuthDenied:      http.StatusBadRequest,
	ErrCodeOAuthState:       http.StatusBadRequest,
	ErrCodeNotAuthenticated: http.StatusUnauthorized,
	ErrCodeReauthRequired:   http.StatusUnauthorized,
	ErrCodeSyncInProgress:   http.StatusConflict,
	ErrCodeUpstream:         http.StatusBadGateway,
	ErrCodeUpstreamTimeout:  http.StatusGatewayTimeout,

	ErrCodePhoneAuthFailed:  http.StatusUnauthorized,
	ErrCodePhoneAuthTimeout: http.StatusRequestTimeout,
}

// GetHTTPStatus returns the status for an error code, 500 for codes it does not know
func GetHTTPStatus(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// domainCodes translates shared.DomainError codes
var domainCodes = map[string]string{
	"NOT_FOUND":     ErrCodeNotFound,
	"INVALID_INPUT": ErrCodeInvalidInput,
	"INVALID_PHONE": ErrCodeValidationFormat,
	"INVALID_STATE": ErrCodeInvalidState,
	"UNAUTHORIZED":  ErrCodeUnauthorized,
}

// NormalizeErrorCode maps a domain error code to its envelope code; other codes pass through
func NormalizeErrorCode(code string) string {
	if mapped, ok := domainCodes[code]; ok {
		return mapped
	}
	return code
}
