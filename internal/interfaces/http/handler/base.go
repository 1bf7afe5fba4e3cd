package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	appintegration "github.com/erp/bcsync/internal/application/integration"
	"github.com/erp/bcsync/internal/domain/integration"
	"github.com/erp/bcsync/internal/domain/phoneauth"
	"github.com/erp/bcsync/internal/domain/shared"
	"github.com/erp/bcsync/internal/infrastructure/logger"
	"github.com/erp/bcsync/internal/interfaces/http/dto"
	"github.com/erp/bcsync/internal/interfaces/http/middleware"
)

// RequestIDKey is the header carrying the request ID
const RequestIDKey = middleware.HeaderRequestID

// reconnectHelp points operators at the way out of an expired grant
const reconnectHelp = "/api/v1/erp/oauth/authorize"

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	return c.GetHeader(RequestIDKey)
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response for a bounded list
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total, limit int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, limit))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// ValidationError sends a 400 validation error response with details
func (h *BaseHandler) ValidationError(c *gin.Context, details []dto.ValidationDetail) {
	c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(
		"Request validation failed",
		getRequestID(c),
		details,
	))
}

// BindError answers a failed ShouldBind call
func (h *BaseHandler) BindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		middleware.HandleValidationError(c, verrs)
		return
	}
	h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "Invalid request body")
}

// errorMapping binds a sentinel to the code and public message it is reported with.
// detailed mappings report err.Error() instead, for errors whose text names the offending input.
type errorMapping struct {
	target   error
	code     string
	message  string
	detailed bool
}

// errorMappings is checked in order; the first errors.Is match wins
var errorMappings = []errorMapping{
	{integration.ErrConfigIncomplete, dto.ErrCodeNotConfigured, "ERP client id and client secret must be configured", false},
	{integration.ErrRedirectNotConfigured, dto.ErrCodeNotConfigured, "OAuth redirect URL is not configured", false},
	{integration.ErrAPINotConfigured, dto.ErrCodeNotConfigured, "ERP API URL and company id must be configured", false},
	{phoneauth.ErrNotConfigured, dto.ErrCodeNotConfigured, "Phone authentication is not configured", false},
	{integration.ErrProviderDenied, dto.ErrCodeOAuthDenied, "Authorization was denied by the identity provider", true},
	{integration.ErrStateInvalid, dto.ErrCodeOAuthState, "Authorization state is invalid or expired, start again", false},
	{integration.ErrCodeMissing, dto.ErrCodeValidationRequired, "Authorization code is missing", false},
	{integration.ErrClientCredentialsDisabled, dto.ErrCodeForbidden, "Service account connections are disabled", false},
	{integration.ErrRefreshFailed, dto.ErrCodeReauthRequired, "ERP authorization expired, reconnect", false},
	{integration.ErrCorruptTokenState, dto.ErrCodeReauthRequired, "Stored ERP authorization is unusable, reconnect", false},
	{integration.ErrNotAuthenticated, dto.ErrCodeNotAuthenticated, "ERP is not connected", false},
	{integration.ErrUnauthenticated, dto.ErrCodeNotAuthenticated, "ERP is not connected", false},
	{integration.ErrTokenExchangeFailed, dto.ErrCodeUpstream, "Authorization code could not be exchanged", false},
	{integration.ErrUnknownFamily, dto.ErrCodeNotFound, "Unknown entity family", true},
	{integration.ErrSyncInProgress, dto.ErrCodeSyncInProgress, "A synchronization of this family is already running", false},
	{integration.ErrNotFound, dto.ErrCodeNotFound, "Referenced record not found", true},
	{integration.ErrValidation, dto.ErrCodeValidation, "Invalid value", true},
	{appintegration.ErrUnknownSetting, dto.ErrCodeInvalidInput, "Unknown setting", true},
	{appintegration.ErrPaginationStalled, dto.ErrCodeUpstream, "ERP paging did not advance", false},
	{phoneauth.ErrInvalidPhone, dto.ErrCodeValidationFormat, "Phone number must be in international format", false},
	{phoneauth.ErrUnknownChallenge, dto.ErrCodeNotFound, "Phone login challenge is unknown or expired, start again", false},
	{phoneauth.ErrChallengeFailed, dto.ErrCodePhoneAuthFailed, "Phone authentication failed", false},
	{phoneauth.ErrPollTimeout, dto.ErrCodePhoneAuthTimeout, "Phone authentication was not confirmed in time", false},
	{phoneauth.ErrInvalidResponse, dto.ErrCodeUpstream, "Identity provider returned an incomplete response", false},
	{shared.ErrHTTPFailure, dto.ErrCodeUpstream, "Remote service returned an error", false},
	{shared.ErrTransportFailure, dto.ErrCodeUpstream, "Remote service is unreachable", false},
	{shared.ErrDecodeFailure, dto.ErrCodeUpstream, "Remote service returned an unreadable response", false},
	{context.DeadlineExceeded, dto.ErrCodeUpstreamTimeout, "Remote service did not answer in time", false},
}

// HandleError maps err to a status code and error envelope
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	status, resp := errorResponse(c, err)
	c.JSON(status, resp)
}

// HandleErrorWithData reports err and still returns data, e.g. the partial
// result of an aborted sync run.
func (h *BaseHandler) HandleErrorWithData(c *gin.Context, err error, data any) {
	if err == nil {
		h.Success(c, data)
		return
	}
	status, resp := errorResponse(c, err)
	resp.Data = data
	c.JSON(status, resp)
}

func errorResponse(c *gin.Context, err error) (int, dto.Response) {
	_ = c.Error(err)
	requestID := getRequestID(c)

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		return dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, domainErr.Message, requestID)
	}

	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		message := m.message
		if m.detailed {
			message = err.Error()
		}
		if m.code == dto.ErrCodeReauthRequired {
			return dto.GetHTTPStatus(m.code), dto.NewErrorResponseWithHelp(m.code, message, requestID, reconnectHelp)
		}
		return dto.GetHTTPStatus(m.code), dto.NewErrorResponseWithRequestID(m.code, message, requestID)
	}

	logger.GetGinLogger(c).Error("Unhandled request error", zap.Error(err))
	return http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeInternal,
		"An unexpected error occurred",
		requestID,
	)
}
