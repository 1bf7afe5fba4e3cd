package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appintegration "github.com/erp/bcsync/internal/application/integration"
	"github.com/erp/bcsync/internal/domain/integration"
	"github.com/erp/bcsync/internal/infrastructure/logger"
)

// ERPConnector drives the OAuth connection to the ERP
type ERPConnector interface {
	Initiate(ctx context.Context) (string, error)
	HandleCallback(ctx context.Context, params appintegration.CallbackParams) (*integration.TokenState, error)
	ConnectServiceAccount(ctx context.Context) (*integration.TokenState, error)
	Revoke(ctx context.Context) error
	Status(ctx context.Context) (*integration.ConnectionInfo, error)
}

// ERPOAuthHandler handles the ERP authorization endpoints
type ERPOAuthHandler struct {
	BaseHandler
	connector ERPConnector
}

// NewERPOAuthHandler creates a new ERPOAuthHandler
func NewERPOAuthHandler(connector ERPConnector) *ERPOAuthHandler {
	return &ERPOAuthHandler{connector: connector}
}

// AuthorizeResponse carries the identity provider URL the operator must visit
// @Description Authorization redirect target
type AuthorizeResponse struct {
	AuthorizeURL string `json:"authorize_url" example:"https://login.microsoftonline.com/common/oauth2/v2.0/authorize?client_id=..."`
}

// ConnectionResponse describes a freshly established connection. Tokens are never returned.
// @Description Established ERP connection
type ConnectionResponse struct {
	Connected       bool      `json:"connected" example:"true"`
	ExpiresAt       time.Time `json:"expires_at"`
	HasRefreshToken bool      `json:"has_refresh_token" example:"true"`
}

// CallbackQuery is what the identity provider appends to the redirect URI
type CallbackQuery struct {
	Code             string `form:"code"`
	State            string `form:"state"`
	Error            string `form:"error"`
	ErrorDescription string `form:"error_description"`
}

func newConnectionResponse(state *integration.TokenState) ConnectionResponse {
	return ConnectionResponse{
		Connected:       !state.IsEmpty(),
		ExpiresAt:       state.ExpiresAt,
		HasRefreshToken: state.RefreshToken != "",
	}
}

// Authorize godoc
//
//	@ID				authorizeERP
//	@Summary		Start the ERP authorization
//	@Description	Issues a single-use state and redirects to the identity provider. With format=json the URL is returned instead.
//	@Tags			erp-oauth
//	@Produce		json
//	@Param			format	query		string	false	"Response format"	Enums(json)
//	@Success		200		{object}	APIResponse[AuthorizeResponse]
//	@Success		302
//	@Failure		401		{object}	ErrorResponse
//	@Failure		412		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/erp/oauth/authorize [get]
func (h *ERPOAuthHandler) Authorize(c *gin.Context) {
	url, err := h.connector.Initiate(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if c.Query("format") == "json" {
		h.Success(c, AuthorizeResponse{AuthorizeURL: url})
		return
	}
	c.Redirect(http.StatusFound, url)
}

// Callback godoc
//
//	@ID				callbackERP
//	@Summary		Complete the ERP authorization
//	@Description	Redirect target of the identity provider. Consumes the state and exchanges the code for tokens.
//	@Tags			erp-oauth
//	@Produce		json
//	@Param			code				query		string	false	"Authorization code"
//	@Param			state				query		string	false	"State issued by authorize"
//	@Param			error				query		string	false	"Provider error code"
//	@Param			error_description	query		string	false	"Provider error description"
//	@Success		200					{object}	APIResponse[ConnectionResponse]
//	@Failure		400					{object}	ErrorResponse
//	@Failure		502					{object}	ErrorResponse
//	@Router			/erp/oauth/callback [get]
func (h *ERPOAuthHandler) Callback(c *gin.Context) {
	var q CallbackQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}

	state, err := h.connector.HandleCallback(c.Request.Context(), appintegration.CallbackParams{
		Code:             q.Code,
		State:            q.State,
		Error:            q.Error,
		ErrorDescription: q.ErrorDescription,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	logger.GetGinLogger(c).Info("ERP connected via authorization code",
		zap.Time("expires_at", state.ExpiresAt))
	h.Success(c, newConnectionResponse(state))
}

// ConnectServiceAccount godoc
//
//	@ID				connectServiceAccountERP
//	@Summary		Connect with client credentials
//	@Description	Obtains an app-only token without a signed-in user. Only available when allow_client_credentials is set.
//	@Tags			erp-oauth
//	@Produce		json
//	@Success		200	{object}	APIResponse[ConnectionResponse]
//	@Failure		401	{object}	ErrorResponse
//	@Failure		403	{object}	ErrorResponse
//	@Failure		412	{object}	ErrorResponse
//	@Failure		502	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/erp/oauth/service-account [post]
func (h *ERPOAuthHandler) ConnectServiceAccount(c *gin.Context) {
	state, err := h.connector.ConnectServiceAccount(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, newConnectionResponse(state))
}

// Revoke godoc
//
//	@ID				revokeERP
//	@Summary		Disconnect the ERP
//	@Description	Deletes the stored tokens. The grant at the identity provider is left untouched.
//	@Tags			erp-oauth
//	@Success		204
//	@Failure		401	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/erp/oauth/revoke [post]
func (h *ERPOAuthHandler) Revoke(c *gin.Context) {
	if err := h.connector.Revoke(c.Request.Context()); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Status godoc
//
//	@ID				statusERP
//	@Summary		Get the ERP connection status
//	@Tags			erp-oauth
//	@Produce		json
//	@Success		200	{object}	APIResponse[integration.ConnectionInfo]
//	@Failure		401	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/erp/oauth/status [get]
func (h *ERPOAuthHandler) Status(c *gin.Context) {
	info, err := h.connector.Status(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, info)
}
