package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/bcsync/internal/infrastructure/logger"
)

// SettingsManager reads and writes runtime ERP settings
type SettingsManager interface {
	Get(ctx context.Context) (map[string]string, error)
	Update(ctx context.Context, values map[string]string) ([]string, error)
}

// ERPSettingsHandler handles the runtime settings endpoints
type ERPSettingsHandler struct {
	BaseHandler
	settings SettingsManager
}

// NewERPSettingsHandler creates a new ERPSettingsHandler
func NewERPSettingsHandler(settings SettingsManager) *ERPSettingsHandler {
	return &ERPSettingsHandler{settings: settings}
}

// UpdateSettingsRequest is a partial settings update keyed by setting name
// @Description Settings to change; omitted keys keep their value, a masked secret is left untouched
type UpdateSettingsRequest struct {
	Values map[string]string `json:"values" binding:"required,min=1" example:"api_url:https://api.businesscentral.dynamics.com/v2.0/tenant/production/api/v2.0"`
}

// UpdateSettingsResponse lists the keys actually written
// @Description Result of a settings update
type UpdateSettingsResponse struct {
	Updated []string `json:"updated" example:"api_url,company_id"`
}

// GetSettings godoc
//
//	@ID				getERPSettings
//	@Summary		Get runtime ERP settings
//	@Description	Secrets are masked.
//	@Tags			erp-settings
//	@Produce		json
//	@Success		200	{object}	APIResponse[map[string]string]
//	@Failure		401	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/erp/settings [get]
func (h *ERPSettingsHandler) GetSettings(c *gin.Context) {
	values, err := h.settings.Get(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, values)
}

// UpdateSettings godoc
//
//	@ID				updateERPSettings
//	@Summary		Update runtime ERP settings
//	@Description	Validates and writes the given keys. Changing client_id, client_secret or tenant_id disconnects the ERP.
//	@Tags			erp-settings
//	@Accept			json
//	@Produce		json
//	@Param			request	body		UpdateSettingsRequest	true	"Settings to change"
//	@Success		200		{object}	APIResponse[UpdateSettingsResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/erp/settings [put]
func (h *ERPSettingsHandler) UpdateSettings(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	updated, err := h.settings.Update(c.Request.Context(), req.Values)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	logger.GetGinLogger(c).Info("ERP settings updated", zap.Strings("keys", updated))
	if updated == nil {
		updated = []string{}
	}
	h.Success(c, UpdateSettingsResponse{Updated: updated})
}
