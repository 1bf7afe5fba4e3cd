package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/bcsync/internal/domain/integration"
	"github.com/erp/bcsync/internal/infrastructure/logger"
)

// SyncRunner runs and reports entity synchronizations
type SyncRunner interface {
	Run(ctx context.Context, family integration.EntityFamily) (*integration.SyncRunResult, error)
	RunAll(ctx context.Context) ([]*integration.SyncRunResult, error)
	RecentRuns(ctx context.Context, limit int) ([]integration.SyncRun, error)
}

// CompanyLister lists the companies visible to the connected ERP account
type CompanyLister interface {
	ListCompanies(ctx context.Context) ([]integration.Company, error)
}

// ERPSyncHandler handles company listing and sync endpoints
type ERPSyncHandler struct {
	BaseHandler
	runner    SyncRunner
	companies CompanyLister
}

// NewERPSyncHandler creates a new ERPSyncHandler
func NewERPSyncHandler(runner SyncRunner, companies CompanyLister) *ERPSyncHandler {
	return &ERPSyncHandler{runner: runner, companies: companies}
}

// RecentRunsQuery bounds the run listing
type RecentRunsQuery struct {
	Limit int `form:"limit" binding:"omitempty,gte=1,lte=100"`
}

// SyncRunResponse is one persisted run summary
// @Description Summary of a finished sync run
type SyncRunResponse struct {
	Family     integration.EntityFamily `json:"family" example:"items"`
	Created    int                      `json:"created" example:"12"`
	Updated    int                      `json:"updated" example:"340"`
	Errors     int                      `json:"errors" example:"0"`
	Pages      int                      `json:"pages" example:"4"`
	StartedAt  string                   `json:"started_at" example:"2026-03-01T12:00:00Z"`
	FinishedAt string                   `json:"finished_at" example:"2026-03-01T12:00:09Z"`
	Aborted    string                   `json:"aborted,omitempty"`
}

func toSyncRunResponse(run integration.SyncRun) SyncRunResponse {
	return SyncRunResponse{
		Family:     run.Family,
		Created:    run.Created,
		Updated:    run.Updated,
		Errors:     run.Errors,
		Pages:      run.Pages,
		StartedAt:  run.StartedAt.UTC().Format(time.RFC3339),
		FinishedAt: run.FinishedAt.UTC().Format(time.RFC3339),
		Aborted:    run.Aborted,
	}
}

// ListCompanies godoc
//
//	@ID				listERPCompanies
//	@Summary		List ERP companies
//	@Description	Used to pick the company_id setting.
//	@Tags			erp-sync
//	@Produce		json
//	@Success		200	{object}	APIResponse[[]integration.Company]
//	@Failure		401	{object}	ErrorResponse
//	@Failure		412	{object}	ErrorResponse
//	@Failure		502	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/erp/companies [get]
func (h *ERPSyncHandler) ListCompanies(c *gin.Context) {
	companies, err := h.companies.ListCompanies(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if companies == nil {
		companies = []integration.Company{}
	}
	h.SuccessWithMeta(c, companies, len(companies), 0)
}

// SyncFamily godoc
//
//	@ID				syncERPFamily
//	@Summary		Synchronize one entity family
//	@Description	Pulls every page of the family and upserts it locally. An aborted run returns its partial result with the error.
//	@Tags			erp-sync
//	@Produce		json
//	@Param			family	path		string	true	"Entity family"	Enums(items, price_lists, price_list_lines, customers)
//	@Success		200		{object}	APIResponse[integration.SyncRunResult]
//	@Failure		401		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Failure		502		{object}	APIResponse[integration.SyncRunResult]
//	@Security		BearerAuth
//	@Router			/erp/sync/{family} [post]
func (h *ERPSyncHandler) SyncFamily(c *gin.Context) {
	family := integration.EntityFamily(c.Param("family"))

	result, err := h.runner.Run(c.Request.Context(), family)
	if err != nil {
		if result != nil {
			logger.GetGinLogger(c).Warn("Sync aborted",
				zap.String("family", family.String()),
				zap.Int("pages", result.Pages),
				zap.Error(err))
		}
		h.handleRunError(c, err, result)
		return
	}
	h.Success(c, result)
}

// SyncAll godoc
//
//	@ID				syncERPAll
//	@Summary		Synchronize every entity family
//	@Description	Runs items, price lists, price list lines and customers in order. A failing family does not stop the others.
//	@Tags			erp-sync
//	@Produce		json
//	@Success		200	{object}	APIResponse[[]integration.SyncRunResult]
//	@Failure		401	{object}	ErrorResponse
//	@Failure		502	{object}	APIResponse[[]integration.SyncRunResult]
//	@Security		BearerAuth
//	@Router			/erp/sync [post]
func (h *ERPSyncHandler) SyncAll(c *gin.Context) {
	results, err := h.runner.RunAll(c.Request.Context())
	if err != nil {
		h.handleRunError(c, err, results)
		return
	}
	h.Success(c, results)
}

// ListRuns godoc
//
//	@ID				listERPSyncRuns
//	@Summary		List recent sync runs
//	@Tags			erp-sync
//	@Produce		json
//	@Param			limit	query		int	false	"Maximum runs"	default(20)	maximum(100)
//	@Success		200		{object}	APIResponse[[]SyncRunResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/erp/sync/runs [get]
func (h *ERPSyncHandler) ListRuns(c *gin.Context) {
	var q RecentRunsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}

	runs, err := h.runner.RecentRuns(c.Request.Context(), q.Limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := make([]SyncRunResponse, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, toSyncRunResponse(run))
	}
	h.SuccessWithMeta(c, resp, len(resp), q.Limit)
}

// handleRunError keeps whatever was synchronized visible to the caller.
// Errors joined by RunAll are reported by their first mappable cause.
func (h *ERPSyncHandler) handleRunError(c *gin.Context, err error, data any) {
	if isNilData(data) {
		h.HandleError(c, err)
		return
	}
	h.HandleErrorWithData(c, err, data)
}

func isNilData(data any) bool {
	switch v := data.(type) {
	case nil:
		return true
	case *integration.SyncRunResult:
		return v == nil
	case []*integration.SyncRunResult:
		return len(v) == 0
	default:
		return false
	}
}
