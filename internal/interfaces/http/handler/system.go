package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/bcsync/internal/infrastructure/logger"
	"github.com/erp/bcsync/internal/interfaces/http/router"
)

// Version is stamped at build time with -ldflags "-X .../handler.Version=..."
var Version = "dev"

// healthCheckTimeout bounds each dependency probe
const healthCheckTimeout = 2 * time.Second

// RouteLister reports the registered API endpoints
type RouteLister interface {
	Routes() []router.RouteInfo
}

// HealthCheck probes one dependency
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// SystemHandler handles system-related API endpoints
type SystemHandler struct {
	BaseHandler
	name      string
	startTime time.Time
	routes    RouteLister
	checks    []HealthCheck
}

// NewSystemHandler creates a new SystemHandler. routes may be nil.
func NewSystemHandler(name string, routes RouteLister, checks ...HealthCheck) *SystemHandler {
	return &SystemHandler{
		name:      name,
		startTime: time.Now(),
		routes:    routes,
		checks:    checks,
	}
}

// SystemInfoResponse represents the system information response
// @name HandlerSystemInfoResponse
type SystemInfoResponse struct {
	Name      string `json:"name" example:"bcsync"`
	Version   string `json:"version" example:"1.0.0"`
	GoVersion string `json:"go_version" example:"go1.25.5"`
	Uptime    string `json:"uptime" example:"1h30m45s"`
}

// GetSystemInfo godoc
// @ID           getSystemSystemInfo
// @Summary      Get system information
// @Description  Returns basic system information including version and uptime
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[SystemInfoResponse]
// @Router       /system/info [get]
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	h.Success(c, SystemInfoResponse{
		Name:      h.name,
		Version:   Version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}

// PingResponse represents the ping response
// @name HandlerPingResponse
type PingResponse struct {
	Message   string `json:"message" example:"pong"`
	Timestamp string `json:"timestamp" example:"2026-01-23T12:00:00Z"`
}

// Ping godoc
// @ID           pingSystem
// @Summary      Ping the API
// @Description  Simple ping endpoint to check if the API is responsive
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[PingResponse]
// @Router       /system/ping [get]
func (h *SystemHandler) Ping(c *gin.Context) {
	h.Success(c, PingResponse{
		Message:   "pong",
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// ListRoutes godoc
// @ID           listSystemRoutes
// @Summary      List API routes
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[[]router.RouteInfo]
// @Security     BearerAuth
// @Router       /system/routes [get]
func (h *SystemHandler) ListRoutes(c *gin.Context) {
	routes := []router.RouteInfo{}
	if h.routes != nil {
		routes = append(routes, h.routes.Routes()...)
	}
	h.SuccessWithMeta(c, routes, len(routes), 0)
}

// HealthResponse reports each dependency as "ok" or "error"
// @name HandlerHealthResponse
type HealthResponse struct {
	Status string            `json:"status" example:"healthy"`
	Time   string            `json:"time" example:"2026-01-23T12:00:00Z"`
	Checks map[string]string `json:"checks"`
}

// Health godoc
// @ID           health
// @Summary      Health check
// @Description  Probes the database and cache. Answers 503 when any probe fails.
// @Tags         system
// @Produce      json
// @Success      200 {object} HealthResponse
// @Failure      503 {object} HealthResponse
// @Router       /health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status: "healthy",
		Checks: make(map[string]string, len(h.checks)),
	}
	status := http.StatusOK

	for _, check := range h.checks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		err := check.Check(ctx)
		cancel()
		if err != nil {
			logger.GetGinLogger(c).Warn("Health check failed", zap.String("check", check.Name), zap.Error(err))
			resp.Checks[check.Name] = "error"
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[check.Name] = "ok"
	}

	resp.Time = time.Now().Format(time.RFC3339)
	c.JSON(status, resp)
}

