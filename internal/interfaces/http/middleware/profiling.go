package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/erp/bcsync/internal/infrastructure/telemetry"
)

const apiPrefix = "/api/v1/"

// Pyroscope label keys set per request
const (
	ProfilingLabelRoute  = "http_route"
	ProfilingLabelArea   = "api_area"
	ProfilingLabelFamily = "family"
)

// ProfilingLabels tags CPU samples taken while a request is handled with its route,
// API area (erp or auth) and sync family. Requests whose path starts with one of
// skipPrefixes, or that match no route, run unlabelled.
func ProfilingLabels(skipPrefixes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" || hasAnyPrefix(c.Request.URL.Path, skipPrefixes) {
			c.Next()
			return
		}

		labels := map[string]string{ProfilingLabelRoute: c.Request.Method + " " + route}
		if area := apiArea(route); area != "" {
			labels[ProfilingLabelArea] = area
		}
		if family := c.Param("family"); family != "" {
			labels[ProfilingLabelFamily] = family
		}

		telemetry.WithProfilingLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

// apiArea is the first segment after the /api/v1 prefix
func apiArea(route string) string {
	rest, ok := strings.CutPrefix(route, apiPrefix)
	if !ok {
		return ""
	}
	area, _, _ := strings.Cut(rest, "/")
	if strings.HasPrefix(area, ":") || strings.HasPrefix(area, "*") {
		return ""
	}
	return area
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
