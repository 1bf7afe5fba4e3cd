// Package middleware provides HTTP middleware for the sync API.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/erp/bcsync/internal/infrastructure/telemetry"
)

// Tracing opens a server span per request named "METHOD route".
// Requests to skipPaths, usually probes, are not traced.
func Tracing(serviceName string, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}
	return otelgin.Middleware(serviceName, otelgin.WithFilter(func(r *http.Request) bool {
		return !skip[r.URL.Path]
	}))
}

// SpanAnnotator tags the request span after the handler chain has run, when the
// admin principal set by route group middleware is known. 4xx responses are
// marked as errors as well. Must come after Tracing.
func SpanAnnotator() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		attrs := []attribute.KeyValue{attribute.String("request_id", getRequestIDFromContext(c))}
		if family := c.Param("family"); family != "" {
			attrs = append(attrs, attribute.String(telemetry.SpanAttrFamily, family))
		}
		if principal := c.GetString(AdminPrincipalKey); principal != "" {
			attrs = append(attrs, attribute.String("auth.principal", principal))
		}
		span.SetAttributes(attrs...)

		if status := c.Writer.Status(); status >= http.StatusBadRequest {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		if last := c.Errors.Last(); last != nil {
			span.RecordError(last.Err)
		}
	}
}
