package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
)

// setupTestTracer sets up a test tracer provider and returns the span recorder.
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	t.Cleanup(func() {
		_ = tp.Shutdown(t.Context())
	})
	return sr
}

// endedSpan returns the ended span with the given name
func endedSpan(t *testing.T, sr *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	t.Helper()
	for _, span := range sr.Ended() {
		if span.Name() == name {
			return span
		}
	}
	require.Failf(t, "span not found", "no ended span named %q", name)
	return nil
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (string, bool) {
	for _, attr := range span.Attributes() {
		if attr.Key == attribute.Key(key) {
			return attr.Value.Emit(), true
		}
	}
	return "", false
}

func TestTracing_CreatesRouteSpan(t *testing.T) {
	sr := setupTestTracer(t)

	router := gin.New()
	router.Use(Tracing("bcsync"))
	router.GET("/api/v1/erp/oauth/status", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/erp/oauth/status", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	endedSpan(t, sr, "GET /api/v1/erp/oauth/status")
}

func TestTracing_SkipsProbes(t *testing.T) {
	sr := setupTestTracer(t)

	router := gin.New()
	router.Use(Tracing("bcsync", "/health"))
	router.GET("/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, sr.Ended())
}

func TestSpanAnnotator_AddsRequestAttributes(t *testing.T) {
	sr := setupTestTracer(t)

	router := gin.New()
	router.Use(RequestID())
	router.Use(Tracing("bcsync"))
	router.Use(SpanAnnotator())
	admin := router.Group("/api/v1/erp", func(c *gin.Context) {
		c.Set(AdminPrincipalKey, "admin")
		c.Next()
	})
	admin.POST("/sync/:family", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/erp/sync/items", nil)
	req.Header.Set(HeaderRequestID, "test-request-id-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	span := endedSpan(t, sr, "POST /api/v1/erp/sync/:family")
	requestID, ok := spanAttr(span, "request_id")
	assert.True(t, ok)
	assert.Equal(t, "test-request-id-123", requestID)
	family, ok := spanAttr(span, "erp.family")
	assert.True(t, ok)
	assert.Equal(t, "items", family)
	principal, ok := spanAttr(span, "auth.principal")
	assert.True(t, ok)
	assert.Equal(t, "admin", principal)
	assert.Equal(t, codes.Unset, span.Status().Code)
}

func TestSpanAnnotator_MarksClientErrors(t *testing.T) {
	tests := []struct {
		status      int
		description string
	}{
		{http.StatusBadRequest, "Bad Request"},
		{http.StatusUnauthorized, "Unauthorized"},
		{http.StatusConflict, "Conflict"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			sr := setupTestTracer(t)

			router := gin.New()
			router.Use(Tracing("bcsync"))
			router.Use(SpanAnnotator())
			router.GET("/test", func(c *gin.Context) {
				c.Status(tt.status)
			})

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
			require.Equal(t, tt.status, w.Code)

			span := endedSpan(t, sr, "GET /test")
			assert.Equal(t, codes.Error, span.Status().Code)
			assert.Equal(t, tt.description, span.Status().Description)
		})
	}
}

func TestSpanAnnotator_RecordsHandlerError(t *testing.T) {
	sr := setupTestTracer(t)

	router := gin.New()
	router.Use(Tracing("bcsync"))
	router.Use(SpanAnnotator())
	router.GET("/test", func(c *gin.Context) {
		_ = c.Error(errors.New("token endpoint unreachable"))
		c.Status(http.StatusBadGateway)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))

	span := endedSpan(t, sr, "GET /test")
	assert.Equal(t, codes.Error, span.Status().Code)
	require.NotEmpty(t, span.Events())
	assert.Equal(t, "exception", span.Events()[0].Name)
}

func TestSpanAnnotator_WithNoSpan(t *testing.T) {
	otel.SetTracerProvider(noop.NewTracerProvider())

	router := gin.New()
	router.Use(SpanAnnotator())
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetRequestIDFromContext(t *testing.T) {
	tests := []struct {
		name    string
		context string
		header  string
		want    string
	}{
		{"from context", "context-request-id", "header-request-id", "context-request-id"},
		{"from header", "", "header-request-id", "header-request-id"},
		{"long header truncated", "", strings.Repeat("b", 200), strings.Repeat("b", MaxRequestIDLength)},
		{"absent", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			router := gin.New()
			router.GET("/test", func(c *gin.Context) {
				if tt.context != "" {
					c.Set("request_id", tt.context)
				}
				got = getRequestIDFromContext(c)
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set(HeaderRequestID, tt.header)
			}
			router.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.want, got)
		})
	}
}
