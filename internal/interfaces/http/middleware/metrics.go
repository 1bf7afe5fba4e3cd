package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/erp/bcsync/internal/infrastructure/telemetry"
)

// HTTP metric attribute keys
const (
	attrHTTPMethod  = attribute.Key("http.request.method")
	attrHTTPRoute   = attribute.Key("http.route")
	attrHTTPStatus  = attribute.Key("http.response.status_code")
	attrStatusClass = attribute.Key("http.status_class")
	attrFamily      = attribute.Key(telemetry.SpanAttrFamily)
)

// httpDurationBuckets covers quick status reads up to full synchronization runs
var httpDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300}

// httpMetrics holds all HTTP-related metrics instruments.
type httpMetrics struct {
	requestTotal    metric.Int64Counter
	requestDuration metric.Float64Histogram
	activeRequests  metric.Int64UpDownCounter
}

// newHTTPMetrics creates all HTTP metrics instruments from a meter.
func newHTTPMetrics(meter metric.Meter) (*httpMetrics, error) {
	m := &httpMetrics{}
	var err error

	if m.requestTotal, err = meter.Int64Counter("http_server_request_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	if m.requestDuration, err = meter.Float64Histogram("http_server_request_duration_seconds",
		metric.WithDescription("HTTP request latency distribution in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(httpDurationBuckets...),
	); err != nil {
		return nil, fmt.Errorf("failed to create request duration histogram: %w", err)
	}

	if m.activeRequests, err = meter.Int64UpDownCounter("http_server_active_requests",
		metric.WithDescription("Number of currently active HTTP requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create active requests counter: %w", err)
	}

	return m, nil
}

// HTTPMetrics counts requests by method, route, status and family, records
// latency by method and route, and tracks in-flight requests.
// A nil meter yields a pass-through middleware.
func HTTPMetrics(meter metric.Meter) (gin.HandlerFunc, error) {
	if meter == nil {
		return func(c *gin.Context) { c.Next() }, nil
	}
	metrics, err := newHTTPMetrics(meter)
	if err != nil {
		return nil, err
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()

		metrics.activeRequests.Add(ctx, 1)
		c.Next()
		metrics.activeRequests.Add(ctx, -1)

		recordHTTPMetrics(ctx, metrics, c.Request.Method, getRoutePattern(c), c.Writer.Status(), c.Param("family"), time.Since(start))
	}, nil
}

// recordHTTPMetrics records all HTTP metrics for a request.
func recordHTTPMetrics(
	ctx context.Context,
	metrics *httpMetrics,
	method, route string,
	statusCode int,
	family string,
	duration time.Duration,
) {
	requestAttrs := []attribute.KeyValue{
		attrHTTPMethod.String(method),
		attrHTTPRoute.String(route),
		attrHTTPStatus.Int(statusCode),
		attrStatusClass.String(HTTPMetricsStatusGroup(statusCode)),
	}
	if family != "" {
		requestAttrs = append(requestAttrs, attrFamily.String(family))
	}
	metrics.requestTotal.Add(ctx, 1, metric.WithAttributes(requestAttrs...))

	// only method and route to keep cardinality low
	metrics.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attrHTTPMethod.String(method),
		attrHTTPRoute.String(route),
	))
}

// getRoutePattern returns the route pattern (e.g., "/api/v1/erp/sync/:family")
// instead of the actual path to avoid high cardinality issues.
func getRoutePattern(c *gin.Context) string {
	route := c.FullPath()
	if route == "" {
		return "unknown"
	}
	return route
}

// HTTPMetricsStatusGroup returns the status class (2xx, 4xx, 5xx) of a status code.
func HTTPMetricsStatusGroup(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500:
		return "5xx"
	default:
		return "other"
	}
}
