package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// setupTestMeter sets up a test meter provider and reader.
func setupTestMeter(t *testing.T) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = mp.Shutdown(context.Background())
	})
	return mp, reader
}

// findMetricByName collects and returns one metric by name.
func findMetricByName(t *testing.T, reader *sdkmetric.ManualReader, name string) *metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestHTTPMetrics_NilMeter(t *testing.T) {
	mw, err := HTTPMetrics(nil)
	require.NoError(t, err)

	router := gin.New()
	router.Use(mw)
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func newMetricsRouter(t *testing.T, mp *sdkmetric.MeterProvider) *gin.Engine {
	t.Helper()
	mw, err := HTTPMetrics(mp.Meter("test"))
	require.NoError(t, err)
	router := gin.New()
	router.Use(mw)
	return router
}

func TestHTTPMetrics_RecordsRequest(t *testing.T) {
	mp, reader := setupTestMeter(t)

	router := newMetricsRouter(t, mp)
	router.POST("/api/v1/erp/sync/:family", func(c *gin.Context) {
		c.JSON(http.StatusConflict, gin.H{})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/erp/sync/items", nil))
	require.Equal(t, http.StatusConflict, w.Code)

	m := findMetricByName(t, reader, "http_server_request_total")
	require.NotNil(t, m)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)

	dp := sum.DataPoints[0]
	assert.Equal(t, int64(1), dp.Value)
	route, _ := dp.Attributes.Value(attrHTTPRoute)
	assert.Equal(t, "/api/v1/erp/sync/:family", route.AsString())
	family, _ := dp.Attributes.Value(attrFamily)
	assert.Equal(t, "items", family.AsString())
	class, _ := dp.Attributes.Value(attrStatusClass)
	assert.Equal(t, "4xx", class.AsString())

	duration := findMetricByName(t, reader, "http_server_request_duration_seconds")
	require.NotNil(t, duration)
	hist, ok := duration.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	_, hasStatus := hist.DataPoints[0].Attributes.Value(attrHTTPStatus)
	assert.False(t, hasStatus, "duration must not carry the status code")
}

func TestHTTPMetrics_UnmatchedRoute(t *testing.T) {
	mp, reader := setupTestMeter(t)

	router := newMetricsRouter(t, mp)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nowhere/123", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	m := findMetricByName(t, reader, "http_server_request_total")
	require.NotNil(t, m)
	sum := m.Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)
	assert.True(t, sum.DataPoints[0].Attributes.HasValue(attrHTTPRoute))
	route, _ := sum.DataPoints[0].Attributes.Value(attrHTTPRoute)
	assert.Equal(t, "unknown", route.AsString())
	_, hasFamily := sum.DataPoints[0].Attributes.Value(attribute.Key("erp.family"))
	assert.False(t, hasFamily)
}

func TestHTTPMetricsStatusGroup(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"},
		{302, "3xx"},
		{404, "4xx"},
		{502, "5xx"},
		{100, "other"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPMetricsStatusGroup(tt.code))
	}
}
