package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestProfilingLabels_PassesThrough(t *testing.T) {
	tests := []struct {
		name  string
		route string
		path  string
	}{
		{"labelled", "/api/v1/erp/sync/:family", "/api/v1/erp/sync/items"},
		{"skipped prefix", "/swagger/*any", "/swagger/index.html"},
		{"outside api", "/health", "/health"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(ProfilingLabels("/swagger"))
			called := false
			r.GET(tt.route, func(c *gin.Context) {
				called = true
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, http.StatusOK, w.Code)
			assert.True(t, called)
		})
	}
}

func TestProfilingLabels_UnmatchedRoute(t *testing.T) {
	r := gin.New()
	r.Use(ProfilingLabels())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPIArea(t *testing.T) {
	tests := map[string]string{
		"/api/v1/erp/oauth/status":         "erp",
		"/api/v1/auth/phone/status/:token": "auth",
		"/api/v1/system":                   "system",
		"/api/v1/:id":                      "",
		"/health":                          "",
		"/swagger/*any":                    "",
	}
	for route, want := range tests {
		t.Run(route, func(t *testing.T) {
			assert.Equal(t, want, apiArea(route))
		})
	}
}
