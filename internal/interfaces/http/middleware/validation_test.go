package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/erp/bcsync/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type phoneLoginInput struct {
	Phone string `json:"phone" binding:"required,e164"`
}

type runsQuery struct {
	Limit int `form:"limit" binding:"omitempty,gte=1,lte=100"`
}

func TestSetupValidator(t *testing.T) {
	require.NoError(t, SetupValidator())
	require.NoError(t, SetupValidator())

	_, ok := binding.Validator.Engine().(*validator.Validate)
	assert.True(t, ok)
	assert.NotNil(t, translator)
}

func TestFieldName(t *testing.T) {
	type sample struct {
		Phone  string `json:"phone,omitempty"`
		Limit  int    `form:"limit"`
		Hidden string `json:"-"`
		Plain  string
	}
	typ := reflect.TypeOf(sample{})

	assert.Equal(t, "phone", fieldName(typ.Field(0)))
	assert.Equal(t, "limit", fieldName(typ.Field(1)))
	assert.Equal(t, "", fieldName(typ.Field(2)))
	assert.Equal(t, "", fieldName(typ.Field(3)))
}

func TestHandleValidationError(t *testing.T) {
	require.NoError(t, SetupValidator())

	router := gin.New()
	router.Use(RequestID())
	router.POST("/auth/phone/login", func(c *gin.Context) {
		var in phoneLoginInput
		if err := c.ShouldBind(&in); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})
	router.GET("/erp/sync/runs", func(c *gin.Context) {
		var q runsQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})

	tests := []struct {
		name        string
		method      string
		target      string
		body        string
		wantStatus  int
		wantField   string
		wantMessage string
	}{
		{
			name:        "missing phone",
			method:      http.MethodPost,
			target:      "/auth/phone/login",
			body:        `{}`,
			wantStatus:  http.StatusBadRequest,
			wantField:   "phone",
			wantMessage: "phone is a required field",
		},
		{
			name:        "malformed phone",
			method:      http.MethodPost,
			target:      "/auth/phone/login",
			body:        `{"phone":"860000000"}`,
			wantStatus:  http.StatusBadRequest,
			wantField:   "phone",
			wantMessage: "international format",
		},
		{
			name:        "limit out of range",
			method:      http.MethodGet,
			target:      "/erp/sync/runs?limit=500",
			wantStatus:  http.StatusBadRequest,
			wantField:   "limit",
			wantMessage: "limit must be 100 or less",
		},
		{
			name:       "valid",
			method:     http.MethodPost,
			target:     "/auth/phone/login",
			body:       `{"phone":"+37060000000"}`,
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				return
			}

			var resp dto.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
			assert.Equal(t, w.Header().Get(HeaderRequestID), resp.Error.RequestID)
			require.Len(t, resp.Error.Details, 1)
			assert.Equal(t, tt.wantField, resp.Error.Details[0].Field)
			assert.Contains(t, resp.Error.Details[0].Message, tt.wantMessage)
		})
	}
}

func TestFormatValidationErrors_NonValidatorError(t *testing.T) {
	resp := FormatValidationErrors(assert.AnError, "req-1")

	require.NotNil(t, resp.Error)
	assert.Equal(t, "req-1", resp.Error.RequestID)
	assert.Empty(t, resp.Error.Details)
}
