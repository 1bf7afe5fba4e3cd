package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/bcsync/internal/interfaces/http/dto"
)

// HTTPTestCase is one call to a handler and what it must answer.
type HTTPTestCase struct {
	Name   string
	Method string
	Path   string
	// Params are the route parameters gin would have extracted from Path
	Params     gin.Params
	Body       any
	Headers    map[string]string
	AdminToken string

	ExpectedStatus int
	// ExpectedCode is the error code of a failed envelope; empty means success is expected
	ExpectedCode string
	Setup        func(t *testing.T, tc *TestContext)
	Validate     func(t *testing.T, tc *TestContext)
}

// RunHTTPTestCases runs each case as a subtest.
func RunHTTPTestCases(t *testing.T, handler gin.HandlerFunc, cases []HTTPTestCase) {
	t.Helper()

	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			RunHTTPTestCase(t, handler, tc)
		})
	}
}

// RunHTTPTestCase calls handler directly with a request built from tc.
func RunHTTPTestCase(t *testing.T, handler gin.HandlerFunc, tc HTTPTestCase) {
	t.Helper()

	method := tc.Method
	if method == "" {
		method = http.MethodGet
	}
	path := tc.Path
	if path == "" {
		path = "/"
	}

	var body io.Reader
	if tc.Body != nil {
		body = ToJSONReader(t, tc.Body)
	}
	req := httptest.NewRequest(method, path, body)
	if tc.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range tc.Headers {
		req.Header.Set(k, v)
	}

	testCtx := NewTestContextWithRequest(t, req)
	testCtx.Context.Params = tc.Params
	if tc.AdminToken != "" {
		testCtx.SetAdminToken(tc.AdminToken)
	}
	if tc.Setup != nil {
		tc.Setup(t, testCtx)
	}

	handler(testCtx.Context)

	if tc.ExpectedStatus != 0 {
		assert.Equal(t, tc.ExpectedStatus, testCtx.ResponseCode(), "Unexpected status code")
	}
	if tc.ExpectedCode != "" {
		AssertErrorResponse(t, testCtx, tc.ExpectedCode)
	}
	if tc.Validate != nil {
		tc.Validate(t, testCtx)
	}
}

// Envelope decodes the response into the standard envelope.
func Envelope(t *testing.T, tc *TestContext) dto.Response {
	t.Helper()

	var resp dto.Response
	require.NoError(t, json.Unmarshal(tc.ResponseBody(), &resp), "Failed to parse response envelope")
	return resp
}

// JSONResponse parses the response body as a generic JSON object.
func JSONResponse(t *testing.T, tc *TestContext) map[string]any {
	t.Helper()

	var result map[string]any
	require.NoError(t, json.Unmarshal(tc.ResponseBody(), &result), "Failed to parse JSON response")
	return result
}

// DataAs decodes the envelope's data member into T.
func DataAs[T any](t *testing.T, tc *TestContext) T {
	t.Helper()

	var resp struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(tc.ResponseBody(), &resp), "Failed to parse response data")
	return resp.Data
}

// AssertSuccessResponse asserts a successful envelope without an error member.
func AssertSuccessResponse(t *testing.T, tc *TestContext) {
	t.Helper()

	resp := Envelope(t, tc)
	assert.True(t, resp.Success, "Expected success to be true")
	assert.Nil(t, resp.Error, "Expected no error")
}

// AssertErrorResponse asserts a failed envelope carrying expectedCode.
func AssertErrorResponse(t *testing.T, tc *TestContext, expectedCode string) *dto.ErrorInfo {
	t.Helper()

	resp := Envelope(t, tc)
	assert.False(t, resp.Success, "Expected success to be false")
	require.NotNil(t, resp.Error, "Expected error object in response")
	assert.Equal(t, expectedCode, resp.Error.Code, "Unexpected error code")
	return resp.Error
}

// ToJSONReader converts a value to a JSON io.Reader.
func ToJSONReader(t *testing.T, v any) io.Reader {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err, "Failed to marshal to JSON")
	return bytes.NewReader(data)
}
