// Package testutil provides common test utilities for bcsync: a sqlmock backed GORM handle,
// gin contexts for calling handlers directly, and assertions on the response envelope.
package testutil

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockDB is a GORM handle speaking the postgres dialect to sqlmock.
type MockDB struct {
	DB    *gorm.DB
	Mock  sqlmock.Sqlmock
	SqlDB *sql.DB
}

// NewMockDB creates a new mock database. The caller closes it.
func NewMockDB(t *testing.T) *MockDB {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err, "Failed to create sqlmock")

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err, "Failed to open GORM connection")

	return &MockDB{DB: gormDB, Mock: mock, SqlDB: mockDB}
}

// Close closes the mock database connection.
func (m *MockDB) Close() error {
	return m.SqlDB.Close()
}

// ExpectationsWereMet fails the test on unmet or unexpected statements.
func (m *MockDB) ExpectationsWereMet(t *testing.T) {
	t.Helper()
	require.NoError(t, m.Mock.ExpectationsWereMet(), "Unmet database expectations")
}

// TestContext wraps a gin context and its recorder.
type TestContext struct {
	Context  *gin.Context
	Recorder *httptest.ResponseRecorder
	Engine   *gin.Engine
}

// NewTestContext creates a context for GET /.
func NewTestContext(t *testing.T) *TestContext {
	t.Helper()
	return NewTestContextWithRequest(t, httptest.NewRequest(http.MethodGet, "/", nil))
}

// NewTestContextWithRequest creates a context serving req.
func NewTestContextWithRequest(t *testing.T, req *http.Request) *TestContext {
	t.Helper()

	w := httptest.NewRecorder()
	c, engine := gin.CreateTestContext(w)
	c.Request = req
	return &TestContext{Context: c, Recorder: w, Engine: engine}
}

// SetRequestID stores the id the request id middleware would have assigned.
func (tc *TestContext) SetRequestID(id string) {
	tc.Context.Set("request_id", id)
}

// SetAdminToken sets the bearer token checked by the admin middleware.
func (tc *TestContext) SetAdminToken(token string) {
	tc.Context.Request.Header.Set("Authorization", "Bearer "+token)
}

// ResponseBody returns the response body as bytes.
func (tc *TestContext) ResponseBody() []byte {
	return tc.Recorder.Body.Bytes()
}

// ResponseCode returns the HTTP status code.
func (tc *TestContext) ResponseCode() int {
	return tc.Recorder.Code
}

// TestPhone returns a valid E.164 phone number for tests.
func TestPhone() string {
	return "+37060000001"
}
