package handler

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"

	appintegration "github.com/erp/bcsync/internal/application/integration"
	apphoneauth "github.com/erp/bcsync/internal/application/phoneauth"
	"github.com/erp/bcsync/internal/domain/integration"
	"github.com/erp/bcsync/internal/domain/phoneauth"
	"github.com/erp/bcsync/internal/interfaces/http/middleware"
)

// MockERPConnector is a mock implementation of ERPConnector
type MockERPConnector struct {
	mock.Mock
}

func (m *MockERPConnector) Initiate(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockERPConnector) HandleCallback(ctx context.Context, params appintegration.CallbackParams) (*integration.TokenState, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.TokenState), args.Error(1)
}

func (m *MockERPConnector) ConnectServiceAccount(ctx context.Context) (*integration.TokenState, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.TokenState), args.Error(1)
}

func (m *MockERPConnector) Revoke(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockERPConnector) Status(ctx context.Context) (*integration.ConnectionInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ConnectionInfo), args.Error(1)
}

// MockSettingsManager is a mock implementation of SettingsManager
type MockSettingsManager struct {
	mock.Mock
}

func (m *MockSettingsManager) Get(ctx context.Context) (map[string]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *MockSettingsManager) Update(ctx context.Context, values map[string]string) ([]string, error) {
	args := m.Called(ctx, values)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockSyncRunner is a mock implementation of SyncRunner
type MockSyncRunner struct {
	mock.Mock
}

func (m *MockSyncRunner) Run(ctx context.Context, family integration.EntityFamily) (*integration.SyncRunResult, error) {
	args := m.Called(ctx, family)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.SyncRunResult), args.Error(1)
}

func (m *MockSyncRunner) RunAll(ctx context.Context) ([]*integration.SyncRunResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*integration.SyncRunResult), args.Error(1)
}

func (m *MockSyncRunner) RecentRuns(ctx context.Context, limit int) ([]integration.SyncRun, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.SyncRun), args.Error(1)
}

// MockCompanyLister is a mock implementation of CompanyLister
type MockCompanyLister struct {
	mock.Mock
}

func (m *MockCompanyLister) ListCompanies(ctx context.Context) ([]integration.Company, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.Company), args.Error(1)
}

// MockPhoneAuthenticator is a mock implementation of PhoneAuthenticator
type MockPhoneAuthenticator struct {
	mock.Mock
}

func (m *MockPhoneAuthenticator) Start(ctx context.Context, phone string) (*phoneauth.Challenge, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*phoneauth.Challenge), args.Error(1)
}

func (m *MockPhoneAuthenticator) Check(ctx context.Context, token string) (*apphoneauth.LoginResult, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apphoneauth.LoginResult), args.Error(1)
}

func (m *MockPhoneAuthenticator) Wait(ctx context.Context, token string) (*apphoneauth.LoginResult, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apphoneauth.LoginResult), args.Error(1)
}

// newTestEngine returns an engine with the request id middleware, which every
// production route runs behind.
func newTestEngine() *gin.Engine {
	_ = middleware.SetupValidator()
	engine := gin.New()
	engine.Use(middleware.RequestID())
	return engine
}

func perform(engine *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

