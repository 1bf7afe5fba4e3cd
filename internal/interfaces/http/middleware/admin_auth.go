package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/erp/bcsync/internal/infrastructure/logger"
	"github.com/erp/bcsync/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Admin auth context keys and headers
const (
	AdminPrincipalKey = "admin_principal"
	AuthHeaderKey     = "Authorization"
	BearerPrefix      = "Bearer "

	adminPrincipal = "admin"
)

// Admin auth errors
var (
	ErrMissingCredentials = errors.New("auth: missing bearer token")
	ErrInvalidCredentials = errors.New("auth: invalid bearer token")
)

// AdminAuthConfig holds configuration for the admin token middleware
type AdminAuthConfig struct {
	// Token is the shared admin secret. Empty disables the check.
	Token string
	// SkipPaths are exact paths that don't require authentication
	SkipPaths []string
	// SkipPathPrefixes are path prefixes that don't require authentication
	SkipPathPrefixes []string
	// OnError replaces the default 401 response
	OnError func(c *gin.Context, err error)
	Logger  *zap.Logger
}

// AdminAuth guards operator routes with a static bearer token.
func AdminAuth(cfg AdminAuthConfig) gin.HandlerFunc {
	expected := []byte(cfg.Token)

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if skipAuth(path, cfg) {
			c.Next()
			return
		}

		if len(expected) == 0 {
			c.Set(AdminPrincipalKey, adminPrincipal)
			c.Next()
			return
		}

		header := c.GetHeader(AuthHeaderKey)
		if header == "" {
			handleAuthError(c, cfg, ErrMissingCredentials)
			return
		}
		token, ok := strings.CutPrefix(header, BearerPrefix)
		if !ok || token == "" {
			handleAuthError(c, cfg, ErrMissingCredentials)
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), expected) != 1 {
			handleAuthError(c, cfg, ErrInvalidCredentials)
			return
		}

		c.Set(AdminPrincipalKey, adminPrincipal)
		c.Next()
	}
}

func skipAuth(path string, cfg AdminAuthConfig) bool {
	for _, p := range cfg.SkipPaths {
		if path == p {
			return true
		}
	}
	for _, prefix := range cfg.SkipPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func handleAuthError(c *gin.Context, cfg AdminAuthConfig, err error) {
	if cfg.OnError != nil {
		cfg.OnError(c, err)
		c.Abort()
		return
	}

	log := cfg.Logger
	if log == nil {
		log = logger.GetGinLogger(c)
	}
	log.Warn("Admin authentication failed",
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
		zap.String("client_ip", c.ClientIP()),
	)

	message := "Authentication required"
	if errors.Is(err, ErrInvalidCredentials) {
		message = "Invalid admin token"
	}
	c.Header("WWW-Authenticate", `Bearer realm="bcsync"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeUnauthorized, message, getRequestIDFromContext(c)))
}

// GetAdminPrincipal returns the authenticated principal, or "" when the
// request did not pass AdminAuth.
func GetAdminPrincipal(c *gin.Context) string {
	return c.GetString(AdminPrincipalKey)
}
