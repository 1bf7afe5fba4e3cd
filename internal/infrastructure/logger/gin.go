package logger

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ginKey is where the request scoped logger lives in the gin context
const ginKey = "logger"

type ginOptions struct {
	quietPaths map[string]bool
}

// GinOption configures GinMiddleware
type GinOption func(*ginOptions)

// WithQuietPaths logs successful requests to the given routes at debug level.
// Probes hit /health every few seconds.
func WithQuietPaths(paths ...string) GinOption {
	return func(o *ginOptions) {
		for _, p := range paths {
			o.quietPaths[p] = true
		}
	}
}

// GinMiddleware logs one line per request and installs a request scoped logger.
// The route template is logged instead of the raw path: phone challenge tokens travel in the path.
func GinMiddleware(logger *zap.Logger, opts ...GinOption) gin.HandlerFunc {
	o := ginOptions{quietPaths: map[string]bool{}}
	for _, opt := range opts {
		opt(&o)
	}

	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetString("request_id")

		reqLogger := logger.With(
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
		)
		c.Set(ginKey, reqLogger)
		c.Request = c.Request.WithContext(WithRequestID(c.Request.Context(), requestID))

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
			zap.Int("body_size", c.Writer.Size()),
		}
		// the OAuth callback carries the authorization code and state
		if query := c.Request.URL.RawQuery; query != "" {
			fields = append(fields, zap.String("query", RedactQuery(query)))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}

		const msg = "HTTP Request"
		switch {
		case status >= http.StatusInternalServerError:
			reqLogger.Error(msg, fields...)
		case status >= http.StatusBadRequest:
			reqLogger.Warn(msg, fields...)
		case o.quietPaths[route]:
			reqLogger.Debug(msg, fields...)
		default:
			reqLogger.Info(msg, fields...)
		}
	}
}

// Recovery turns a panic into a 500 error envelope and logs it with the stack
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				requestID := c.GetString("request_id")
				logger.Error("Panic recovered",
					zap.String("request_id", requestID),
					zap.String("method", c.Request.Method),
					zap.String("route", c.FullPath()),
					zap.Any("error", err),
					zap.Stack("stacktrace"),
				)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"success": false,
					"error": gin.H{
						"code":       "ERR_INTERNAL",
						"message":    "An internal error occurred",
						"request_id": requestID,
						"timestamp":  time.Now().UTC(),
					},
				})
			}
		}()
		c.Next()
	}
}

// GetGinLogger returns the request scoped logger, or a no-op logger outside GinMiddleware
func GetGinLogger(c *gin.Context) *zap.Logger {
	if l, ok := c.Value(ginKey).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}
