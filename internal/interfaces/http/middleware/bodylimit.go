package middleware

import (
	"net/http"

	"github.com/erp/bcsync/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// BodyLimit rejects bodies larger than maxBytes, using Content-Length when
// known and a MaxBytesReader for chunked uploads.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, dto.NewErrorResponseWithRequestID(
				dto.ErrCodePayloadTooLarge,
				"Request body exceeds maximum allowed size",
				getRequestIDFromContext(c),
			))
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
