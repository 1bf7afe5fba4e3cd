package middleware

import (
	"net/http"
	"net/netip"
	"strings"

	"github.com/erp/bcsync/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// SwaggerConfig holds configuration for Swagger endpoint protection
type SwaggerConfig struct {
	Enabled     bool
	RequireAuth bool     // run the admin auth middleware before serving docs
	AllowedIPs  []string // addresses or CIDR prefixes; empty allows all
}

// SwaggerProtection guards the /swagger routes. Disabled docs answer 404,
// the IP allowlist is checked next and the auth middleware runs last.
func SwaggerProtection(cfg SwaggerConfig, authMiddleware gin.HandlerFunc) gin.HandlerFunc {
	allowed := parseAllowlist(cfg.AllowedIPs)

	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.AbortWithStatusJSON(http.StatusNotFound, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeNotFound, "API documentation is not available", getRequestIDFromContext(c)))
			return
		}

		if len(cfg.AllowedIPs) > 0 && !isIPAllowed(clientAddr(c), allowed) {
			c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeForbidden, "Access to API documentation is restricted", getRequestIDFromContext(c)))
			return
		}

		if cfg.RequireAuth && authMiddleware != nil {
			authMiddleware(c)
			if c.IsAborted() {
				return
			}
		}

		c.Next()
	}
}

// parseAllowlist turns addresses into single-host prefixes. Malformed
// entries are dropped.
func parseAllowlist(entries []string) []netip.Prefix {
	var prefixes []netip.Prefix
	for _, entry := range entries {
		if strings.Contains(entry, "/") {
			if p, err := netip.ParsePrefix(entry); err == nil {
				prefixes = append(prefixes, p.Masked())
			}
			continue
		}
		if addr, err := netip.ParseAddr(entry); err == nil {
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
		}
	}
	return prefixes
}

// clientAddr uses gin's trusted-proxy aware ClientIP, falling back to the
// socket peer.
func clientAddr(c *gin.Context) netip.Addr {
	if addr, err := netip.ParseAddr(c.ClientIP()); err == nil {
		return addr.Unmap()
	}
	if ap, err := netip.ParseAddrPort(c.Request.RemoteAddr); err == nil {
		return ap.Addr().Unmap()
	}
	return netip.Addr{}
}

func isIPAllowed(addr netip.Addr, allowed []netip.Prefix) bool {
	if !addr.IsValid() {
		return false
	}
	for _, p := range allowed {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
