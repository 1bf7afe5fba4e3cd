package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/erp/bcsync/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// RateLimiter is a fixed-window in-memory limiter keyed by caller.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	limit   int
	window  time.Duration
	now     func() time.Time
}

type client struct {
	tokens    int
	lastReset time.Time
}

// NewRateLimiter creates a limiter allowing limit requests per window and
// per key.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*client),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// RunCleanup evicts idle keys every two windows until ctx is done.
func (rl *RateLimiter) RunCleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.window * 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.evict()
		}
	}
}

func (rl *RateLimiter) evict() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, c := range rl.clients {
		if now.Sub(c.lastReset) > rl.window*2 {
			delete(rl.clients, key)
		}
	}
}

// Allow consumes one request for key and reports whether it may proceed.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	c, exists := rl.clients[key]
	if !exists || now.Sub(c.lastReset) >= rl.window {
		rl.clients[key] = &client{tokens: rl.limit - 1, lastReset: now}
		return true
	}

	if c.tokens > 0 {
		c.tokens--
		return true
	}
	return false
}

// Remaining returns the number of remaining requests for the given key
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, exists := rl.clients[key]
	if !exists || rl.now().Sub(c.lastReset) >= rl.window {
		return rl.limit
	}
	return c.tokens
}

// Limit returns the per-window request limit.
func (rl *RateLimiter) Limit() int {
	return rl.limit
}

// RateLimit limits requests per client IP.
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return RateLimitByKey(limiter, func(c *gin.Context) string {
		return c.ClientIP()
	}, "Too many requests. Please try again later.")
}

// PhoneAuthRateLimit limits phone login attempts per client IP. Each attempt
// triggers an SMS challenge, so the budget is far smaller than the global one.
// Keys carry a "phone:" prefix so a shared limiter never mixes the buckets.
func PhoneAuthRateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return RateLimitByKey(limiter, func(c *gin.Context) string {
		return "phone:" + c.ClientIP()
	}, "Too many phone login attempts. Please try again later.")
}

// RateLimitByKey returns a rate limiting middleware with custom key extractor
func RateLimitByKey(limiter *RateLimiter, keyFunc func(*gin.Context) string, message string) gin.HandlerFunc {
	retryAfter := strconv.Itoa(int(limiter.window.Seconds()))

	return func(c *gin.Context) {
		key := keyFunc(c)

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
		if !limiter.Allow(key) {
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeRateLimited, message, getRequestIDFromContext(c)))
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(key)))

		c.Next()
	}
}
