package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimiter is a fixed-window request counter keyed by client IP.
type RateLimiter struct {
	requests map[string]*clientBucket
	mutex    sync.RWMutex
	rate     int
	window   time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

type clientBucket struct {
	count     int
	resetTime time.Time
}

// NewRateLimiter starts a sweeper that drops expired buckets until ctx is
// done.
func NewRateLimiter(ctx context.Context, requestsPerWindow int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string]*clientBucket),
		rate:     requestsPerWindow,
		window:   window,
		now:      time.Now,
		logger:   zap.L().With(zap.String("component", "RateLimiter")),
	}

	go rl.cleanup(ctx)
	return rl
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		if !rl.allow(clientIP) {
			rl.logger.Warn("Rate limit exceeded",
				zap.String("ip", clientIP),
				zap.String("path", c.FullPath()),
			)

			retryAfter := rl.retryAfter(clientIP)
			c.Header("X-RateLimit-Limit", strconv.Itoa(rl.rate))
			c.Header("X-RateLimit-Window", rl.window.String())
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many requests, try again later",
				"code":        "RATE_LIMIT_EXCEEDED",
				"retry_after": retryAfter,
			})
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) allow(clientIP string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	bucket, exists := rl.requests[clientIP]

	if !exists || now.After(bucket.resetTime) {
		if rl.rate <= 0 {
			return false
		}
		rl.requests[clientIP] = &clientBucket{
			count:     1,
			resetTime: now.Add(rl.window),
		}
		return true
	}

	if bucket.count >= rl.rate {
		return false
	}

	bucket.count++
	return true
}

// retryAfter is the number of whole seconds, rounded up, until the client's
// window resets.
func (rl *RateLimiter) retryAfter(clientIP string) int {
	rl.mutex.RLock()
	defer rl.mutex.RUnlock()

	remaining := rl.window
	if bucket, ok := rl.requests[clientIP]; ok {
		remaining = bucket.resetTime.Sub(rl.now())
	}
	seconds := int(math.Ceil(remaining.Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}

func (rl *RateLimiter) sweep() int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	removed := 0
	for ip, bucket := range rl.requests {
		if now.After(bucket.resetTime) {
			delete(rl.requests, ip)
			removed++
		}
	}
	return removed
}

func (rl *RateLimiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := rl.sweep(); n > 0 {
				rl.logger.Debug("Expired rate limit buckets removed", zap.Int("count", n))
			}
		}
	}
}
