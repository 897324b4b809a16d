package httpmiddleware

import (
	"FactVerse/backend/go/internal/models"
	"FactVerse/backend/go/pkg/logger"
	"FactVerse/backend/go/pkg/ratelimiter"
	"FactVerse/backend/go/pkg/util"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// maxTrackedClients bounds the number of per-client limiters kept in memory.
const maxTrackedClients = 10000

// RateLimit is a middleware that applies rate limiting to a gin route group.
// Every client IP gets its own limiter from newLimiter. Rejected requests receive
// 429 with a JSON body {error, message}.
func RateLimit(newLimiter func() ratelimiter.RateLimiter, message string) gin.HandlerFunc {
	limiters, _ := util.NewWithConfig(util.CacheConfig[string, ratelimiter.RateLimiter]{
		Capacity: maxTrackedClients,
	})
	var mu sync.Mutex

	limiterFor := func(key string) ratelimiter.RateLimiter {
		mu.Lock()
		defer mu.Unlock()
		if l, ok := limiters.Get(key); ok {
			return l
		}
		l := newLimiter()
		limiters.Put(key, l, 1)
		return l
	}

	return func(c *gin.Context) {
		if !limiterFor(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "Too many requests",
				"message": message,
			})
			return
		}
		c.Next()
	}
}

// FixedWindow returns a limiter factory for RateLimit.
func FixedWindow(limit int, window time.Duration) func() ratelimiter.RateLimiter {
	return func() ratelimiter.RateLimiter {
		return ratelimiter.NewFixedWindowCounter(limit, window)
	}
}

// RequestLogger logs one structured line per request after it has been served.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		info := models.RequestInfo{
			Method:     c.Request.Method,
			Path:       c.Request.URL.Path,
			RemoteAddr: c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
			StatusCode: c.Writer.Status(),
			LatencyMS:  time.Since(start).Milliseconds(),
		}
		entry := log.WithRequest(info)
		switch {
		case info.StatusCode >= http.StatusInternalServerError:
			entry.Error("request failed")
		case info.StatusCode >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Info("request served")
		}
	}
}

// Recovery converts a panic in a handler into a 500 JSON response and logs it.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.WithPayload(map[string]interface{}{"panic": recovered, "path": c.Request.URL.Path}).
			Error("handler panicked")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "Something went wrong!",
			"message": "Internal server error",
		})
	})
}
