package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/netvigil/vigil-core/pkg/cache"
)

// API rate limit: requests per client per minute. This guards the HTTP
// surface; the per-alert hourly quota lives in the pipeline itself.
const maxRequestsPerMinute int64 = 1000

// RateLimiter implements per-client request limiting backed by Valkey, so
// the limit holds across replicas sharing one cache.
func RateLimiter(valkeyCache cache.Valkey) gin.HandlerFunc {
	return func(c *gin.Context) {
		window := time.Now().Unix() / 60
		key := fmt.Sprintf("rate_limit:%s:%d", c.ClientIP(), window)

		count, err := valkeyCache.Increment(c.Request.Context(), key, 2*time.Minute)
		if err != nil {
			// Cache trouble must not block the API.
			c.Next()
			return
		}

		remaining := maxRequestsPerMinute - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-Rate-Limit-Limit", strconv.FormatInt(maxRequestsPerMinute, 10))
		c.Header("X-Rate-Limit-Remaining", strconv.FormatInt(remaining, 10))
		c.Header("X-Rate-Limit-Reset", strconv.FormatInt((window+1)*60, 10))

		if count > maxRequestsPerMinute {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"status":      "error",
				"error":       "Rate limit exceeded",
				"retry_after": 60,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
