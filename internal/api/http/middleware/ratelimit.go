package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/screenfleet/screenfleet/internal/ratelimit"
)

// RateLimit gates every request through the sliding-window limiter, keyed
// by client network origin. Rejected requests get a 429 and no further
// processing.
func RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
