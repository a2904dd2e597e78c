package middleware

import (
	"net/http"
	"strconv"

	"jobtrail/internal/redis"
	"jobtrail/internal/transport/httpdto"
	jobtrail_errors "jobtrail/pkg/errors"

	"github.com/gin-gonic/gin"
)

// UploadRateLimitMiddleware limits upload requests per client IP. A nil
// limiter disables limiting entirely (no redis configured).
func UploadRateLimitMiddleware(limiter *redis.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		result, err := limiter.AllowUpload(c.Request.Context(), c.ClientIP())
		if err != nil {
			// Redis being down must not take uploads with it.
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse(jobtrail_errors.ErrRateLimited.Error(), "RATE_LIMITED"))
			c.Abort()
			return
		}

		c.Next()
	}
}
