package middleware

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/easexpo/marketplace-backend/internal/services"
	"github.com/easexpo/marketplace-backend/internal/utils"
	"github.com/gin-gonic/gin"
)

// RateLimit throttles requests per client IP
func RateLimit(limiter *services.RateLimitService) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := limiter.Check(utils.GetRealIP(c))
		if err == nil {
			c.Next()
			return
		}

		var rlErr *services.RateLimitError
		if errors.As(err, &rlErr) && rlErr.RetryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(rlErr.RetryAfter.Seconds()))))
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":   "rate_limited",
			"message": err.Error(),
			"code":    "RATE_LIMITED",
		})
	}
}
