package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"smartflow/backend/pkg/response"
)

// RateLimiter counts hits of key inside a sliding window.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit caps requests per caller and route. Authenticated callers are
// keyed by user id, anonymous ones by client IP. A nil limiter or a limiter
// error lets the request through.
func RateLimit(limiter RateLimiter, limit int, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || limit <= 0 {
			c.Next()
			return
		}

		who := "ip:" + c.ClientIP()
		if uid := c.GetString(CtxUserID); uid != "" {
			who = "user:" + uid
		}
		key := fmt.Sprintf("rate_limit:%s:%s", who, c.FullPath())

		allowed, err := limiter.CheckRateLimit(c.Request.Context(), key, limit, window)
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}

		if !allowed {
			c.Header("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			response.Error(c, http.StatusTooManyRequests, 10004, "Demasiadas solicitudes, intenta más tarde")
			c.Abort()
			return
		}

		c.Next()
	}
}
