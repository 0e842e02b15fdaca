package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pool_chat/internal/service"
	"pool_chat/pkg/logger"
)

type RateLimitMiddleware struct {
	rateLimitService service.RateLimitService
	log              logger.Logger
}

func NewRateLimitMiddleware(rateLimitService service.RateLimitService, log logger.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		rateLimitService: rateLimitService,
		log:              log,
	}
}

// LimitSends throttles message sends per sender identity. Requests without
// an identity fall back to the client IP.
func (m *RateLimitMiddleware) LimitSends() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if sender, exists := c.Get("sender_id"); exists {
			if s, ok := sender.(string); ok && s != "" {
				key = s
			}
		}

		allowed, remaining, err := m.rateLimitService.AllowSend(c.Request.Context(), key)
		if err != nil {
			m.log.Error("Rate limit check failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			c.Abort()
			return
		}

		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			c.Abort()
			return
		}

		c.Next()
	}
}
