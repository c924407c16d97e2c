package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"project_portal/internal/domain"
	"project_portal/internal/service"
	"project_portal/pkg/logger"
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

// Limit counts requests per client IP, or per user for the auth scope once
// RequireAuth has run.
func (m *RateLimitMiddleware) Limit(policy domain.RateLimitPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if policy.Scope == domain.RateLimitScopeAuth {
			if userID, ok := CurrentUserID(c); ok {
				key = userID.String()
			}
		}
		key = fmt.Sprintf("%s:%s", c.FullPath(), key)

		decision, err := m.rateLimitService.Allow(c.Request.Context(), policy, key)
		if err != nil {
			m.log.Error("Rate limit check failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		if !decision.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(policy.Window.Seconds())))
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}
