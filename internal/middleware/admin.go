package middleware

import (
	"crypto/subtle"
	"fmt"
	"math"
	"net/http"
	"strings"

	"anoa.com/lazylegends/pkg/logger"
	"anoa.com/lazylegends/pkg/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AdminGuard protects /api/admin with a shared secret and locks out
// clients that keep guessing it.
type AdminGuard struct {
	secret  string
	limiter ratelimit.Limiter
}

func NewAdminGuard(secret string, limiter ratelimit.Limiter) *AdminGuard {
	return &AdminGuard{secret: secret, limiter: limiter}
}

func (g *AdminGuard) RequireAdminSecret() gin.HandlerFunc {
	return func(c *gin.Context) {
		if g.secret == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access is disabled"})
			return
		}

		ctx := c.Request.Context()
		key := c.ClientIP()

		blocked, retryAfter, err := g.limiter.Blocked(ctx, key)
		if err != nil {
			logger.WithError(err).Warn("Admin lockout check failed")
		}
		if blocked {
			c.Header("Retry-After", fmt.Sprintf("%d", int(math.Ceil(retryAfter.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many failed attempts, try again later"})
			return
		}

		supplied := adminSecret(c)
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(g.secret)) != 1 {
			attempts, err := g.limiter.Fail(ctx, key)
			if err != nil {
				logger.WithError(err).Warn("Failed to record admin attempt")
			}
			logger.WithFields(logrus.Fields{"ip": key, "attempts": attempts}).Warn("Rejected admin request")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid admin password"})
			return
		}

		if err := g.limiter.Reset(ctx, key); err != nil {
			logger.WithError(err).Warn("Failed to reset admin attempts")
		}
		c.Next()
	}
}

func adminSecret(c *gin.Context) string {
	if v := c.GetHeader("X-Admin-Password"); v != "" {
		return v
	}
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
