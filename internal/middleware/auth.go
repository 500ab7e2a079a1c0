package middleware

import (
	"context"
	"net/http"
	"strings"

	"anoa.com/lazylegends/internal/modules/user/dto"
	"anoa.com/lazylegends/pkg/response"
	"github.com/gin-gonic/gin"
)

// SessionVerifier turns a bearer token into the session it represents.
type SessionVerifier interface {
	VerifyToken(ctx context.Context, token string) (*dto.Session, error)
}

type AuthMiddleware struct {
	verifier SessionVerifier
}

func NewAuthMiddleware(verifier SessionVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}

		session, err := m.verifier.VerifyToken(c.Request.Context(), tokenString)
		if err != nil {
			response.ResponseError(c, err)
			c.Abort()
			return
		}

		setSession(c, session)
		c.Next()
	}
}

// OptionalAuth sets the session when a valid token is present and never rejects.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString := extractToken(c); tokenString != "" {
			if session, err := m.verifier.VerifyToken(c.Request.Context(), tokenString); err == nil {
				setSession(c, session)
			}
		}
		c.Next()
	}
}

func setSession(c *gin.Context, session *dto.Session) {
	c.Set(response.HandleKey, session.Handle)
	c.Set(response.TokenIDKey, session.TokenID)
	c.Set(response.TokenExpKey, session.ExpiresAt)
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	// Fallback to query parameter "token" (useful for WebSockets)
	return c.Query("token")
}
