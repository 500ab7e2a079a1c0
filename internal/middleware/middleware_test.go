package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"anoa.com/lazylegends/internal/modules/user/dto"
	"anoa.com/lazylegends/pkg/apperror"
	"anoa.com/lazylegends/pkg/ratelimit"
	"anoa.com/lazylegends/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubVerifier struct{}

func (stubVerifier) VerifyToken(_ context.Context, token string) (*dto.Session, error) {
	if token == "good" {
		return &dto.Session{Handle: "@lazy", TokenID: "jti-1", ExpiresAt: 42}, nil
	}
	return nil, apperror.New(http.StatusUnauthorized, "invalid or expired token", apperror.ErrUnauthorized)
}

func authRouter() *gin.Engine {
	m := NewAuthMiddleware(stubVerifier{})
	r := gin.New()
	r.GET("/private", m.RequireAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"handle": c.GetString(response.HandleKey), "jti": c.GetString(response.TokenIDKey)})
	})
	r.GET("/public", m.OptionalAuth(), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(response.HandleKey))
	})
	return r
}

func TestRequireAuth(t *testing.T) {
	r := authRouter()

	cases := []struct {
		name   string
		url    string
		header string
		code   int
	}{
		{"no token", "/private", "", http.StatusUnauthorized},
		{"bad token", "/private", "Bearer nope", http.StatusUnauthorized},
		{"header token", "/private", "Bearer good", http.StatusOK},
		{"query token", "/private?token=good", "", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tc.url, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.code, w.Code)
			if tc.code == http.StatusOK {
				assert.Contains(t, w.Body.String(), `"handle":"@lazy"`)
			}
		})
	}
}

func TestOptionalAuthNeverRejects(t *testing.T) {
	r := authRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/public", nil)
	req.Header.Set("Authorization", "Bearer nope")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func adminRouter(secret string, max int) *gin.Engine {
	g := NewAdminGuard(secret, ratelimit.NewMemoryLimiter(max, time.Minute))
	r := gin.New()
	r.POST("/admin", g.RequireAdminSecret(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func adminRequest(r *gin.Engine, header, value string) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	r.ServeHTTP(w, req)
	return w.Code
}

func TestAdminSecret(t *testing.T) {
	r := adminRouter("s3cret", 5)

	assert.Equal(t, http.StatusForbidden, adminRequest(r, "", ""))
	assert.Equal(t, http.StatusForbidden, adminRequest(r, "X-Admin-Password", "s3cre"))
	assert.Equal(t, http.StatusNoContent, adminRequest(r, "X-Admin-Password", "s3cret"))
	assert.Equal(t, http.StatusNoContent, adminRequest(r, "Authorization", "Bearer s3cret"))
}

func TestAdminLockout(t *testing.T) {
	r := adminRouter("s3cret", 2)

	assert.Equal(t, http.StatusForbidden, adminRequest(r, "X-Admin-Password", "a"))
	assert.Equal(t, http.StatusForbidden, adminRequest(r, "X-Admin-Password", "b"))
	// Locked out even with the right secret.
	assert.Equal(t, http.StatusTooManyRequests, adminRequest(r, "X-Admin-Password", "s3cret"))
}

func TestAdminDisabledWithoutSecret(t *testing.T) {
	r := adminRouter("", 5)
	assert.Equal(t, http.StatusForbidden, adminRequest(r, "X-Admin-Password", ""))
}
