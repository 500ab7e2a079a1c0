package response

import (
	"net/http"

	"anoa.com/lazylegends/pkg/apperror"
	"anoa.com/lazylegends/pkg/logger"
	"github.com/gin-gonic/gin"
)

// Context keys set by the auth middleware.
const (
	HandleKey   = "handle"
	TokenIDKey  = "token_id"
	TokenExpKey = "token_expires_at"
)

// GetHandle retrieves the authenticated handle from the context
func GetHandle(c *gin.Context) (string, error) {
	handle := c.GetString(HandleKey)
	if handle == "" {
		return "", apperror.ErrUnauthorized
	}
	return handle, nil
}

// ResponseError standardized error response
func ResponseError(c *gin.Context, err error) {
	code := apperror.MapErrorToStatus(err)

	// Log internal errors, never leak them
	if code == http.StatusInternalServerError {
		logger.WithError(err).WithField("path", c.FullPath()).Error("[Internal Error]")
		c.JSON(code, gin.H{"error": apperror.ErrInternal.Error()})
		return
	}
	if code == http.StatusBadGateway {
		logger.WithError(err).WithField("path", c.FullPath()).Warn("[Upstream Error]")
	}

	c.JSON(code, gin.H{"error": err.Error()})
}
