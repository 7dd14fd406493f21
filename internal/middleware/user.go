package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "tally/internal/errors"
)

// UserIDKey is the gin context key holding the caller's user id.
const UserIDKey = "userID"

// UserHeader carries the opaque user id set by the upstream identity layer.
const UserHeader = "X-User-ID"

const maxUserIDLength = 64

// UserIdentity rejects requests without a usable X-User-ID header and stores
// the id on the context for handlers.
func UserIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(UserHeader))
		if userID == "" || len(userID) > maxUserIDLength {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    apperrors.ErrUnauthorized.Code,
					"message": apperrors.ErrUnauthorized.Message,
				},
			})
			return
		}
		c.Set(UserIDKey, userID)
		c.Next()
	}
}
