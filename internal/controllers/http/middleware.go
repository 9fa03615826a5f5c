package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const callerIDKey = "callerID"

// IdentityMiddleware trusts the X-User-ID header set by the gateway after
// authentication. Requests without it never reach the handlers.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-User-ID")
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid identity"})
			return
		}
		c.Set(callerIDKey, id)
		c.Next()
	}
}

// CallerID returns the authenticated user id installed by the middleware.
func CallerID(c *gin.Context) uint64 {
	return c.GetUint64(callerIDKey)
}
