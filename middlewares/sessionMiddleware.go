package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pqpsoft/tracker_backend/config"
	"github.com/pqpsoft/tracker_backend/utils"
)

// SessionMiddleware resolves an opaque session token (issued at login and
// stored in redis) into the logged-in username. Requests without a token
// pass through; downstream handlers decide whether auth is required.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		username, exists, err := config.GetRedisValue("Token:" + token)
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetUsernameInContext(ctx, username)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
