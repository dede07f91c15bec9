package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"priceops/internal/apierror"

	"github.com/gin-gonic/gin"
)

// AdminAuth validates the static Bearer token on every protected route.
// When token is empty the middleware is a no-op, which keeps local
// development friction-free; production deployments always set one.
func AdminAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("authentication required"))
			return
		}

		got := strings.TrimPrefix(header, "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("invalid token"))
			return
		}
		c.Next()
	}
}
