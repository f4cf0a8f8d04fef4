package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"support-chat/internal/observability"
)

const VisitorTokenKey = "visitorToken"

// VisitorToken requires the browser-generated visitor token and stores it
// on the context.
func VisitorToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := observability.VisitorTokenFromRequest(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing visitor token"})
			return
		}
		c.Set(VisitorTokenKey, token)
		c.Next()
	}
}
