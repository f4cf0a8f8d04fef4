package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"support-chat/internal/models"
	"support-chat/internal/support"
)

const (
	AdminIDKey    = "adminID"
	AdminEmailKey = "adminEmail"
)

// AdminResolver maps a session token to the admin user behind it.
type AdminResolver interface {
	ResolveToken(ctx context.Context, token string) (models.User, error)
}

// AdminAuth validates the admin session and stores the resolved user id on
// the context. Websocket clients may pass the token as a query parameter.
func AdminAuth(resolver AdminResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		user, err := resolver.ResolveToken(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, support.ErrUnauthorized) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve session"})
			return
		}

		c.Set(AdminIDKey, user.ID)
		c.Set(AdminEmailKey, user.Email)
		c.Next()
	}
}

// CallerFromContext returns the caller resolved by AdminAuth, or an
// anonymous caller when the route is not behind it.
func CallerFromContext(c *gin.Context) support.Caller {
	return support.Admin(c.GetString(AdminIDKey))
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if token := c.Query("token"); token != "" {
			return token, true
		}
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
