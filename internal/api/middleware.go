package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/krishnarajt/second-thought-backend/internal/domain"
	"github.com/krishnarajt/second-thought-backend/internal/store"
)

// RequestIDMiddleware ensures every request carries a correlation ID.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set("request_id", reqID)
		c.Writer.Header().Set("X-Request-ID", reqID)
		c.Next()
	}
}

// AuthMiddleware resolves the bearer API token to a user and stores it
// in the context.
func AuthMiddleware(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if strings.HasPrefix(header, "Bearer ") {
			token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			u, err := app.Repo().GetUserByToken(c.Request.Context(), token)
			if err == nil {
				c.Set("user", u)
				c.Next()
				return
			}
			if !errors.Is(err, store.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth lookup failed"})
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	}
}

func currentUser(c *gin.Context) *domain.User {
	return c.MustGet("user").(*domain.User)
}
