package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/channelchat/internal/auth"
	"github.com/vovakirdan/channelchat/internal/core"
)

const (
	// ContextKeyUserID is the context key for storing user ID.
	ContextKeyUserID = "user_id"
	// ContextKeyDisplayName is the context key for storing the display name.
	ContextKeyDisplayName = "display_name"
	// ContextKeyIsGuest is the context key for storing guest status.
	ContextKeyIsGuest = "is_guest"

	// AdminKeyHeader carries the plaintext admin key.
	AdminKeyHeader = "X-Admin-Key"
)

// AuthMiddleware creates a middleware that validates JWT tokens.
func AuthMiddleware(authService *auth.Service, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			logger.Debug().Msg("missing authorization header")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "missing authorization header", Code: "unauthorized"})
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			logger.Debug().Msg("invalid authorization header format")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid authorization header format", Code: "unauthorized"})
			return
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			logger.Debug().Err(err).Msg("invalid token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid token", Code: "unauthorized"})
			return
		}

		c.Set(ContextKeyUserID, core.UserID(claims.UserID))
		c.Set(ContextKeyDisplayName, claims.DisplayName)
		c.Set(ContextKeyIsGuest, claims.IsGuest)

		c.Next()
	}
}

// AdminMiddleware guards the admin routes with a bcrypt-hashed shared key.
// With no hash configured every admin request is refused.
func AdminMiddleware(keyHash string, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if keyHash == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "admin api disabled", Code: "forbidden"})
			return
		}
		key := c.GetHeader(AdminKeyHeader)
		if key == "" || auth.CompareAdminKey(keyHash, key) != nil {
			logger.Warn().Str("remote", c.ClientIP()).Msg("rejected admin request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid admin key", Code: "unauthorized"})
			return
		}
		c.Next()
	}
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	}
}

// userFromContext returns the id stored by AuthMiddleware.
func userFromContext(c *gin.Context) (core.UserID, bool) {
	v, exists := c.Get(ContextKeyUserID)
	if !exists {
		return "", false
	}
	id, ok := v.(core.UserID)
	return id, ok && id != ""
}
