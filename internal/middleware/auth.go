package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/e-projects/platform-api/internal/service"
	appErrors "github.com/e-projects/platform-api/pkg/errors"
	"github.com/e-projects/platform-api/pkg/response"
)

// Context keys for the authenticated principal.
const (
	ContextClaimsKey = "sessionClaims"
	ContextUserKey   = "currentUser"
)

// Auth protects routes by requiring a valid token AND a live session. Every
// guarded request doubles as a liveness probe: a token whose session row was
// superseded or purged gets the sessionExpired payload, which the frontend
// treats as a forced logout.
func Auth(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		user, err := authService.CheckSession(c.Request.Context(), claims)
		if err != nil {
			var appErr *appErrors.Error
			if errors.As(err, &appErr) && appErr.Code == appErrors.ErrSessionExpired.Code {
				response.SessionExpired(c, appErr.Message)
			} else {
				response.Error(c, err)
			}
			c.Abort()
			return
		}

		c.Set(ContextClaimsKey, claims)
		c.Set(ContextUserKey, user)
		c.Next()
	}
}
