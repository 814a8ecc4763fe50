package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/e-projects/platform-api/internal/models"
	appErrors "github.com/e-projects/platform-api/pkg/errors"
	"github.com/e-projects/platform-api/pkg/response"
)

// RequireTier gates a route on tier dominance: any effective role at or
// above the required tier passes. Admin dominates everything.
func RequireTier(required models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if !models.TierAtLeast(user.Role, required) {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "insufficient access tier"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdmin gates a route on the admin role.
func RequireAdmin() gin.HandlerFunc {
	return RequireTier(models.RoleAdmin)
}

// CurrentUser extracts the authenticated principal set by Auth.
func CurrentUser(c *gin.Context) (*models.UserInfo, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.UserInfo)
	return user, ok
}

// CurrentClaims extracts the token claims set by Auth.
func CurrentClaims(c *gin.Context) (*models.SessionClaims, bool) {
	value, exists := c.Get(ContextClaimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*models.SessionClaims)
	return claims, ok
}
