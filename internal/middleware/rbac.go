package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/campus-desk/grievance-api/internal/models"
	appErrors "github.com/campus-desk/grievance-api/pkg/errors"
	"github.com/campus-desk/grievance-api/pkg/response"
)

// RequireRoles enforces role-based access control for routes. A session with
// no role claim is denied regardless of the allowed set: absence of a role
// row fails closed.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		if claims.Role == "" {
			response.Error(c, appErrors.ErrRoleNotAssigned)
			c.Abort()
			return
		}

		if _, ok := allowed[claims.Role]; ok {
			c.Next()
			return
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequireAnyRole admits any session whose role claim is one of the three
// known roles.
func RequireAnyRole() gin.HandlerFunc {
	return RequireRoles(models.RoleStudent, models.RoleFaculty, models.RoleAdmin)
}
