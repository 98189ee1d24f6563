package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"commission-app/internal/domain/users"
)

func RequireRole(role users.Role) gin.HandlerFunc {
	return RequireAnyRole(role)
}

// RequireAnyRole lets the request through when the caller holds one of roles.
// Admins pass every role check.
func RequireAnyRole(roles ...users.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(keyRole)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Role not found in token"})
			return
		}
		role := users.Role(value.(string))
		if role != users.RoleAdmin && !slices.Contains(roles, role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}
		c.Next()
	}
}
