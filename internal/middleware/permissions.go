package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront_back_end/internal/models"
)

// RequireRole admet l'utilisateur s'il détient au moins un des rôles
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := CurrentPrincipal(c)
		if !ok {
			abortJSON(c, http.StatusUnauthorized, "Authentication required")
			return
		}
		if !p.HasAnyRole(roles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":          "Insufficient role",
				"required_roles": roles,
			})
			return
		}
		c.Next()
	}
}

// RequirePermission exige toutes les permissions ; le rôle admin passe toujours
func RequirePermission(permissions ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := CurrentPrincipal(c)
		if !ok {
			abortJSON(c, http.StatusUnauthorized, "Authentication required")
			return
		}
		if !p.HasPermissions(permissions...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":                "Insufficient permissions",
				"required_permissions": permissions,
			})
			return
		}
		c.Next()
	}
}

func RequireAdmin() gin.HandlerFunc {
	return RequireRole(models.RoleAdmin)
}
