package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ticket-report-export/internal/models"
	appErrors "github.com/noah-isme/ticket-report-export/pkg/errors"
	"github.com/noah-isme/ticket-report-export/pkg/response"
)

// RequireRoles lets the request through only when the caller resolved by Identity
// carries one of roles. Callers identified by the email header have no role.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(c *gin.Context) {
		claims := ClaimsFromContext(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "role not allowed"))
			c.Abort()
			return
		}
		c.Next()
	}
}
