package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mapease/backend/pkg/response"
)

// RequireRole returns a middleware that allows only the given global roles.
// The failure message reports required vs actual so callers can explain the
// denial.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		roleVal, ok := c.Get(ContextUserRole)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		role, _ := roleVal.(string)
		if _, ok := allowed[role]; !ok {
			response.Forbidden(c, fmt.Sprintf("insufficient role: required %s, have %s",
				strings.Join(roles, " or "), role))
			c.Abort()
			return
		}
		c.Next()
	}
}
