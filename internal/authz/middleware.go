package authz

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mapease/backend/internal/middleware"
	"github.com/mapease/backend/internal/tenants"
	"github.com/mapease/backend/pkg/response"
)

// RequireTenantAdmin returns a middleware enforcing tenant-admin capability
// on the resolved tenant. It must run after Authenticate and the tenant
// Resolver.
func RequireTenantAdmin(gate *Gate, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		tenant := tenants.FromContext(c)

		err := gate.AuthorizeTenantAdmin(c.Request.Context(), user, tenant)
		if err == nil {
			c.Next()
			return
		}

		var accessErr *TenantAccessError
		switch {
		case errors.Is(err, ErrTenantContextRequired):
			response.BadRequest(c, err.Error())
		case errors.As(err, &accessErr):
			response.Forbidden(c, accessErr.Error())
		default:
			logger.Error("authorization check failed", zap.Error(err))
			response.Internal(c, "authorization check failed")
		}
		c.Abort()
	}
}
