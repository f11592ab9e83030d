package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mapease/backend/internal/auth"
	"github.com/mapease/backend/internal/models"
	"github.com/mapease/backend/pkg/response"
)

const (
	// ContextUser is the key for the authenticated *models.User in gin context.
	ContextUser = "user"
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for the live user role in gin context.
	ContextUserRole = "user_role"
)

// UserLoader resolves a principal by id. *auth.Repository satisfies it.
type UserLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Authenticate returns a middleware that validates the bearer JWT and loads
// the referenced user from storage. The role set in context is the stored
// one, not the claims snapshot, so role changes take effect without
// re-issuing tokens.
func Authenticate(jwtService *auth.JWTService, users UserLoader, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			response.Unauthorized(c, err.Error())
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(token)
		if err != nil {
			response.Unauthorized(c, err.Error())
			c.Abort()
			return
		}
		user, err := users.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			logger.Error("load principal failed", zap.Error(err))
			response.Internal(c, "authentication failed")
			c.Abort()
			return
		}
		if user == nil || !user.IsActive {
			response.Unauthorized(c, auth.ErrUserInactive.Error())
			c.Abort()
			return
		}
		c.Set(ContextUser, user)
		c.Set(ContextUserID, user.ID)
		c.Set(ContextUserRole, string(user.Role))
		c.Next()
	}
}

// CurrentUser returns the authenticated user set by Authenticate.
func CurrentUser(c *gin.Context) *models.User {
	return c.MustGet(ContextUser).(*models.User)
}
