package users

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mapease/backend/internal/auth"
	"github.com/mapease/backend/internal/middleware"
	"github.com/mapease/backend/internal/models"
	"github.com/mapease/backend/internal/tenants"
	"github.com/mapease/backend/pkg/response"
)

// RegistrationLister supplies a user's registrations across all events.
type RegistrationLister interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Registration, error)
}

// Handler exposes the authenticated user's own profile and registrations.
type Handler struct {
	users         *auth.Repository
	tenants       *tenants.Repository
	registrations RegistrationLister
	logger        *zap.Logger
}

// NewHandler creates a users handler.
func NewHandler(users *auth.Repository, tenantRepo *tenants.Repository, registrations RegistrationLister, logger *zap.Logger) *Handler {
	return &Handler{users: users, tenants: tenantRepo, registrations: registrations, logger: logger}
}

type updateProfileRequest struct {
	Name string `json:"name" binding:"required"`
}

// Profile handles GET /user/profile: the user plus the tenants they manage
// and, for platform admins, the tenants they created.
func (h *Handler) Profile(c *gin.Context) {
	user := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	managed, err := h.tenants.ListManagedByUser(ctx, user.ID)
	if err != nil {
		h.logger.Error("list managed tenants failed", zap.Error(err))
		response.Internal(c, "failed to load profile")
		return
	}
	data := gin.H{"user": user, "managed_tenants": managed}
	if user.Role == models.RolePlatformAdmin {
		created, err := h.tenants.ListCreatedByUser(ctx, user.ID)
		if err != nil {
			h.logger.Error("list created tenants failed", zap.Error(err))
			response.Internal(c, "failed to load profile")
			return
		}
		data["created_tenants"] = created
	}
	response.OK(c, data)
}

// UpdateProfile handles PUT /user/profile. Only the display name is locally
// mutable; email and avatar belong to the SSO authority.
func (h *Handler) UpdateProfile(c *gin.Context) {
	user := middleware.CurrentUser(c)
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		response.BadRequest(c, "name must not be empty")
		return
	}
	updated, err := h.users.UpdateName(c.Request.Context(), user.ID, name)
	if err != nil {
		h.logger.Error("update profile failed", zap.Error(err))
		response.Internal(c, "failed to update profile")
		return
	}
	response.OK(c, gin.H{"user": updated})
}

// Registrations handles GET /user/registrations: every registration linked
// to this account, regardless of tenant.
func (h *Handler) Registrations(c *gin.Context) {
	user := middleware.CurrentUser(c)
	list, err := h.registrations.ListByUser(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error("list user registrations failed", zap.Error(err))
		response.Internal(c, "failed to list registrations")
		return
	}
	response.OK(c, gin.H{"registrations": list})
}
