package admin

import (
	"context"
	"regexp"
	"strconv"
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

// EventCounter supplies the global event count for platform stats.
type EventCounter interface {
	Count(ctx context.Context) (int, error)
}

// Handler exposes the platform-admin surface: tenant provisioning, tenant
// admin assignment, and user management.
type Handler struct {
	tenants *tenants.Repository
	cache   *tenants.Cache // nil when redis is not configured
	users   *auth.Repository
	events  EventCounter
	logger  *zap.Logger
}

// NewHandler creates a platform admin handler.
func NewHandler(tenantRepo *tenants.Repository, cache *tenants.Cache, users *auth.Repository, events EventCounter, logger *zap.Logger) *Handler {
	return &Handler{tenants: tenantRepo, cache: cache, users: users, events: events, logger: logger}
}

var subdomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// reservedSubdomains can never become tenant slugs; they collide with
// platform hosts.
var reservedSubdomains = map[string]bool{
	"www": true, "api": true, "admin": true, "app": true,
}

type createTenantRequest struct {
	PlaceName string  `json:"place_name" binding:"required"`
	Subdomain string  `json:"subdomain" binding:"required"`
	SVGPath   *string `json:"svg_path"`
}

type updateTenantRequest struct {
	PlaceName *string `json:"place_name"`
	SVGPath   *string `json:"svg_path"`
	IsActive  *bool   `json:"is_active"`
}

type assignAdminRequest struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name"`
}

type userStatusRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// ListTenants handles GET /admin/tenants.
func (h *Handler) ListTenants(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	list, total, err := h.tenants.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Error("list tenants failed", zap.Error(err))
		response.Internal(c, "failed to list tenants")
		return
	}
	response.OK(c, gin.H{"tenants": list, "total": total})
}

// CreateTenant handles POST /admin/tenants.
func (h *Handler) CreateTenant(c *gin.Context) {
	var req createTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	slug := strings.ToLower(strings.TrimSpace(req.Subdomain))
	if !subdomainPattern.MatchString(slug) {
		response.BadRequest(c, "subdomain must be lowercase letters, digits, and hyphens")
		return
	}
	if reservedSubdomains[slug] {
		response.BadRequest(c, "subdomain is reserved")
		return
	}
	exists, err := h.tenants.SubdomainExists(c.Request.Context(), slug)
	if err != nil {
		h.logger.Error("subdomain check failed", zap.Error(err))
		response.Internal(c, "failed to create tenant")
		return
	}
	if exists {
		response.Conflict(c, "subdomain already in use", nil)
		return
	}
	creator := middleware.CurrentUser(c)
	tenant := &models.Tenant{
		PlaceName: strings.TrimSpace(req.PlaceName),
		Subdomain: slug,
		SVGPath:   req.SVGPath,
		CreatedBy: creator.ID,
	}
	if err := h.tenants.Create(c.Request.Context(), tenant); err != nil {
		h.logger.Error("create tenant failed", zap.Error(err))
		response.Internal(c, "failed to create tenant")
		return
	}
	h.logger.Info("tenant created",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("subdomain", tenant.Subdomain),
		zap.String("created_by", creator.Email))
	response.Created(c, gin.H{"tenant": tenant})
}

// UpdateTenant handles PUT /admin/tenants/:tenantId. The subdomain is
// immutable; issued share links and bookmarks depend on it.
func (h *Handler) UpdateTenant(c *gin.Context) {
	id, err := uuid.Parse(c.Param("tenantId"))
	if err != nil {
		response.BadRequest(c, "invalid tenant id")
		return
	}
	var req updateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	tenant, err := h.tenants.Update(c.Request.Context(), id, req.PlaceName, req.SVGPath, req.IsActive)
	if err != nil {
		h.logger.Error("update tenant failed", zap.Error(err))
		response.Internal(c, "failed to update tenant")
		return
	}
	if tenant == nil {
		response.NotFound(c, "tenant not found")
		return
	}
	h.invalidate(c, tenant.Subdomain)
	response.OK(c, gin.H{"tenant": tenant})
}

// DeleteTenant handles DELETE /admin/tenants/:tenantId. Events and
// registrations cascade.
func (h *Handler) DeleteTenant(c *gin.Context) {
	id, err := uuid.Parse(c.Param("tenantId"))
	if err != nil {
		response.BadRequest(c, "invalid tenant id")
		return
	}
	tenant, err := h.tenants.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("load tenant failed", zap.Error(err))
		response.Internal(c, "failed to delete tenant")
		return
	}
	if tenant == nil {
		response.NotFound(c, "tenant not found")
		return
	}
	if err := h.tenants.Delete(c.Request.Context(), id); err != nil {
		h.logger.Error("delete tenant failed", zap.Error(err))
		response.Internal(c, "failed to delete tenant")
		return
	}
	h.invalidate(c, tenant.Subdomain)
	response.OK(c, gin.H{"deleted": true})
}

// AssignAdmin handles POST /admin/tenants/:tenantId/admins. The target user
// is created on first sight; a GUEST is upgraded to TENANT_ADMIN. Platform
// admins can be granted membership without touching their role.
func (h *Handler) AssignAdmin(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("tenantId"))
	if err != nil {
		response.BadRequest(c, "invalid tenant id")
		return
	}
	var req assignAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	tenant, err := h.tenants.GetByID(ctx, tenantID)
	if err != nil {
		h.logger.Error("load tenant failed", zap.Error(err))
		response.Internal(c, "failed to assign admin")
		return
	}
	if tenant == nil {
		response.NotFound(c, "tenant not found")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := h.users.GetByEmail(ctx, email)
	if err != nil {
		h.logger.Error("load user failed", zap.Error(err))
		response.Internal(c, "failed to assign admin")
		return
	}
	if user == nil {
		name := strings.TrimSpace(req.Name)
		if name == "" {
			name = email
		}
		user, err = h.users.Create(ctx, email, name, nil, models.RoleTenantAdmin)
		if err != nil {
			h.logger.Error("create user failed", zap.Error(err))
			response.Internal(c, "failed to assign admin")
			return
		}
	} else if user.Role == models.RoleGuest {
		if err := h.users.SetRole(ctx, user.ID, models.RoleTenantAdmin); err != nil {
			h.logger.Error("promote user failed", zap.Error(err))
			response.Internal(c, "failed to assign admin")
			return
		}
		user.Role = models.RoleTenantAdmin
	}

	added, err := h.tenants.AddAdmin(ctx, user.ID, tenantID)
	if err != nil {
		h.logger.Error("add tenant admin failed", zap.Error(err))
		response.Internal(c, "failed to assign admin")
		return
	}
	if !added {
		response.Conflict(c, "user already administers this tenant", gin.H{"user": user})
		return
	}
	h.logger.Info("tenant admin assigned",
		zap.String("tenant_id", tenantID.String()), zap.String("user_email", email))
	response.Created(c, gin.H{"user": user})
}

// RevokeAdmin handles DELETE /admin/tenants/:tenantId/admins/:userId. A
// TENANT_ADMIN who no longer manages any tenant falls back to GUEST.
func (h *Handler) RevokeAdmin(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("tenantId"))
	if err != nil {
		response.BadRequest(c, "invalid tenant id")
		return
	}
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	ctx := c.Request.Context()
	if err := h.tenants.RemoveAdmin(ctx, userID, tenantID); err != nil {
		h.logger.Error("remove tenant admin failed", zap.Error(err))
		response.Internal(c, "failed to revoke admin")
		return
	}
	user, err := h.users.GetByID(ctx, userID)
	if err == nil && user != nil && user.Role == models.RoleTenantAdmin {
		remaining, err := h.tenants.ListManagedByUser(ctx, userID)
		if err == nil && len(remaining) == 0 {
			if err := h.users.SetRole(ctx, userID, models.RoleGuest); err != nil {
				h.logger.Warn("demote user failed", zap.String("user_id", userID.String()), zap.Error(err))
			}
		}
	}
	response.OK(c, gin.H{"revoked": true})
}

// ListUsers handles GET /admin/users with optional ?role= filter.
func (h *Handler) ListUsers(c *gin.Context) {
	var role *models.Role
	if raw := strings.ToUpper(c.Query("role")); raw != "" {
		r := models.Role(raw)
		switch r {
		case models.RolePlatformAdmin, models.RoleTenantAdmin, models.RoleGuest:
			role = &r
		default:
			response.BadRequest(c, "invalid role filter")
			return
		}
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	users, err := h.users.List(c.Request.Context(), role, limit, offset)
	if err != nil {
		h.logger.Error("list users failed", zap.Error(err))
		response.Internal(c, "failed to list users")
		return
	}
	response.OK(c, gin.H{"users": users})
}

// SetUserStatus handles PUT /admin/users/:userId/status. Deactivation is the
// soft kill switch; the next authenticated request fails.
func (h *Handler) SetUserStatus(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	var req userStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	actor := middleware.CurrentUser(c)
	if actor.ID == userID && !*req.IsActive {
		response.BadRequest(c, "cannot deactivate your own account")
		return
	}
	if err := h.users.SetActive(c.Request.Context(), userID, *req.IsActive); err != nil {
		if user, lookupErr := h.users.GetByID(c.Request.Context(), userID); lookupErr == nil && user == nil {
			response.NotFound(c, "user not found")
			return
		}
		h.logger.Error("set user status failed", zap.Error(err))
		response.Internal(c, "failed to update user status")
		return
	}
	response.OK(c, gin.H{"is_active": *req.IsActive})
}

// Stats handles GET /admin/stats: platform-wide counts.
func (h *Handler) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	_, tenantTotal, err := h.tenants.List(ctx, 1, 0)
	if err != nil {
		h.logger.Error("count tenants failed", zap.Error(err))
		response.Internal(c, "failed to load stats")
		return
	}
	eventTotal, err := h.events.Count(ctx)
	if err != nil {
		h.logger.Error("count events failed", zap.Error(err))
		response.Internal(c, "failed to load stats")
		return
	}
	response.OK(c, gin.H{
		"tenants": tenantTotal,
		"events":  eventTotal,
	})
}

func (h *Handler) invalidate(c *gin.Context, slug string) {
	if h.cache != nil {
		h.cache.Invalidate(c.Request.Context(), slug)
	}
}
