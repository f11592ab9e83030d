package tenants

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mapease/backend/pkg/response"
)

// EventCounter supplies event totals for the tenant dashboard.
type EventCounter interface {
	CountByTenant(ctx context.Context, tenantID uuid.UUID) (total, active int, err error)
}

// RegistrationCounter supplies registration totals for the tenant dashboard.
type RegistrationCounter interface {
	CountByTenant(ctx context.Context, tenantID uuid.UUID) (total, pending int, err error)
}

// Handler exposes tenant-scoped read endpoints: public tenant info plus the
// admin dashboard.
type Handler struct {
	repo          *Repository
	events        EventCounter
	registrations RegistrationCounter
	logger        *zap.Logger
}

// NewHandler creates a tenants handler.
func NewHandler(repo *Repository, events EventCounter, registrations RegistrationCounter, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, events: events, registrations: registrations, logger: logger}
}

// Info handles GET /tenant/:slug. Public callers get the branding fields for
// the resolved tenant.
func (h *Handler) Info(c *gin.Context) {
	tenant := FromContext(c)
	response.OK(c, gin.H{
		"id":         tenant.ID,
		"place_name": tenant.PlaceName,
		"subdomain":  tenant.Subdomain,
		"svg_path":   tenant.SVGPath,
	})
}

// Dashboard handles GET /tenant/:slug/dashboard (tenant admin): event and
// registration counts at a glance.
func (h *Handler) Dashboard(c *gin.Context) {
	tenant := FromContext(c)
	ctx := c.Request.Context()

	totalEvents, activeEvents, err := h.events.CountByTenant(ctx, tenant.ID)
	if err != nil {
		h.logger.Error("count events failed", zap.String("tenant_id", tenant.ID.String()), zap.Error(err))
		response.Internal(c, "failed to load dashboard")
		return
	}
	totalRegs, pendingRegs, err := h.registrations.CountByTenant(ctx, tenant.ID)
	if err != nil {
		h.logger.Error("count registrations failed", zap.String("tenant_id", tenant.ID.String()), zap.Error(err))
		response.Internal(c, "failed to load dashboard")
		return
	}
	response.OK(c, gin.H{
		"tenant": tenant,
		"events": gin.H{
			"total":  totalEvents,
			"active": activeEvents,
		},
		"registrations": gin.H{
			"total":   totalRegs,
			"pending": pendingRegs,
		},
	})
}

// Admins handles GET /tenant/:slug/admins (tenant admin): the users managing
// this tenant.
func (h *Handler) Admins(c *gin.Context) {
	tenant := FromContext(c)
	admins, err := h.repo.ListAdmins(c.Request.Context(), tenant.ID)
	if err != nil {
		h.logger.Error("list tenant admins failed", zap.String("tenant_id", tenant.ID.String()), zap.Error(err))
		response.Internal(c, "failed to list admins")
		return
	}
	response.OK(c, gin.H{"admins": admins})
}
