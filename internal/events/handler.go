package events

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mapease/backend/internal/models"
	"github.com/mapease/backend/internal/tenants"
	"github.com/mapease/backend/pkg/response"
)

// Handler exposes event CRUD within a tenant.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates an events handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

type createRequest struct {
	EventName    string     `json:"event_name" binding:"required"`
	LocationName string     `json:"location_name" binding:"required"`
	EventType    string     `json:"event_type" binding:"required"`
	Description  string     `json:"description"`
	StartDate    time.Time  `json:"start_date" binding:"required"`
	EndDate      *time.Time `json:"end_date"`
}

type updateRequest struct {
	EventName    *string    `json:"event_name"`
	LocationName *string    `json:"location_name"`
	Description  *string    `json:"description"`
	StartDate    *time.Time `json:"start_date"`
	EndDate      *time.Time `json:"end_date"`
	IsActive     *bool      `json:"is_active"`
}

// Create handles POST /tenant/:slug/event (tenant admin).
func (h *Handler) Create(c *gin.Context) {
	tenant := tenants.FromContext(c)
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	eventType := models.EventType(strings.ToUpper(req.EventType))
	if eventType != models.EventTypeOpen && eventType != models.EventTypePrivate {
		response.BadRequest(c, "event_type must be OPEN or PRIVATE")
		return
	}
	if req.EndDate != nil && req.EndDate.Before(req.StartDate) {
		response.BadRequest(c, "end_date must not precede start_date")
		return
	}
	var description *string
	if req.Description != "" {
		description = &req.Description
	}
	startDate := req.StartDate
	event := &models.Event{
		TenantID:     tenant.ID,
		EventName:    strings.TrimSpace(req.EventName),
		LocationName: strings.TrimSpace(req.LocationName),
		EventType:    eventType,
		Description:  description,
		StartDate:    &startDate,
		EndDate:      req.EndDate,
	}
	if err := h.repo.Create(c.Request.Context(), event); err != nil {
		h.logger.Error("create event failed", zap.String("tenant_id", tenant.ID.String()), zap.Error(err))
		response.Internal(c, "failed to create event")
		return
	}
	response.Created(c, gin.H{"event": event})
}

// List handles GET /tenant/:slug/events. Public callers see active events only;
// tenant admins pass ?all=true to include deactivated ones.
func (h *Handler) List(c *gin.Context) {
	tenant := tenants.FromContext(c)
	activeOnly := c.Query("all") != "true"
	list, err := h.repo.ListByTenant(c.Request.Context(), tenant.ID, activeOnly)
	if err != nil {
		h.logger.Error("list events failed", zap.Error(err))
		response.Internal(c, "failed to list events")
		return
	}
	response.OK(c, gin.H{"events": list})
}

// Get handles GET /tenant/:slug/event/:eventId.
func (h *Handler) Get(c *gin.Context) {
	tenant := tenants.FromContext(c)
	id, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	event, err := h.repo.GetByID(c.Request.Context(), id, tenant.ID)
	if err != nil {
		h.logger.Error("get event failed", zap.Error(err))
		response.Internal(c, "failed to load event")
		return
	}
	if event == nil {
		response.NotFound(c, "event not found")
		return
	}
	response.OK(c, gin.H{"event": event})
}

// GetByShareLink handles GET /share/:shareLink. Share links are global
// tokens, so this route does not require tenant context.
func (h *Handler) GetByShareLink(c *gin.Context) {
	event, err := h.repo.GetByShareLink(c.Request.Context(), c.Param("shareLink"))
	if err != nil {
		h.logger.Error("share link lookup failed", zap.Error(err))
		response.Internal(c, "failed to load event")
		return
	}
	if event == nil {
		response.NotFound(c, "event not found")
		return
	}
	response.OK(c, gin.H{"event": event})
}

// Update handles PUT /tenant/:slug/event/:eventId (tenant admin).
func (h *Handler) Update(c *gin.Context) {
	tenant := tenants.FromContext(c)
	id, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	event, err := h.repo.Update(c.Request.Context(), id, tenant.ID, UpdatePatch{
		EventName:    req.EventName,
		LocationName: req.LocationName,
		Description:  req.Description,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		IsActive:     req.IsActive,
	})
	if err != nil {
		h.logger.Error("update event failed", zap.Error(err))
		response.Internal(c, "failed to update event")
		return
	}
	if event == nil {
		response.NotFound(c, "event not found")
		return
	}
	response.OK(c, gin.H{"event": event})
}

// Delete handles DELETE /tenant/:slug/event/:eventId (tenant admin). Registrations
// go with the event.
func (h *Handler) Delete(c *gin.Context) {
	tenant := tenants.FromContext(c)
	id, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	deleted, err := h.repo.Delete(c.Request.Context(), id, tenant.ID)
	if err != nil {
		h.logger.Error("delete event failed", zap.Error(err))
		response.Internal(c, "failed to delete event")
		return
	}
	if !deleted {
		response.NotFound(c, "event not found")
		return
	}
	response.OK(c, gin.H{"deleted": true})
}
