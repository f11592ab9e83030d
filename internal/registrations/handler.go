package registrations

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mapease/backend/internal/auth"
	"github.com/mapease/backend/internal/models"
	"github.com/mapease/backend/internal/tenants"
	"github.com/mapease/backend/pkg/response"
)

// Handler exposes registration lifecycle endpoints.
type Handler struct {
	service *Service
	repo    *Repository
	users   *auth.Repository
	logger  *zap.Logger
}

// NewHandler creates a registrations handler.
func NewHandler(service *Service, repo *Repository, users *auth.Repository, logger *zap.Logger) *Handler {
	return &Handler{service: service, repo: repo, users: users, logger: logger}
}

type registerRequest struct {
	Name  string  `json:"name" binding:"required"`
	Email string  `json:"email" binding:"required,email"`
	Phone *string `json:"phone"`
}

type scanRequest struct {
	QRCode string `json:"qr_code" binding:"required"`
}

// Register handles POST /tenant/:slug/event/:eventId/register. Anyone reaching the
// tenant's event page may register; no authentication required. When the
// email belongs to a known user the registration is linked to that account.
func (h *Handler) Register(c *gin.Context) {
	tenant := tenants.FromContext(c)
	eventID, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	in := RegisterInput{
		Name:  strings.TrimSpace(req.Name),
		Email: strings.ToLower(strings.TrimSpace(req.Email)),
		Phone: req.Phone,
	}
	if user, err := h.users.GetByEmail(c.Request.Context(), in.Email); err == nil && user != nil {
		in.UserID = &user.ID
	}

	result, err := h.service.Register(c.Request.Context(), tenant.ID, eventID, in)
	if err != nil {
		var dup *DuplicateError
		switch {
		case errors.Is(err, ErrEventNotFound):
			response.NotFound(c, err.Error())
		case errors.As(err, &dup):
			response.Conflict(c, dup.Error(), gin.H{"registration": dup.Existing})
		default:
			h.logger.Error("register failed", zap.String("event_id", eventID.String()), zap.Error(err))
			response.Internal(c, "registration failed")
		}
		return
	}
	h.respondResult(c, result, true)
}

// Approve handles POST /tenant/:slug/event/:eventId/approve-user/:registrationId.
func (h *Handler) Approve(c *gin.Context) {
	tenant := tenants.FromContext(c)
	eventID, regID, ok := h.pathIDs(c)
	if !ok {
		return
	}
	result, err := h.service.Approve(c.Request.Context(), tenant.ID, eventID, regID)
	if err != nil {
		var finalized *FinalizedError
		switch {
		case errors.Is(err, ErrRegistrationNotFound):
			response.NotFound(c, err.Error())
		case errors.Is(err, ErrAlreadyApproved):
			response.BadRequest(c, err.Error())
		case errors.As(err, &finalized):
			response.BadRequest(c, finalized.Error())
		default:
			h.logger.Error("approve failed", zap.String("registration_id", regID.String()), zap.Error(err))
			response.Internal(c, "approval failed")
		}
		return
	}
	h.respondResult(c, result, false)
}

// Reject handles POST /tenant/:slug/event/:eventId/reject-user/:registrationId.
func (h *Handler) Reject(c *gin.Context) {
	tenant := tenants.FromContext(c)
	eventID, regID, ok := h.pathIDs(c)
	if !ok {
		return
	}
	reg, err := h.service.Reject(c.Request.Context(), tenant.ID, eventID, regID)
	if err != nil {
		var finalized *FinalizedError
		switch {
		case errors.Is(err, ErrRegistrationNotFound):
			response.NotFound(c, err.Error())
		case errors.As(err, &finalized):
			response.BadRequest(c, finalized.Error())
		default:
			h.logger.Error("reject failed", zap.String("registration_id", regID.String()), zap.Error(err))
			response.Internal(c, "rejection failed")
		}
		return
	}
	response.OK(c, gin.H{"registration": reg})
}

// Scan handles POST /tenant/:slug/event/:eventId/scan. The gate device presents the
// credential; a winning scan consumes it.
func (h *Handler) Scan(c *gin.Context) {
	tenant := tenants.FromContext(c)
	eventID, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	result, err := h.service.ScanAndConsume(c.Request.Context(), tenant.ID, eventID, req.QRCode)
	if err != nil {
		var consumed *ConsumedError
		switch {
		case errors.Is(err, ErrEventNotFound):
			response.NotFound(c, err.Error())
		case errors.Is(err, ErrCredentialNotFound):
			response.NotFound(c, err.Error())
		case errors.As(err, &consumed):
			response.Conflict(c, consumed.Error(), gin.H{"scanned_at": consumed.ConsumedAt})
		default:
			h.logger.Error("scan failed", zap.String("event_id", eventID.String()), zap.Error(err))
			response.Internal(c, "scan failed")
		}
		return
	}
	response.OK(c, result)
}

// ListByEvent handles GET /tenant/:slug/event/:eventId/registrations with optional
// ?status= filter and pagination.
func (h *Handler) ListByEvent(c *gin.Context) {
	tenant := tenants.FromContext(c)
	eventID, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	if event, err := h.repo.ActiveEvent(c.Request.Context(), eventID, tenant.ID); err != nil {
		h.logger.Error("load event failed", zap.Error(err))
		response.Internal(c, "failed to load event")
		return
	} else if event == nil {
		response.NotFound(c, ErrEventNotFound.Error())
		return
	}

	var status *models.RegistrationStatus
	if raw := strings.ToUpper(c.Query("status")); raw != "" {
		s := models.RegistrationStatus(raw)
		switch s {
		case models.StatusPending, models.StatusApproved, models.StatusRejected:
			status = &s
		default:
			response.BadRequest(c, "invalid status filter")
			return
		}
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	list, total, err := h.repo.ListByEvent(c.Request.Context(), eventID, status, limit, offset)
	if err != nil {
		h.logger.Error("list registrations failed", zap.Error(err))
		response.Internal(c, "failed to list registrations")
		return
	}
	response.OK(c, gin.H{"registrations": list, "total": total})
}

// VenueMap handles GET /tenant/:slug/event/:eventId/map/:registrationId. The venue
// map is only served to a registration that is approved and has passed the
// gate.
func (h *Handler) VenueMap(c *gin.Context) {
	tenant := tenants.FromContext(c)
	eventID, regID, ok := h.pathIDs(c)
	if !ok {
		return
	}
	reg, err := h.repo.ByID(c.Request.Context(), regID, eventID, tenant.ID)
	if err != nil {
		h.logger.Error("load registration failed", zap.Error(err))
		response.Internal(c, "failed to load registration")
		return
	}
	if reg == nil {
		response.NotFound(c, ErrRegistrationNotFound.Error())
		return
	}
	if !VenueAccess(reg) {
		response.Forbidden(c, "venue map requires an approved, scanned registration")
		return
	}
	if tenant.SVGPath == nil {
		response.NotFound(c, "no venue map configured")
		return
	}
	response.OK(c, gin.H{
		"svg_path":   *tenant.SVGPath,
		"place_name": tenant.PlaceName,
	})
}

func (h *Handler) pathIDs(c *gin.Context) (eventID, regID uuid.UUID, ok bool) {
	eventID, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return uuid.Nil, uuid.Nil, false
	}
	regID, err = uuid.Parse(c.Param("registrationId"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return uuid.Nil, uuid.Nil, false
	}
	return eventID, regID, true
}

func (h *Handler) respondResult(c *gin.Context, result *Result, created bool) {
	data := gin.H{"registration": result.Registration}
	if result.QRImageURL != "" {
		data["qr_image_url"] = result.QRImageURL
	}
	switch {
	case result.Warning != "":
		response.OKWithWarning(c, data, result.Warning)
	case created:
		response.Created(c, data)
	default:
		response.OK(c, data)
	}
}
