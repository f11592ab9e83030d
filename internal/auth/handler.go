package auth

import (
	"errors"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mapease/backend/internal/models"
	"github.com/mapease/backend/pkg/response"
)

// SSOCallbackRequest is the body for POST /auth/sso/callback.
type SSOCallbackRequest struct {
	Token string `json:"token" binding:"required"`
}

// TokenResponse is the exchange response with the local bearer token.
type TokenResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	repo        *Repository
	jwt         *JWTService
	sso         *SSOClient
	baseDomain  string
	adminEmails map[string]struct{}
	logger      *zap.Logger
}

// NewHandler creates an auth handler. adminEmails become PLATFORM_ADMIN on
// first (or any later) SSO sight.
func NewHandler(repo *Repository, jwt *JWTService, sso *SSOClient, baseDomain string, adminEmails []string, logger *zap.Logger) *Handler {
	allow := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		allow[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
	}
	return &Handler{
		repo:        repo,
		jwt:         jwt,
		sso:         sso,
		baseDomain:  baseDomain,
		adminEmails: allow,
		logger:      logger,
	}
}

// SSOCallback handles POST /auth/sso/callback. Exchanges an assertion from
// the external authority for a local bearer token, creating the user on first
// sight and syncing display metadata on repeat sight.
func (h *Handler) SSOCallback(c *gin.Context) {
	var req SSOCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "SSO token required")
		return
	}

	profile, err := h.sso.VerifyAssertion(c.Request.Context(), req.Token)
	if err != nil {
		if errors.Is(err, ErrAssertionRejected) {
			response.Unauthorized(c, "invalid SSO token")
			return
		}
		h.logger.Error("sso verification failed", zap.Error(err))
		response.Internal(c, "authentication failed")
		return
	}

	_, isPlatformAdmin := h.adminEmails[strings.ToLower(profile.Email)]

	user, err := h.repo.GetByEmail(c.Request.Context(), profile.Email)
	if err != nil {
		h.logger.Error("load user failed", zap.Error(err))
		response.Internal(c, "authentication failed")
		return
	}
	if user == nil {
		role := models.RoleGuest
		if isPlatformAdmin {
			role = models.RolePlatformAdmin
		}
		name := profile.Name
		if name == "" {
			name = strings.SplitN(profile.Email, "@", 2)[0]
		}
		user, err = h.repo.Create(c.Request.Context(), profile.Email, name, profile.Avatar, role)
	} else {
		promote := isPlatformAdmin && user.Role != models.RolePlatformAdmin
		user, err = h.repo.SyncProfile(c.Request.Context(), user.ID, profile.Name, profile.Avatar, promote)
	}
	if err != nil || user == nil {
		h.logger.Error("upsert user failed", zap.Error(err))
		response.Internal(c, "authentication failed")
		return
	}

	token, err := h.jwt.Generate(user.ID, user.Email, string(user.Role))
	if err != nil {
		h.logger.Error("generate token failed", zap.Error(err))
		response.Internal(c, "failed to generate token")
		return
	}
	response.OK(c, TokenResponse{Token: token, User: user})
}

// Verify handles GET /auth/verify. Re-validates the bearer token and returns
// the live user record.
func (h *Handler) Verify(c *gin.Context) {
	token, err := BearerToken(c.GetHeader("Authorization"))
	if err != nil {
		response.Unauthorized(c, err.Error())
		return
	}
	claims, err := h.jwt.Validate(token)
	if err != nil {
		response.Forbidden(c, err.Error())
		return
	}
	user, err := h.repo.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Internal(c, "token verification failed")
		return
	}
	if user == nil || !user.IsActive {
		response.Unauthorized(c, ErrUserInactive.Error())
		return
	}
	response.OK(c, gin.H{"user": user})
}

// SSOLogin handles GET /auth/sso/login. Returns the external login URL with a
// post-login redirect.
func (h *Handler) SSOLogin(c *gin.Context) {
	redirect := c.Query("redirect")
	if redirect == "" {
		redirect = "https://" + h.baseDomain
	}
	response.OK(c, gin.H{"login_url": h.sso.LoginURL(url.QueryEscape(redirect))})
}

// Logout handles POST /auth/logout. Tokens are stateless; logout is
// client-side.
func (h *Handler) Logout(c *gin.Context) {
	response.OK(c, gin.H{"message": "logged out"})
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrTokenMissing
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", ErrTokenInvalid
	}
	return parts[1], nil
}
