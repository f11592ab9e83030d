package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a principal's global role on the platform.
type Role string

const (
	RolePlatformAdmin Role = "PLATFORM_ADMIN"
	RoleTenantAdmin   Role = "TENANT_ADMIN"
	RoleGuest         Role = "GUEST"
)

// User represents an authenticated principal, independent of any tenant.
// Users are created on first sight from the SSO authority and are never
// hard-deleted, only deactivated.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Avatar    *string   `json:"avatar,omitempty"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
