package models

import (
	"time"

	"github.com/google/uuid"
)

// Tenant represents an independently branded venue, reachable at
// <subdomain>.<base-domain>.
type Tenant struct {
	ID        uuid.UUID `json:"id"`
	PlaceName string    `json:"place_name"`
	Subdomain string    `json:"subdomain"`
	SVGPath   *string   `json:"svg_path,omitempty"` // venue map object, served to consumed registrations only
	IsActive  bool      `json:"is_active"`
	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TenantAdmin grants tenant-scoped admin rights to a user. The (user, tenant)
// pair is unique; rows are removed when access is revoked or the tenant is
// deleted.
type TenantAdmin struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	CreatedAt time.Time `json:"created_at"`
}
