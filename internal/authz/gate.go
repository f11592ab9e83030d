// Package authz decides whether an authenticated principal may act on a
// resolved tenant. Global role and per-tenant membership are separate axes:
// PLATFORM_ADMIN short-circuits every tenant-scoped check, everyone else
// needs an explicit tenant_admins membership row.
package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mapease/backend/internal/models"
)

// ErrTenantContextRequired means an operation that is scoped to a tenant ran
// without one resolved. It is checked before any role logic so a resolution
// failure is never treated as "any tenant is fine".
var ErrTenantContextRequired = errors.New("tenant context required")

// TenantAccessError means the principal holds no admin membership for the
// tenant. The slug is included so the denial can name the tenant.
type TenantAccessError struct {
	Slug string
}

func (e *TenantAccessError) Error() string {
	return fmt.Sprintf("tenant admin access required for %q", e.Slug)
}

// RoleError means a global-role-only check failed.
type RoleError struct {
	Required models.Role
	Actual   models.Role
}

func (e *RoleError) Error() string {
	return fmt.Sprintf("insufficient role: required %s, have %s", e.Required, e.Actual)
}

// MembershipStore answers per-tenant admin membership queries.
type MembershipStore interface {
	IsAdmin(ctx context.Context, userID, tenantID uuid.UUID) (bool, error)
}

// Gate composes the resolved tenant and the authenticated principal into
// capability decisions.
type Gate struct {
	memberships MembershipStore
}

// NewGate creates an authorization gate over a membership store.
func NewGate(memberships MembershipStore) *Gate {
	return &Gate{memberships: memberships}
}

// AuthorizeTenantAdmin decides whether the principal may perform
// tenant-admin operations on the tenant. Check order: tenant context, then
// the PLATFORM_ADMIN short-circuit, then membership.
func (g *Gate) AuthorizeTenantAdmin(ctx context.Context, user *models.User, tenant *models.Tenant) error {
	if tenant == nil {
		return ErrTenantContextRequired
	}
	if user.Role == models.RolePlatformAdmin {
		return nil
	}
	ok, err := g.memberships.IsAdmin(ctx, user.ID, tenant.ID)
	if err != nil {
		return fmt.Errorf("membership lookup: %w", err)
	}
	if !ok {
		return &TenantAccessError{Slug: tenant.Subdomain}
	}
	return nil
}

// AuthorizeRole decides a global-role-only operation.
func (g *Gate) AuthorizeRole(user *models.User, required models.Role) error {
	if user.Role == required {
		return nil
	}
	return &RoleError{Required: required, Actual: user.Role}
}
