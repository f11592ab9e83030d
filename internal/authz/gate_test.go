package authz

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mapease/backend/internal/models"
)

type membershipKey struct {
	userID   uuid.UUID
	tenantID uuid.UUID
}

// memMemberships is an in-memory membership store.
type memMemberships struct {
	rows map[membershipKey]bool
}

func (m *memMemberships) IsAdmin(_ context.Context, userID, tenantID uuid.UUID) (bool, error) {
	return m.rows[membershipKey{userID, tenantID}], nil
}

func (m *memMemberships) grant(userID, tenantID uuid.UUID) {
	if m.rows == nil {
		m.rows = make(map[membershipKey]bool)
	}
	m.rows[membershipKey{userID, tenantID}] = true
}

func userWithRole(role models.Role) *models.User {
	return &models.User{ID: uuid.New(), Email: "u@example.com", Role: role, IsActive: true}
}

func tenantNamed(slug string) *models.Tenant {
	return &models.Tenant{ID: uuid.New(), Subdomain: slug, IsActive: true}
}

func TestAuthorizeTenantAdminRequiresTenantContext(t *testing.T) {
	gate := NewGate(&memMemberships{})
	// Even a platform admin fails without a tenant; resolution errors must
	// never widen into "any tenant is fine".
	err := gate.AuthorizeTenantAdmin(context.Background(), userWithRole(models.RolePlatformAdmin), nil)
	assert.ErrorIs(t, err, ErrTenantContextRequired)
}

func TestAuthorizeTenantAdminPlatformAdminShortCircuits(t *testing.T) {
	gate := NewGate(&memMemberships{})
	err := gate.AuthorizeTenantAdmin(context.Background(), userWithRole(models.RolePlatformAdmin), tenantNamed("acme"))
	assert.NoError(t, err)
}

func TestAuthorizeTenantAdminMembership(t *testing.T) {
	memberships := &memMemberships{}
	gate := NewGate(memberships)
	admin := userWithRole(models.RoleTenantAdmin)
	tenantA := tenantNamed("acme")
	tenantB := tenantNamed("globex")
	memberships.grant(admin.ID, tenantA.ID)

	assert.NoError(t, gate.AuthorizeTenantAdmin(context.Background(), admin, tenantA))

	err := gate.AuthorizeTenantAdmin(context.Background(), admin, tenantB)
	var denied *TenantAccessError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "globex", denied.Slug)
}

func TestAuthorizeTenantAdminGuestDenied(t *testing.T) {
	gate := NewGate(&memMemberships{})
	err := gate.AuthorizeTenantAdmin(context.Background(), userWithRole(models.RoleGuest), tenantNamed("acme"))
	var denied *TenantAccessError
	assert.ErrorAs(t, err, &denied)
}

func TestAuthorizeRole(t *testing.T) {
	gate := NewGate(&memMemberships{})

	assert.NoError(t, gate.AuthorizeRole(userWithRole(models.RolePlatformAdmin), models.RolePlatformAdmin))

	err := gate.AuthorizeRole(userWithRole(models.RoleGuest), models.RolePlatformAdmin)
	var roleErr *RoleError
	require.ErrorAs(t, err, &roleErr)
	assert.Equal(t, models.RolePlatformAdmin, roleErr.Required)
	assert.Equal(t, models.RoleGuest, roleErr.Actual)
}
