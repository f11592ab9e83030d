package tenants

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mapease/backend/internal/models"
)

// Repository handles tenant and tenant_admin persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a tenants repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const tenantColumns = `id, place_name, subdomain, svg_path, is_active, created_by, created_at, updated_at`

func scanTenant(row pgx.Row) (*models.Tenant, error) {
	var t models.Tenant
	err := row.Scan(&t.ID, &t.PlaceName, &t.Subdomain, &t.SVGPath, &t.IsActive, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// Create inserts a tenant.
func (r *Repository) Create(ctx context.Context, t *models.Tenant) error {
	const q = `INSERT INTO tenants (place_name, subdomain, svg_path, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, is_active, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, t.PlaceName, t.Subdomain, t.SVGPath, t.CreatedBy).
		Scan(&t.ID, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
}

// GetByID returns a tenant by ID, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	return scanTenant(r.pool.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id))
}

// ActiveBySlug returns the active tenant with the given subdomain, or nil.
// Inactive tenants resolve to "no tenant", not an error.
func (r *Repository) ActiveBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	const q = `SELECT ` + tenantColumns + ` FROM tenants WHERE subdomain = $1 AND is_active = TRUE`
	return scanTenant(r.pool.QueryRow(ctx, q, slug))
}

// SubdomainExists reports whether any tenant (active or not) holds the slug.
func (r *Repository) SubdomainExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tenants WHERE subdomain = $1)`, slug).Scan(&exists)
	return exists, err
}

// List returns tenants newest first with a total count.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]models.Tenant, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tenants`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+tenantColumns+` FROM tenants ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var list []models.Tenant
	for rows.Next() {
		var t models.Tenant
		if err := rows.Scan(&t.ID, &t.PlaceName, &t.Subdomain, &t.SVGPath, &t.IsActive, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, 0, err
		}
		list = append(list, t)
	}
	return list, total, rows.Err()
}

// Update patches place name, map path, and active flag. Nil fields are left
// untouched. The subdomain is immutable here: changing it would orphan every
// public event URL already shared.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, placeName *string, svgPath *string, isActive *bool) (*models.Tenant, error) {
	const q = `UPDATE tenants SET
		place_name = COALESCE($2, place_name),
		svg_path = COALESCE($3, svg_path),
		is_active = COALESCE($4, is_active),
		updated_at = NOW()
		WHERE id = $1
		RETURNING ` + tenantColumns
	return scanTenant(r.pool.QueryRow(ctx, q, id, placeName, svgPath, isActive))
}

// Delete removes a tenant; events and memberships cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// AddAdmin grants tenant-admin membership. Returns false when the membership
// already existed.
func (r *Repository) AddAdmin(ctx context.Context, userID, tenantID uuid.UUID) (bool, error) {
	const q = `INSERT INTO tenant_admins (user_id, tenant_id) VALUES ($1, $2)
		ON CONFLICT (user_id, tenant_id) DO NOTHING`
	tag, err := r.pool.Exec(ctx, q, userID, tenantID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// RemoveAdmin revokes tenant-admin membership.
func (r *Repository) RemoveAdmin(ctx context.Context, userID, tenantID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM tenant_admins WHERE user_id = $1 AND tenant_id = $2`, userID, tenantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// IsAdmin reports whether the user holds a tenant-admin membership for the
// tenant.
func (r *Repository) IsAdmin(ctx context.Context, userID, tenantID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tenant_admins WHERE user_id = $1 AND tenant_id = $2)`,
		userID, tenantID).Scan(&exists)
	return exists, err
}

// ListAdmins returns the users holding tenant-admin membership for a tenant.
func (r *Repository) ListAdmins(ctx context.Context, tenantID uuid.UUID) ([]models.User, error) {
	const q = `SELECT u.id, u.email, u.name, u.avatar, u.role, u.is_active, u.created_at, u.updated_at
		FROM tenant_admins ta
		INNER JOIN users u ON u.id = ta.user_id
		WHERE ta.tenant_id = $1
		ORDER BY ta.created_at ASC`
	rows, err := r.pool.Query(ctx, q, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Avatar, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

// ListManagedByUser returns tenants the user administers.
func (r *Repository) ListManagedByUser(ctx context.Context, userID uuid.UUID) ([]models.Tenant, error) {
	const q = `SELECT t.id, t.place_name, t.subdomain, t.svg_path, t.is_active, t.created_by, t.created_at, t.updated_at
		FROM tenant_admins ta
		INNER JOIN tenants t ON t.id = ta.tenant_id
		WHERE ta.user_id = $1
		ORDER BY t.place_name`
	return r.queryTenants(ctx, q, userID)
}

// ListCreatedByUser returns tenants the user created.
func (r *Repository) ListCreatedByUser(ctx context.Context, userID uuid.UUID) ([]models.Tenant, error) {
	const q = `SELECT ` + tenantColumns + ` FROM tenants WHERE created_by = $1 ORDER BY created_at DESC`
	return r.queryTenants(ctx, q, userID)
}

func (r *Repository) queryTenants(ctx context.Context, q string, args ...interface{}) ([]models.Tenant, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Tenant
	for rows.Next() {
		var t models.Tenant
		if err := rows.Scan(&t.ID, &t.PlaceName, &t.Subdomain, &t.SVGPath, &t.IsActive, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}
