package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mapease/backend/internal/models"
)

// Repository handles event persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an events repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const eventColumns = `id, tenant_id, event_name, location_name, event_type, description,
	start_date, end_date, share_link, is_active, created_at, updated_at`

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	err := row.Scan(&e.ID, &e.TenantID, &e.EventName, &e.LocationName, &e.EventType,
		&e.Description, &e.StartDate, &e.EndDate, &e.ShareLink, &e.IsActive,
		&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// Create inserts an event. The share link is generated here so every event
// has a stable public registration URL token from birth.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	e.ShareLink = uuid.NewString()
	const q = `INSERT INTO events (tenant_id, event_name, location_name, event_type, description,
		start_date, end_date, share_link)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, is_active, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, e.TenantID, e.EventName, e.LocationName, string(e.EventType),
		e.Description, e.StartDate, e.EndDate, e.ShareLink).
		Scan(&e.ID, &e.IsActive, &e.CreatedAt, &e.UpdatedAt)
}

// GetByID returns the event scoped to a tenant, or nil.
func (r *Repository) GetByID(ctx context.Context, id, tenantID uuid.UUID) (*models.Event, error) {
	const q = `SELECT ` + eventColumns + ` FROM events WHERE id = $1 AND tenant_id = $2`
	return scanEvent(r.pool.QueryRow(ctx, q, id, tenantID))
}

// GetByShareLink returns the active event behind a share token, or nil.
func (r *Repository) GetByShareLink(ctx context.Context, shareLink string) (*models.Event, error) {
	const q = `SELECT ` + eventColumns + ` FROM events WHERE share_link = $1 AND is_active = TRUE`
	return scanEvent(r.pool.QueryRow(ctx, q, shareLink))
}

// ListByTenant returns a tenant's events, newest first. activeOnly hides
// deactivated events from public listings.
func (r *Repository) ListByTenant(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]models.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events WHERE tenant_id = $1`
	if activeOnly {
		q += ` AND is_active = TRUE`
	}
	q += ` ORDER BY start_date DESC`
	rows, err := r.pool.Query(ctx, q, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Event
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.ID, &e.TenantID, &e.EventName, &e.LocationName, &e.EventType,
			&e.Description, &e.StartDate, &e.EndDate, &e.ShareLink, &e.IsActive,
			&e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// UpdatePatch carries partial event updates; nil fields are left untouched.
type UpdatePatch struct {
	EventName    *string
	LocationName *string
	Description  *string
	StartDate    *time.Time
	EndDate      *time.Time
	IsActive     *bool
}

// Update patches mutable event fields. Nil leaves a field untouched. The
// event type is immutable after creation; registrations already created under
// one approval regime must not change regime retroactively.
func (r *Repository) Update(ctx context.Context, id, tenantID uuid.UUID, patch UpdatePatch) (*models.Event, error) {
	const q = `UPDATE events SET
		event_name = COALESCE($3, event_name),
		location_name = COALESCE($4, location_name),
		description = COALESCE($5, description),
		start_date = COALESCE($6, start_date),
		end_date = COALESCE($7, end_date),
		is_active = COALESCE($8, is_active),
		updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
		RETURNING ` + eventColumns
	return scanEvent(r.pool.QueryRow(ctx, q, id, tenantID, patch.EventName, patch.LocationName,
		patch.Description, patch.StartDate, patch.EndDate, patch.IsActive))
}

// Delete removes an event and, via cascade, its registrations.
func (r *Repository) Delete(ctx context.Context, id, tenantID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CountByTenant returns total and active event counts for the dashboard.
func (r *Repository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (total, active int, err error) {
	const q = `SELECT COUNT(*), COUNT(*) FILTER (WHERE is_active) FROM events WHERE tenant_id = $1`
	err = r.pool.QueryRow(ctx, q, tenantID).Scan(&total, &active)
	return total, active, err
}

// Count returns the number of events across all tenants.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events`).Scan(&n)
	return n, err
}
