package registrations

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mapease/backend/internal/models"
)

// Repository is the PostgreSQL implementation of Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a registrations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const regColumns = `id, event_id, user_id, name, email, phone, status, qr_code, scanned, scanned_at, created_at, updated_at`

func scanRegistration(row pgx.Row) (*models.Registration, error) {
	var reg models.Registration
	err := row.Scan(&reg.ID, &reg.EventID, &reg.UserID, &reg.Name, &reg.Email, &reg.Phone,
		&reg.Status, &reg.QRCode, &reg.Scanned, &reg.ScannedAt, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &reg, nil
}

// ActiveEvent returns the active event within the tenant, or nil.
func (r *Repository) ActiveEvent(ctx context.Context, eventID, tenantID uuid.UUID) (*models.Event, error) {
	const q = `SELECT id, tenant_id, event_name, location_name, event_type, description,
		start_date, end_date, share_link, is_active, created_at, updated_at
		FROM events WHERE id = $1 AND tenant_id = $2 AND is_active = TRUE`
	var e models.Event
	err := r.pool.QueryRow(ctx, q, eventID, tenantID).Scan(&e.ID, &e.TenantID, &e.EventName,
		&e.LocationName, &e.EventType, &e.Description, &e.StartDate, &e.EndDate, &e.ShareLink,
		&e.IsActive, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// ByEventAndEmail returns the registration for (event, email), or nil.
func (r *Repository) ByEventAndEmail(ctx context.Context, eventID uuid.UUID, email string) (*models.Registration, error) {
	const q = `SELECT ` + regColumns + ` FROM event_users WHERE event_id = $1 AND email = $2`
	return scanRegistration(r.pool.QueryRow(ctx, q, eventID, email))
}

// ByID returns the registration scoped to the tenant's event, or nil.
func (r *Repository) ByID(ctx context.Context, id, eventID, tenantID uuid.UUID) (*models.Registration, error) {
	const q = `SELECT eu.id, eu.event_id, eu.user_id, eu.name, eu.email, eu.phone, eu.status,
		eu.qr_code, eu.scanned, eu.scanned_at, eu.created_at, eu.updated_at
		FROM event_users eu
		INNER JOIN events e ON e.id = eu.event_id
		WHERE eu.id = $1 AND eu.event_id = $2 AND e.tenant_id = $3`
	return scanRegistration(r.pool.QueryRow(ctx, q, id, eventID, tenantID))
}

// Insert creates a PENDING registration, or ErrDuplicateKey on the
// (event, email) unique constraint.
func (r *Repository) Insert(ctx context.Context, reg *models.Registration) error {
	const q = `INSERT INTO event_users (event_id, user_id, name, email, phone)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, status, scanned, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, reg.EventID, reg.UserID, reg.Name, reg.Email, reg.Phone).
		Scan(&reg.ID, &reg.Status, &reg.Scanned, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateKey
		}
		return err
	}
	return nil
}

// MarkApproved flips PENDING to APPROVED in one conditional update.
func (r *Repository) MarkApproved(ctx context.Context, id uuid.UUID) (bool, error) {
	const q = `UPDATE event_users SET status = 'APPROVED', updated_at = NOW()
		WHERE id = $1 AND status = 'PENDING'`
	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkRejected flips PENDING to REJECTED in one conditional update.
func (r *Repository) MarkRejected(ctx context.Context, id uuid.UUID) (bool, error) {
	const q = `UPDATE event_users SET status = 'REJECTED', updated_at = NOW()
		WHERE id = $1 AND status = 'PENDING'`
	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SetCredentialIfEmpty persists the credential unless one is already stored.
func (r *Repository) SetCredentialIfEmpty(ctx context.Context, id uuid.UUID, value string) (bool, error) {
	const q = `UPDATE event_users SET qr_code = $2, updated_at = NOW()
		WHERE id = $1 AND qr_code IS NULL`
	tag, err := r.pool.Exec(ctx, q, id, value)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ApprovedByCredential returns the APPROVED registration holding the
// credential within the event, or nil.
func (r *Repository) ApprovedByCredential(ctx context.Context, eventID uuid.UUID, value string) (*models.Registration, error) {
	const q = `SELECT ` + regColumns + ` FROM event_users
		WHERE event_id = $1 AND qr_code = $2 AND status = 'APPROVED'`
	return scanRegistration(r.pool.QueryRow(ctx, q, eventID, value))
}

// Consume flips scanned false to true atomically. A lost race returns the
// winner's timestamp.
func (r *Repository) Consume(ctx context.Context, id uuid.UUID) (time.Time, bool, error) {
	const q = `UPDATE event_users SET scanned = TRUE, scanned_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND scanned = FALSE
		RETURNING scanned_at`
	var scannedAt time.Time
	err := r.pool.QueryRow(ctx, q, id).Scan(&scannedAt)
	if err == nil {
		return scannedAt, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, err
	}
	// Already consumed; report the original timestamp.
	var existing *time.Time
	if err := r.pool.QueryRow(ctx, `SELECT scanned_at FROM event_users WHERE id = $1`, id).Scan(&existing); err != nil {
		return time.Time{}, false, err
	}
	if existing == nil {
		return time.Time{}, false, errors.New("registration consumed without timestamp")
	}
	return *existing, false, nil
}

// ListByEvent returns registrations for an event, optionally filtered by
// status, newest first.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID, status *models.RegistrationStatus, limit, offset int) ([]models.Registration, int, error) {
	countQ := `SELECT COUNT(*) FROM event_users WHERE event_id = $1`
	listQ := `SELECT ` + regColumns + ` FROM event_users WHERE event_id = $1`
	args := []interface{}{eventID}
	if status != nil {
		countQ += ` AND status = $2`
		listQ += ` AND status = $2`
		args = append(args, string(*status))
	}
	var total int
	if err := r.pool.QueryRow(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	n := len(args)
	listQ += ` ORDER BY created_at DESC`
	if limit > 0 {
		listQ += ` LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
		args = append(args, limit, offset)
	}
	rows, err := r.pool.Query(ctx, listQ, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var list []models.Registration
	for rows.Next() {
		var reg models.Registration
		if err := rows.Scan(&reg.ID, &reg.EventID, &reg.UserID, &reg.Name, &reg.Email, &reg.Phone,
			&reg.Status, &reg.QRCode, &reg.Scanned, &reg.ScannedAt, &reg.CreatedAt, &reg.UpdatedAt); err != nil {
			return nil, 0, err
		}
		list = append(list, reg)
	}
	return list, total, rows.Err()
}

// ListByUser returns registrations linked to a principal, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Registration, error) {
	const q = `SELECT ` + regColumns + ` FROM event_users WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Registration
	for rows.Next() {
		var reg models.Registration
		if err := rows.Scan(&reg.ID, &reg.EventID, &reg.UserID, &reg.Name, &reg.Email, &reg.Phone,
			&reg.Status, &reg.QRCode, &reg.Scanned, &reg.ScannedAt, &reg.CreatedAt, &reg.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, reg)
	}
	return list, rows.Err()
}

// CountByTenant returns total and pending registrations across a tenant's
// events, for the dashboard.
func (r *Repository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (total, pending int, err error) {
	const q = `SELECT COUNT(*), COUNT(*) FILTER (WHERE eu.status = 'PENDING')
		FROM event_users eu
		INNER JOIN events e ON e.id = eu.event_id
		WHERE e.tenant_id = $1`
	err = r.pool.QueryRow(ctx, q, tenantID).Scan(&total, &pending)
	return total, pending, err
}
