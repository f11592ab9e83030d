package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mapease/backend/internal/models"
)

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, name, avatar, role, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Avatar, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// GetByID returns a user by ID, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByEmail returns a user by email, or nil when absent.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// Create inserts a new user.
func (r *Repository) Create(ctx context.Context, email, name string, avatar *string, role models.Role) (*models.User, error) {
	const q = `INSERT INTO users (email, name, avatar, role)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, q, email, name, avatar, string(role)))
}

// SyncProfile updates display metadata from the SSO authority. Empty name
// and nil avatar leave the stored values untouched. When promote is set, a
// non-platform-admin user is upgraded (allow-list match on repeat sight).
func (r *Repository) SyncProfile(ctx context.Context, id uuid.UUID, name string, avatar *string, promote bool) (*models.User, error) {
	const q = `UPDATE users SET
		name = COALESCE(NULLIF($2, ''), name),
		avatar = COALESCE($3, avatar),
		role = CASE WHEN $4 THEN 'PLATFORM_ADMIN' ELSE role END,
		updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, q, id, name, avatar, promote))
}

// UpdateName sets the display name (profile edit).
func (r *Repository) UpdateName(ctx context.Context, id uuid.UUID, name string) (*models.User, error) {
	const q = `UPDATE users SET name = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, q, id, name))
}

// SetRole updates the global role of a user.
func (r *Repository) SetRole(ctx context.Context, id uuid.UUID, role models.Role) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1`, id, string(role))
	return err
}

// SetActive soft-activates or soft-deactivates a user. Users are never
// hard-deleted.
func (r *Repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// List returns users filtered by optional role, newest first.
func (r *Repository) List(ctx context.Context, role *models.Role, limit, offset int) ([]models.User, error) {
	q := `SELECT ` + userColumns + ` FROM users`
	var args []interface{}
	if role != nil {
		q += ` WHERE role = $1`
		args = append(args, string(*role))
	}
	q += ` ORDER BY created_at DESC`
	if limit > 0 {
		args = append(args, limit, offset)
		if role != nil {
			q += ` LIMIT $2 OFFSET $3`
		} else {
			q += ` LIMIT $1 OFFSET $2`
		}
	}
	rows, err := r.pool.Query(ctx, q, args...)
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
