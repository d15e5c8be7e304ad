package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/CeliaPro/ysm2-sub001/internal/domain"
	"github.com/CeliaPro/ysm2-sub001/internal/errs"
	"github.com/CeliaPro/ysm2-sub001/internal/repository"
)

const userColumns = `id, email, name, role, password_hash, two_factor_secret, two_factor_enabled,
		status, created_at, updated_at, last_login_at`

type userRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new PostgreSQL user repository
func NewUserRepository(db *sqlx.DB) repository.UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (
			id, email, name, role, password_hash, two_factor_secret, two_factor_enabled,
			status, created_at, updated_at
		) VALUES (
			:id, :email, :name, :role, :password_hash, :two_factor_secret, :two_factor_enabled,
			:status, :created_at, :updated_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		if isUniqueViolation(err) {
			return errs.E(errs.Conflict, "email already registered", err)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var user domain.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}

// GetByEmail matches case-insensitively.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`

	var user domain.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		return nil, notFound(err, "user")
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context, limit, offset int, search string) ([]*domain.User, int, error) {
	var total int
	users := []*domain.User{}

	where := ` WHERE ($1 = '' OR email ILIKE '%' || $1 || '%' OR name ILIKE '%' || $1 || '%')`

	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users`+where, search); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	query := `SELECT ` + userColumns + ` FROM users` + where + ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &users, query, search, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}

	return users, total, nil
}

func (r *userRepository) UpdateRole(ctx context.Context, id uuid.UUID, role domain.Role) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET role = $2, updated_at = $3 WHERE id = $1`, id, role, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update user role: %w", err)
	}
	return requireRows(res, "user")
}

func (r *userRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.UserStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET status = $2, updated_at = $3 WHERE id = $1`, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update user status: %w", err)
	}
	return requireRows(res, "user")
}

func (r *userRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`, id, passwordHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return requireRows(res, "user")
}

func (r *userRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// SetTwoFactor stores the TOTP secret and flag together so a pending secret
// is never marked enabled by accident.
func (r *userRepository) SetTwoFactor(ctx context.Context, id uuid.UUID, secret *string, enabled bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET two_factor_secret = $2, two_factor_enabled = $3, updated_at = $4
		WHERE id = $1`, id, secret, enabled, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update two-factor settings: %w", err)
	}
	return requireRows(res, "user")
}
