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

type inviteRepository struct {
	db *sqlx.DB
}

// NewInviteRepository creates a new PostgreSQL invite repository
func NewInviteRepository(db *sqlx.DB) repository.InviteRepository {
	return &inviteRepository{db: db}
}

// Create inserts a new invite into the database
func (r *inviteRepository) Create(ctx context.Context, invite *domain.Invite) error {
	query := `
		INSERT INTO invites (
			id, token_hash, email, invited_by, role, expires_at, used, created_at
		) VALUES (
			:id, :token_hash, :email, :invited_by, :role, :expires_at, :used, :created_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, invite); err != nil {
		return fmt.Errorf("failed to create invite: %w", err)
	}
	return nil
}

// GetByTokenHash retrieves an invite by its token hash
func (r *inviteRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Invite, error) {
	query := `
		SELECT id, token_hash, email, invited_by, role, expires_at, used, used_at, created_at
		FROM invites
		WHERE token_hash = $1`

	var invite domain.Invite
	if err := r.db.GetContext(ctx, &invite, query, tokenHash); err != nil {
		return nil, notFound(err, "invite")
	}
	return &invite, nil
}

func (r *inviteRepository) List(ctx context.Context, limit, offset int) ([]*domain.Invite, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM invites`); err != nil {
		return nil, 0, fmt.Errorf("failed to count invites: %w", err)
	}

	query := `
		SELECT id, token_hash, email, invited_by, role, expires_at, used, used_at, created_at
		FROM invites
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	invites := []*domain.Invite{}
	if err := r.db.SelectContext(ctx, &invites, query, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list invites: %w", err)
	}
	return invites, total, nil
}

// Redeem consumes the invite and creates the user in one transaction. The
// conditional update makes a second redemption fail even under concurrency.
func (r *inviteRepository) Redeem(ctx context.Context, inviteID uuid.UUID, user *domain.User) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		UPDATE invites
		SET used = true, used_at = $2
		WHERE id = $1 AND used = false AND expires_at > $2`, inviteID, now)
	if err != nil {
		return fmt.Errorf("failed to mark invite used: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errs.E(errs.Conflict, "invalid or expired invite")
	}

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO users (
			id, email, name, role, password_hash, two_factor_secret, two_factor_enabled,
			status, created_at, updated_at
		) VALUES (
			:id, :email, :name, :role, :password_hash, :two_factor_secret, :two_factor_enabled,
			:status, :created_at, :updated_at
		)`, user)
	if err != nil {
		if isUniqueViolation(err) {
			return errs.E(errs.Conflict, "email already registered", err)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit registration: %w", err)
	}
	return nil
}

type passwordResetRepository struct {
	db *sqlx.DB
}

// NewPasswordResetRepository creates a new PostgreSQL password reset repository
func NewPasswordResetRepository(db *sqlx.DB) repository.PasswordResetRepository {
	return &passwordResetRepository{db: db}
}

func (r *passwordResetRepository) Create(ctx context.Context, reset *domain.PasswordReset) error {
	query := `
		INSERT INTO password_resets (id, user_id, token_hash, expires_at, created_at)
		VALUES (:id, :user_id, :token_hash, :expires_at, :created_at)`

	if _, err := r.db.NamedExecContext(ctx, query, reset); err != nil {
		return fmt.Errorf("failed to create password reset: %w", err)
	}
	return nil
}

func (r *passwordResetRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.PasswordReset, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, used_at, created_at
		FROM password_resets
		WHERE token_hash = $1`

	var reset domain.PasswordReset
	if err := r.db.GetContext(ctx, &reset, query, tokenHash); err != nil {
		return nil, notFound(err, "password reset")
	}
	return &reset, nil
}

func (r *passwordResetRepository) MarkUsed(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE password_resets SET used_at = $2 WHERE id = $1 AND used_at IS NULL`, id, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to mark password reset used: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}
