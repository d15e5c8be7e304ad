package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/CeliaPro/ysm2-sub001/internal/domain"
	"github.com/CeliaPro/ysm2-sub001/internal/repository"
)

type sessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new PostgreSQL session repository
func NewSessionRepository(db *sqlx.DB) repository.SessionRepository {
	return &sessionRepository{db: db}
}

// Create inserts a new session into the database
func (r *sessionRepository) Create(ctx context.Context, session *domain.Session) error {
	query := `
		INSERT INTO sessions (
			id, user_id, device, ip_address, country, city,
			user_agent, created_at, last_used_at
		) VALUES (
			:id, :user_id, :device, :ip_address, :country, :city,
			:user_agent, :created_at, :last_used_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetByID retrieves a session by its ID
func (r *sessionRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	query := `
		SELECT id, user_id, device, ip_address, country, city,
			   user_agent, created_at, last_used_at
		FROM sessions
		WHERE id = $1`

	var session domain.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, notFound(err, "session")
	}
	return &session, nil
}

// ListByUserID returns the user's sessions, most recently used first
func (r *sessionRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Session, error) {
	query := `
		SELECT id, user_id, device, ip_address, country, city,
			   user_agent, created_at, last_used_at
		FROM sessions
		WHERE user_id = $1
		ORDER BY last_used_at DESC`

	sessions := []*domain.Session{}
	if err := r.db.SelectContext(ctx, &sessions, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get sessions by user id: %w", err)
	}
	return sessions, nil
}

// Touch only moves last_used_at for the owning user. The owner is returned
// either way so the caller can reject a foreign session.
func (r *sessionRepository) Touch(ctx context.Context, id string, userID uuid.UUID, at time.Time) (uuid.UUID, bool, error) {
	query := `
		UPDATE sessions
		SET last_used_at = CASE WHEN user_id = $2 THEN $3 ELSE last_used_at END
		WHERE id = $1
		RETURNING user_id`

	var owner uuid.UUID
	err := r.db.GetContext(ctx, &owner, query, id, userID, at)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to touch session: %w", err)
	}
	return owner, true, nil
}

// DeleteOwned removes the session only when userID owns it
func (r *sessionRepository) DeleteOwned(ctx context.Context, id string, userID uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// DeleteByUserID removes every session of the user and reports how many went
func (r *sessionRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete user sessions: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}
