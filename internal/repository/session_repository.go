package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/CeliaPro/ysm2-sub001/internal/domain"
)

type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Session, error)
	// Touch stamps last_used_at when the session belongs to userID and
	// returns the owner it found. found is false when no row has that id.
	Touch(ctx context.Context, id string, userID uuid.UUID, at time.Time) (owner uuid.UUID, found bool, err error)
	// DeleteOwned removes the session only if userID owns it.
	DeleteOwned(ctx context.Context, id string, userID uuid.UUID) (bool, error)
	DeleteByUserID(ctx context.Context, userID uuid.UUID) (int64, error)
}
