package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/CeliaPro/ysm2-sub001/internal/domain"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, limit, offset int, search string) ([]*domain.User, int, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role domain.Role) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.UserStatus) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	SetTwoFactor(ctx context.Context, id uuid.UUID, secret *string, enabled bool) error
}
