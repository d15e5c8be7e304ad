package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/CeliaPro/ysm2-sub001/internal/domain"
)

type InviteRepository interface {
	Create(ctx context.Context, invite *domain.Invite) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Invite, error)
	List(ctx context.Context, limit, offset int) ([]*domain.Invite, int, error)
	// Redeem marks the invite used and creates user atomically. It fails with
	// a Conflict error when the invite was already used or has expired, or
	// when the email is taken.
	Redeem(ctx context.Context, inviteID uuid.UUID, user *domain.User) error
}

type PasswordResetRepository interface {
	Create(ctx context.Context, reset *domain.PasswordReset) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.PasswordReset, error)
	// MarkUsed consumes the reset. It returns false if it was already used.
	MarkUsed(ctx context.Context, id uuid.UUID) (bool, error)
}
