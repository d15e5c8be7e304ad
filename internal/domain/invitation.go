package domain

import (
	"time"

	"github.com/google/uuid"
)

// Invite permits exactly one registration for Email.
type Invite struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	TokenHash string     `json:"-" db:"token_hash"` // SHA-256 hash, never expose
	Email     string     `json:"email" db:"email"`
	InvitedBy uuid.UUID  `json:"invited_by" db:"invited_by"`
	Role      Role       `json:"role" db:"role"`
	ExpiresAt time.Time  `json:"expires_at" db:"expires_at"`
	Used      bool       `json:"used" db:"used"`
	UsedAt    *time.Time `json:"used_at,omitempty" db:"used_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// IsValid checks if the invite can still be redeemed at now.
func (i *Invite) IsValid(now time.Time) bool {
	return !i.Used && now.Before(i.ExpiresAt)
}

// PasswordReset is a single-use password reset grant.
type PasswordReset struct {
	ID        uuid.UUID  `db:"id"`
	UserID    uuid.UUID  `db:"user_id"`
	TokenHash string     `db:"token_hash"`
	ExpiresAt time.Time  `db:"expires_at"`
	UsedAt    *time.Time `db:"used_at"`
	CreatedAt time.Time  `db:"created_at"`
}
