package domain

import (
	"time"

	"github.com/google/uuid"
)

// Session is one signed-in device. Its ID is an opaque cookie value with no embedded claims.
type Session struct {
	ID         string    `json:"id" db:"id"`
	UserID     uuid.UUID `json:"user_id" db:"user_id"`
	Device     string    `json:"device" db:"device"`
	IPAddress  string    `json:"ip_address" db:"ip_address"`
	Country    *string   `json:"country" db:"country"`
	City       *string   `json:"city" db:"city"`
	UserAgent  string    `json:"-" db:"user_agent"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	LastUsedAt time.Time `json:"last_used_at" db:"last_used_at"`
}

// RequestContext is the request provenance captured for sessions and audit entries.
type RequestContext struct {
	IP        string
	Device    string
	UserAgent string
}
