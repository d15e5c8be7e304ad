package domain

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Claims struct {
	jwt.RegisteredClaims
	UserID uuid.UUID `json:"uid"`
	Email  string    `json:"email"`
	Role   Role      `json:"role"`
}

// Principal returns the identity carried by the claims.
func (c *Claims) Principal() Principal {
	return Principal{ID: c.UserID, Email: c.Email, Role: c.Role}
}
