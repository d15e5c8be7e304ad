package domain

import (
	"time"

	"github.com/google/uuid"
)

type ResourceStatus string

const (
	ResourceActive   ResourceStatus = "active"
	ResourceArchived ResourceStatus = "archived"
)

type Project struct {
	ID          uuid.UUID      `json:"id" db:"id"`
	Name        string         `json:"name" db:"name"`
	Description string         `json:"description" db:"description"`
	OwnerID     uuid.UUID      `json:"owner_id" db:"owner_id"`
	Status      ResourceStatus `json:"status" db:"status"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

type ProjectMember struct {
	ProjectID uuid.UUID `json:"project_id" db:"project_id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"name" db:"name"`
	AddedAt   time.Time `json:"added_at" db:"added_at"`
}
