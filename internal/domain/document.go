package domain

import (
	"time"

	"github.com/google/uuid"
)

type Document struct {
	ID          uuid.UUID      `json:"id" db:"id"`
	ProjectID   *uuid.UUID     `json:"project_id,omitempty" db:"project_id"`
	OwnerID     uuid.UUID      `json:"owner_id" db:"owner_id"`
	Title       string         `json:"title" db:"title"`
	Description string         `json:"description" db:"description"`
	StorageKey  *string        `json:"storage_key,omitempty" db:"storage_key"`
	ContentType *string        `json:"content_type,omitempty" db:"content_type"`
	SizeBytes   int64          `json:"size_bytes" db:"size_bytes"`
	Status      ResourceStatus `json:"status" db:"status"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
	ArchivedAt  *time.Time     `json:"archived_at,omitempty" db:"archived_at"`
}

// DocumentFilter narrows document listings.
type DocumentFilter struct {
	ProjectID       *uuid.UUID
	IncludeArchived bool
	Limit           int
	Offset          int
}
