package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/CeliaPro/ysm2-sub001/internal/domain"
)

type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error)
	// List returns documents visible to viewer. A nil viewer lists all.
	List(ctx context.Context, viewer *uuid.UUID, filter domain.DocumentFilter) ([]*domain.Document, error)
	Update(ctx context.Context, doc *domain.Document) error
	Delete(ctx context.Context, id uuid.UUID) error
}
