package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/CeliaPro/ysm2-sub001/internal/domain"
)

type ProjectRepository interface {
	Create(ctx context.Context, project *domain.Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error)
	// List returns projects visible to viewer (owned or joined). A nil viewer lists all.
	List(ctx context.Context, viewer *uuid.UUID, limit, offset int) ([]*domain.Project, error)
	Update(ctx context.Context, project *domain.Project) error
	Delete(ctx context.Context, id uuid.UUID) error
	AddMember(ctx context.Context, projectID, userID uuid.UUID) error
	RemoveMember(ctx context.Context, projectID, userID uuid.UUID) error
	ListMembers(ctx context.Context, projectID uuid.UUID) ([]*domain.ProjectMember, error)
	IsMember(ctx context.Context, projectID, userID uuid.UUID) (bool, error)
}
