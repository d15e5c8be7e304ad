package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/CeliaPro/ysm2-sub001/internal/domain"
	"github.com/CeliaPro/ysm2-sub001/internal/errs"
	"github.com/CeliaPro/ysm2-sub001/internal/repository"
)

type projectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository creates a new PostgreSQL project repository
func NewProjectRepository(db *sqlx.DB) repository.ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) Create(ctx context.Context, project *domain.Project) error {
	query := `
		INSERT INTO projects (id, name, description, owner_id, status, created_at, updated_at)
		VALUES (:id, :name, :description, :owner_id, :status, :created_at, :updated_at)`

	if _, err := r.db.NamedExecContext(ctx, query, project); err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

func (r *projectRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	query := `
		SELECT id, name, description, owner_id, status, created_at, updated_at
		FROM projects
		WHERE id = $1`

	var project domain.Project
	if err := r.db.GetContext(ctx, &project, query, id); err != nil {
		return nil, notFound(err, "project")
	}
	return &project, nil
}

func (r *projectRepository) List(ctx context.Context, viewer *uuid.UUID, limit, offset int) ([]*domain.Project, error) {
	projects := []*domain.Project{}

	if viewer == nil {
		query := `
			SELECT id, name, description, owner_id, status, created_at, updated_at
			FROM projects
			ORDER BY updated_at DESC
			LIMIT $1 OFFSET $2`
		if err := r.db.SelectContext(ctx, &projects, query, limit, offset); err != nil {
			return nil, fmt.Errorf("failed to list projects: %w", err)
		}
		return projects, nil
	}

	query := `
		SELECT p.id, p.name, p.description, p.owner_id, p.status, p.created_at, p.updated_at
		FROM projects p
		WHERE p.owner_id = $1
		   OR EXISTS (SELECT 1 FROM project_members m WHERE m.project_id = p.id AND m.user_id = $1)
		ORDER BY p.updated_at DESC
		LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &projects, query, *viewer, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

func (r *projectRepository) Update(ctx context.Context, project *domain.Project) error {
	query := `
		UPDATE projects
		SET name = :name,
			description = :description,
			status = :status,
			updated_at = :updated_at
		WHERE id = :id`

	res, err := r.db.NamedExecContext(ctx, query, project)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	return requireRows(res, "project")
}

func (r *projectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return requireRows(res, "project")
}

func (r *projectRepository) AddMember(ctx context.Context, projectID, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO project_members (project_id, user_id, added_at) VALUES ($1, $2, now())`, projectID, userID)
	if err != nil {
		if isUniqueViolation(err) {
			return errs.E(errs.Conflict, "user is already a member", err)
		}
		return fmt.Errorf("failed to add project member: %w", err)
	}
	return nil
}

func (r *projectRepository) RemoveMember(ctx context.Context, projectID, userID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM project_members WHERE project_id = $1 AND user_id = $2`, projectID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove project member: %w", err)
	}
	return requireRows(res, "project member")
}

func (r *projectRepository) ListMembers(ctx context.Context, projectID uuid.UUID) ([]*domain.ProjectMember, error) {
	query := `
		SELECT m.project_id, m.user_id, u.email, u.name, m.added_at
		FROM project_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.project_id = $1
		ORDER BY m.added_at`

	members := []*domain.ProjectMember{}
	if err := r.db.SelectContext(ctx, &members, query, projectID); err != nil {
		return nil, fmt.Errorf("failed to list project members: %w", err)
	}
	return members, nil
}

func (r *projectRepository) IsMember(ctx context.Context, projectID, userID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM projects WHERE id = $1 AND owner_id = $2
			UNION ALL
			SELECT 1 FROM project_members WHERE project_id = $1 AND user_id = $2
		)`

	var ok bool
	if err := r.db.GetContext(ctx, &ok, query, projectID, userID); err != nil {
		return false, fmt.Errorf("failed to check project membership: %w", err)
	}
	return ok, nil
}
