package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CeliaPro/ysm2-sub001/internal/domain"
	"github.com/CeliaPro/ysm2-sub001/internal/errs"
	"github.com/CeliaPro/ysm2-sub001/internal/repository"
)

type ProjectService struct {
	repo     repository.ProjectRepository
	userRepo repository.UserRepository
	recorder *ActivityRecorder
	logger   *zap.Logger
	now      clock
}

type ProjectRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

type AddMemberRequest struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
}

func NewProjectService(
	repo repository.ProjectRepository,
	userRepo repository.UserRepository,
	recorder *ActivityRecorder,
	logger *zap.Logger,
) *ProjectService {
	return &ProjectService{repo: repo, userRepo: userRepo, recorder: recorder, logger: logger, now: utcNow}
}

func (s *ProjectService) Create(ctx context.Context, p domain.Principal, req ProjectRequest, rc domain.RequestContext) (*domain.Project, error) {
	now := s.now()
	project := &domain.Project{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		OwnerID:     p.ID,
		Status:      domain.ResourceActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, project); err != nil {
		return nil, err
	}

	s.recorder.Success(ctx, p.ID, domain.ActionCreateProject, "created project "+project.Name, rc)
	return project, nil
}

// List returns every project for admins and owned or joined projects otherwise.
func (s *ProjectService) List(ctx context.Context, p domain.Principal, limit, offset int) ([]*domain.Project, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.List(ctx, viewerOf(p), limit, offset)
}

// Get returns the project if p can see it. Invisible projects are NotFound.
func (s *ProjectService) Get(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.Project, error) {
	project, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.canView(ctx, p, project)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.E(errs.NotFound, "project not found")
	}
	return project, nil
}

func (s *ProjectService) Update(ctx context.Context, p domain.Principal, id uuid.UUID, req ProjectRequest, rc domain.RequestContext) (*domain.Project, error) {
	project, err := s.manageable(ctx, p, id, domain.ActionUpdateProject, rc)
	if err != nil {
		return nil, err
	}

	project.Name = strings.TrimSpace(req.Name)
	project.Description = req.Description
	project.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, project); err != nil {
		return nil, err
	}

	s.recorder.Success(ctx, p.ID, domain.ActionUpdateProject, "updated project "+project.Name, rc)
	return project, nil
}

func (s *ProjectService) Archive(ctx context.Context, p domain.Principal, id uuid.UUID, rc domain.RequestContext) (*domain.Project, error) {
	project, err := s.manageable(ctx, p, id, domain.ActionArchiveProject, rc)
	if err != nil {
		return nil, err
	}
	if project.Status == domain.ResourceArchived {
		return project, nil
	}

	project.Status = domain.ResourceArchived
	project.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, project); err != nil {
		return nil, err
	}

	s.recorder.Success(ctx, p.ID, domain.ActionArchiveProject, "archived project "+project.Name, rc)
	return project, nil
}

// Delete removes a project. Routing restricts it to admins.
func (s *ProjectService) Delete(ctx context.Context, p domain.Principal, id uuid.UUID, rc domain.RequestContext) error {
	project, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.recorder.Success(ctx, p.ID, domain.ActionDeleteProject, "deleted project "+project.Name, rc)
	return nil
}

func (s *ProjectService) AddMember(ctx context.Context, p domain.Principal, projectID, userID uuid.UUID, rc domain.RequestContext) error {
	project, err := s.manageable(ctx, p, projectID, domain.ActionAddProjectMember, rc)
	if err != nil {
		return err
	}

	member, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !member.IsActive() {
		return errs.E(errs.Validation, "user is disabled")
	}
	if err := s.repo.AddMember(ctx, projectID, userID); err != nil {
		return err
	}

	s.recorder.Success(ctx, p.ID, domain.ActionAddProjectMember,
		fmt.Sprintf("added %s to project %s", member.Email, project.Name), rc)
	return nil
}

func (s *ProjectService) RemoveMember(ctx context.Context, p domain.Principal, projectID, userID uuid.UUID, rc domain.RequestContext) error {
	project, err := s.manageable(ctx, p, projectID, domain.ActionRemoveProjectMember, rc)
	if err != nil {
		return err
	}
	if err := s.repo.RemoveMember(ctx, projectID, userID); err != nil {
		return err
	}

	s.recorder.Success(ctx, p.ID, domain.ActionRemoveProjectMember,
		fmt.Sprintf("removed %s from project %s", userID, project.Name), rc)
	return nil
}

func (s *ProjectService) ListMembers(ctx context.Context, p domain.Principal, projectID uuid.UUID) ([]*domain.ProjectMember, error) {
	if _, err := s.Get(ctx, p, projectID); err != nil {
		return nil, err
	}
	return s.repo.ListMembers(ctx, projectID)
}

// manageable loads a project that p may modify: owners and admins only.
// A refusal is recorded against action.
func (s *ProjectService) manageable(ctx context.Context, p domain.Principal, id uuid.UUID, action domain.ProjectAction, rc domain.RequestContext) (*domain.Project, error) {
	project, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if project.OwnerID != p.ID && !p.Role.AtLeast(domain.RoleAdmin) {
		s.recorder.Failure(ctx, p.ID, action, "not the owner of project "+project.Name, rc)
		return nil, errs.E(errs.Forbidden, "only the project owner can change this project")
	}
	return project, nil
}

func (s *ProjectService) canView(ctx context.Context, p domain.Principal, project *domain.Project) (bool, error) {
	if p.Role.AtLeast(domain.RoleAdmin) || project.OwnerID == p.ID {
		return true, nil
	}
	return s.repo.IsMember(ctx, project.ID, p.ID)
}

// viewerOf scopes listings: nil means unrestricted.
func viewerOf(p domain.Principal) *uuid.UUID {
	if p.Role.AtLeast(domain.RoleAdmin) {
		return nil
	}
	id := p.ID
	return &id
}
