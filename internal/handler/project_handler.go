package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/CeliaPro/ysm2-sub001/internal/domain"
	"github.com/CeliaPro/ysm2-sub001/internal/service"
	"github.com/CeliaPro/ysm2-sub001/pkg/validator"
)

type ProjectHandler struct {
	projectService *service.ProjectService
	validator      *validator.Validator
}

func NewProjectHandler(projectService *service.ProjectService, validator *validator.Validator) *ProjectHandler {
	return &ProjectHandler{projectService: projectService, validator: validator}
}

// GET /api/v1/projects
func (h *ProjectHandler) List(c *fiber.Ctx, p domain.Principal) error {
	limit, offset := paging(c)
	projects, err := h.projectService.List(c.UserContext(), p, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"projects": projects})
}

// POST /api/v1/projects
func (h *ProjectHandler) Create(c *fiber.Ctx, p domain.Principal) error {
	var req service.ProjectRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}
	project, err := h.projectService.Create(c.UserContext(), p, req, requestContext(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(project)
}

// GET /api/v1/projects/:id
func (h *ProjectHandler) Get(c *fiber.Ctx, p domain.Principal) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	project, err := h.projectService.Get(c.UserContext(), p, id)
	if err != nil {
		return err
	}
	return c.JSON(project)
}

// PUT /api/v1/projects/:id
func (h *ProjectHandler) Update(c *fiber.Ctx, p domain.Principal) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req service.ProjectRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}
	project, err := h.projectService.Update(c.UserContext(), p, id, req, requestContext(c))
	if err != nil {
		return err
	}
	return c.JSON(project)
}

// POST /api/v1/projects/:id/archive
func (h *ProjectHandler) Archive(c *fiber.Ctx, p domain.Principal) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	project, err := h.projectService.Archive(c.UserContext(), p, id, requestContext(c))
	if err != nil {
		return err
	}
	return c.JSON(project)
}

// DELETE /api/v1/projects/:id
func (h *ProjectHandler) Delete(c *fiber.Ctx, p domain.Principal) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.projectService.Delete(c.UserContext(), p, id, requestContext(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GET /api/v1/projects/:id/members
func (h *ProjectHandler) Members(c *fiber.Ctx, p domain.Principal) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	members, err := h.projectService.ListMembers(c.UserContext(), p, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"members": members})
}

// POST /api/v1/projects/:id/members
func (h *ProjectHandler) AddMember(c *fiber.Ctx, p domain.Principal) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req service.AddMemberRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}
	if err := h.projectService.AddMember(c.UserContext(), p, id, req.UserID, requestContext(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// DELETE /api/v1/projects/:id/members/:userId
func (h *ProjectHandler) RemoveMember(c *fiber.Ctx, p domain.Principal) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	userID, err := paramUUID(c, "userId")
	if err != nil {
		return err
	}
	if err := h.projectService.RemoveMember(c.UserContext(), p, id, userID, requestContext(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
