package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/CeliaPro/ysm2-sub001/internal/domain"
	"github.com/CeliaPro/ysm2-sub001/internal/service"
	"github.com/CeliaPro/ysm2-sub001/pkg/validator"
)

type UserHandler struct {
	userService *service.UserService
	validator   *validator.Validator
}

func NewUserHandler(userService *service.UserService, validator *validator.Validator) *UserHandler {
	return &UserHandler{userService: userService, validator: validator}
}

// List returns users, optionally filtered by ?search=
// GET /api/v1/admin/users
func (h *UserHandler) List(c *fiber.Ctx, _ domain.Principal) error {
	limit, offset := paging(c)
	users, total, err := h.userService.ListUsers(c.UserContext(), limit, offset, c.Query("search"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"users": users, "total": total})
}

// ChangeRole sets a user's role
// PUT /api/v1/admin/users/:id/role
func (h *UserHandler) ChangeRole(c *fiber.Ctx, p domain.Principal) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req service.ChangeRoleRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}

	user, err := h.userService.ChangeRole(c.UserContext(), p, id, req.Role, requestContext(c))
	if err != nil {
		return err
	}
	return c.JSON(user)
}

// Disable soft-deletes a user
// DELETE /api/v1/admin/users/:id
func (h *UserHandler) Disable(c *fiber.Ctx, p domain.Principal) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.userService.DisableUser(c.UserContext(), p, id, requestContext(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
