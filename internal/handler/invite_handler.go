package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/CeliaPro/ysm2-sub001/internal/domain"
	"github.com/CeliaPro/ysm2-sub001/internal/service"
	"github.com/CeliaPro/ysm2-sub001/pkg/validator"
)

type InviteHandler struct {
	inviteService *service.InviteService
	validator     *validator.Validator
}

func NewInviteHandler(inviteService *service.InviteService, validator *validator.Validator) *InviteHandler {
	return &InviteHandler{inviteService: inviteService, validator: validator}
}

// Create invites a new user by email
// POST /api/v1/admin/invites
func (h *InviteHandler) Create(c *fiber.Ctx, p domain.Principal) error {
	var req service.CreateInviteRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}

	created, err := h.inviteService.CreateInvite(c.UserContext(), p, req, requestContext(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// List returns invites newest first
// GET /api/v1/admin/invites
func (h *InviteHandler) List(c *fiber.Ctx, _ domain.Principal) error {
	limit, offset := paging(c)
	invites, total, err := h.inviteService.ListInvites(c.UserContext(), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"invites": invites, "total": total})
}

// Validate lets the registration page check a token before showing the form
// GET /api/v1/auth/invites/:token
func (h *InviteHandler) Validate(c *fiber.Ctx) error {
	invite, err := h.inviteService.ValidateInvite(c.UserContext(), c.Params("token"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"email":      invite.Email,
		"role":       invite.Role,
		"expires_at": invite.ExpiresAt,
	})
}

// Register redeems an invite
// POST /api/v1/auth/register
func (h *InviteHandler) Register(c *fiber.Ctx) error {
	var req service.RegisterRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}

	user, err := h.inviteService.Register(c.UserContext(), req, requestContext(c))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}
