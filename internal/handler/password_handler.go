package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/CeliaPro/ysm2-sub001/internal/domain"
	"github.com/CeliaPro/ysm2-sub001/internal/errs"
	"github.com/CeliaPro/ysm2-sub001/internal/handler/middleware"
	"github.com/CeliaPro/ysm2-sub001/internal/service"
	"github.com/CeliaPro/ysm2-sub001/pkg/validator"
)

type PasswordHandler struct {
	authService *service.AuthService
	userService *service.UserService
	validator   *validator.Validator
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=128"`
}

func NewPasswordHandler(authService *service.AuthService, userService *service.UserService, validator *validator.Validator) *PasswordHandler {
	return &PasswordHandler{
		authService: authService,
		userService: userService,
		validator:   validator,
	}
}

// ChangePassword handles password change requests
// PUT /api/v1/auth/password
func (h *PasswordHandler) ChangePassword(c *fiber.Ctx, p domain.Principal) error {
	var req ChangePasswordRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}
	if req.OldPassword == req.NewPassword {
		return errs.E(errs.Validation, "new password must be different from old password")
	}

	err := h.authService.ChangePassword(c.UserContext(), p, req.OldPassword, req.NewPassword,
		c.Cookies(middleware.SessionCookie), requestContext(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "password changed, other sessions have been closed"})
}

// ForgotPassword always answers the same way, whether or not the email exists
// POST /api/v1/auth/password/forgot
func (h *PasswordHandler) ForgotPassword(c *fiber.Ctx) error {
	var req service.ForgotPasswordRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}
	if err := h.userService.RequestPasswordReset(c.UserContext(), req.Email, requestContext(c)); err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "if the email is registered, a reset link has been sent",
	})
}

// ResetPassword consumes a reset token
// POST /api/v1/auth/password/reset
func (h *PasswordHandler) ResetPassword(c *fiber.Ctx) error {
	var req service.ResetPasswordRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}
	if err := h.userService.ResetPassword(c.UserContext(), req, requestContext(c)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "password has been reset"})
}
