package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/CeliaPro/ysm2-sub001/internal/domain"
	"github.com/CeliaPro/ysm2-sub001/internal/handler/middleware"
	"github.com/CeliaPro/ysm2-sub001/internal/service"
	"github.com/CeliaPro/ysm2-sub001/pkg/validator"
)

type AuthHandler struct {
	authService    *service.AuthService
	sessionService *service.SessionService
	validator      *validator.Validator
	cookies        Cookies
}

func NewAuthHandler(
	authService *service.AuthService,
	sessionService *service.SessionService,
	validator *validator.Validator,
	cookies Cookies,
) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		sessionService: sessionService,
		validator:      validator,
		cookies:        cookies,
	}
}

type loginResponse struct {
	User      *domain.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// Login handles user login
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req service.LoginRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		h.authService.RejectLogin(c.UserContext(), "malformed login request", requestContext(c))
		return err
	}

	res, err := h.authService.Login(c.UserContext(), req, requestContext(c))
	if err != nil {
		return err
	}

	h.cookies.Set(c, res)
	return c.JSON(loginResponse{User: res.User, Token: res.Token, ExpiresAt: res.ExpiresAt})
}

// Logout ends the current session and clears the cookies
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *fiber.Ctx, p domain.Principal) error {
	if err := h.authService.Logout(c.UserContext(), p, c.Cookies(middleware.SessionCookie), requestContext(c)); err != nil {
		return err
	}
	h.cookies.Clear(c)
	return c.JSON(fiber.Map{"message": "logged out"})
}

// LogoutAll ends every session of the caller
// POST /api/v1/auth/logout-all
func (h *AuthHandler) LogoutAll(c *fiber.Ctx, p domain.Principal) error {
	n, err := h.sessionService.RevokeAll(c.UserContext(), p.ID, requestContext(c))
	if err != nil {
		return err
	}
	h.cookies.Clear(c)
	return c.JSON(fiber.Map{"message": "all sessions closed", "revoked": n})
}

// Me returns the current user
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *fiber.Ctx, p domain.Principal) error {
	user, err := h.authService.Me(c.UserContext(), p)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

type codeRequest struct {
	Code string `json:"code" validate:"required"`
}

// EnrollTwoFactor starts TOTP enrollment
// POST /api/v1/auth/2fa/enroll
func (h *AuthHandler) EnrollTwoFactor(c *fiber.Ctx, p domain.Principal) error {
	enrollment, err := h.authService.EnrollSecondFactor(c.UserContext(), p)
	if err != nil {
		return err
	}
	return c.JSON(enrollment)
}

// ConfirmTwoFactor enables TOTP once the first code checks out
// POST /api/v1/auth/2fa/confirm
func (h *AuthHandler) ConfirmTwoFactor(c *fiber.Ctx, p domain.Principal) error {
	var req codeRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}
	if err := h.authService.ConfirmSecondFactor(c.UserContext(), p, req.Code, requestContext(c)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"two_factor_enabled": true})
}

// DisableTwoFactor turns TOTP off
// POST /api/v1/auth/2fa/disable
func (h *AuthHandler) DisableTwoFactor(c *fiber.Ctx, p domain.Principal) error {
	var req codeRequest
	if err := parseBody(c, h.validator, &req); err != nil {
		return err
	}
	if err := h.authService.DisableSecondFactor(c.UserContext(), p, req.Code, requestContext(c)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"two_factor_enabled": false})
}
