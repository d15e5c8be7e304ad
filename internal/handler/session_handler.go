package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/CeliaPro/ysm2-sub001/internal/domain"
	"github.com/CeliaPro/ysm2-sub001/internal/handler/middleware"
	"github.com/CeliaPro/ysm2-sub001/internal/service"
)

type SessionHandler struct {
	sessionService *service.SessionService
	cookies        Cookies
}

func NewSessionHandler(sessionService *service.SessionService, cookies Cookies) *SessionHandler {
	return &SessionHandler{sessionService: sessionService, cookies: cookies}
}

// SessionResponse represents a session without sensitive data
type SessionResponse struct {
	ID         string    `json:"id"`
	Device     string    `json:"device"`
	IPAddress  string    `json:"ip_address"`
	Country    *string   `json:"country"`
	City       *string   `json:"city"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
	IsCurrent  bool      `json:"is_current"`
}

// List returns the caller's sessions, most recently used first
// GET /api/v1/sessions
func (h *SessionHandler) List(c *fiber.Ctx, p domain.Principal) error {
	sessions, err := h.sessionService.List(c.UserContext(), p.ID)
	if err != nil {
		return err
	}

	current := c.Cookies(middleware.SessionCookie)
	response := make([]SessionResponse, len(sessions))
	for i, s := range sessions {
		response[i] = SessionResponse{
			ID:         s.ID,
			Device:     s.Device,
			IPAddress:  s.IPAddress,
			Country:    s.Country,
			City:       s.City,
			CreatedAt:  s.CreatedAt,
			LastUsedAt: s.LastUsedAt,
			IsCurrent:  current != "" && s.ID == current,
		}
	}

	return c.JSON(fiber.Map{
		"sessions": response,
		"count":    len(response),
	})
}

// Revoke closes one of the caller's sessions
// DELETE /api/v1/sessions/:id
func (h *SessionHandler) Revoke(c *fiber.Ctx, p domain.Principal) error {
	id := c.Params("id")
	if err := h.sessionService.Revoke(c.UserContext(), id, p.ID, requestContext(c)); err != nil {
		return err
	}
	if id == c.Cookies(middleware.SessionCookie) {
		h.cookies.Clear(c)
	}
	return c.JSON(fiber.Map{"message": "session closed"})
}

// RevokeAll closes every session of the caller
// DELETE /api/v1/sessions
func (h *SessionHandler) RevokeAll(c *fiber.Ctx, p domain.Principal) error {
	n, err := h.sessionService.RevokeAll(c.UserContext(), p.ID, requestContext(c))
	if err != nil {
		return err
	}
	h.cookies.Clear(c)
	return c.JSON(fiber.Map{"message": "all sessions closed", "revoked": n})
}
