package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CeliaPro/ysm2-sub001/internal/domain"
	"github.com/CeliaPro/ysm2-sub001/internal/errs"
)

const (
	TokenCookie   = "jwt"
	SessionCookie = "sessionId"

	principalKey = "principal"
)

// Handler is a route handler that runs with an authenticated principal.
type Handler func(c *fiber.Ctx, p domain.Principal) error

type TokenVerifier interface {
	VerifyToken(token string) (*domain.Claims, error)
}

type SessionToucher interface {
	Touch(ctx context.Context, sessionID string, userID uuid.UUID) error
}

// Gate authenticates requests and enforces minimum roles.
type Gate struct {
	verifier TokenVerifier
	sessions SessionToucher
	logger   *zap.Logger
}

// NewGate creates a Gate. sessions may be nil.
func NewGate(verifier TokenVerifier, sessions SessionToucher, logger *zap.Logger) *Gate {
	return &Gate{verifier: verifier, sessions: sessions, logger: logger}
}

// Require wraps next so it only runs for a valid token whose role is at least min.
// Missing or invalid tokens get 401, an insufficient role gets 403.
func (g *Gate) Require(min domain.Role, next Handler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := tokenFrom(c)
		if token == "" {
			return errs.E(errs.Unauthorized, "authentication required")
		}

		claims, err := g.verifier.VerifyToken(token)
		if err != nil {
			return errs.E(errs.Unauthorized, "invalid or expired token")
		}

		p := claims.Principal()
		if !p.Role.AtLeast(min) {
			return errs.E(errs.Forbidden, "insufficient role")
		}

		if err := g.touch(c, p); err != nil {
			return err
		}

		c.Locals(principalKey, p)
		return next(c, p)
	}
}

// touch stamps the session cookie, if any. Only an ownership mismatch fails the request.
func (g *Gate) touch(c *fiber.Ctx, p domain.Principal) error {
	sid := c.Cookies(SessionCookie)
	if sid == "" || g.sessions == nil {
		return nil
	}

	err := g.sessions.Touch(c.UserContext(), sid, p.ID)
	if err == nil {
		return nil
	}
	if errs.KindOf(err) == errs.Forbidden {
		return err
	}
	g.logger.Warn("failed to touch session", zap.String("user_id", p.ID.String()), zap.Error(err))
	return nil
}

// PrincipalFrom returns the principal stored by the Gate.
func PrincipalFrom(c *fiber.Ctx) (domain.Principal, bool) {
	p, ok := c.Locals(principalKey).(domain.Principal)
	return p, ok
}

func tokenFrom(c *fiber.Ctx) string {
	if token := c.Cookies(TokenCookie); token != "" {
		return token
	}
	parts := strings.SplitN(c.Get(fiber.HeaderAuthorization), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
