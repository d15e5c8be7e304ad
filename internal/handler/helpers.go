package handler

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/CeliaPro/ysm2-sub001/internal/domain"
	"github.com/CeliaPro/ysm2-sub001/internal/errs"
	"github.com/CeliaPro/ysm2-sub001/internal/handler/middleware"
	"github.com/CeliaPro/ysm2-sub001/internal/service"
	"github.com/CeliaPro/ysm2-sub001/pkg/device"
	"github.com/CeliaPro/ysm2-sub001/pkg/validator"
)

// requestContext captures provenance for sessions and audit entries.
func requestContext(c *fiber.Ctx) domain.RequestContext {
	ua := c.Get(fiber.HeaderUserAgent)
	return domain.RequestContext{
		IP:        middleware.ClientIP(c),
		Device:    device.Describe(ua),
		UserAgent: ua,
	}
}

// parseBody decodes and validates the request body into dst.
func parseBody(c *fiber.Ctx, v *validator.Validator, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return errs.E(errs.Validation, "invalid request body")
	}
	if err := v.Validate(dst); err != nil {
		return errs.E(errs.Validation, err.Error())
	}
	return nil
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, errs.E(errs.Validation, "invalid "+name)
	}
	return id, nil
}

// paging reads ?limit=&offset=. Services clamp the values.
func paging(c *fiber.Ctx) (int, int) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// Cookies issues and clears the jwt and sessionId cookies.
type Cookies struct {
	Secure bool
}

func (k Cookies) Set(c *fiber.Ctx, res *service.LoginResult) {
	maxAge := int(time.Until(res.ExpiresAt).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	c.Cookie(k.cookie(middleware.TokenCookie, res.Token, maxAge, res.ExpiresAt))
	c.Cookie(k.cookie(middleware.SessionCookie, res.Session.ID, maxAge, res.ExpiresAt))
}

func (k Cookies) Clear(c *fiber.Ctx) {
	expired := time.Unix(0, 0)
	c.Cookie(k.cookie(middleware.TokenCookie, "", -1, expired))
	c.Cookie(k.cookie(middleware.SessionCookie, "", -1, expired))
}

func (k Cookies) cookie(name, value string, maxAge int, expires time.Time) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Expires:  expires,
		HTTPOnly: true,
		Secure:   k.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	}
}
