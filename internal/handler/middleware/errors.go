package middleware

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/CeliaPro/ysm2-sub001/internal/errs"
)

// StatusOf maps an error kind to its HTTP status.
func StatusOf(kind errs.Kind) int {
	switch kind {
	case errs.InvalidCredentials, errs.InvalidCode, errs.SecondFactorRequired, errs.Unauthorized:
		return fiber.StatusUnauthorized
	case errs.Forbidden:
		return fiber.StatusForbidden
	case errs.NotFound:
		return fiber.StatusNotFound
	case errs.Conflict:
		return fiber.StatusConflict
	case errs.Validation:
		return fiber.StatusBadRequest
	case errs.RateLimited:
		return fiber.StatusTooManyRequests
	case errs.Unavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler is the single place where handler errors become responses.
// Internal errors are logged in full and answered with a generic body.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		}

		kind := errs.KindOf(err)
		status := StatusOf(kind)

		switch kind {
		case errs.Internal:
			logger.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
			return c.Status(status).JSON(fiber.Map{"error": "internal server error"})
		case errs.Unavailable:
			logger.Warn("dependency unavailable", zap.String("path", c.Path()), zap.Error(err))
		}

		body := fiber.Map{"error": publicMessage(err, status)}
		if kind == errs.SecondFactorRequired {
			body["two_factor_required"] = true
		}
		return c.Status(status).JSON(body)
	}
}

// publicMessage returns the outermost caller-safe message, never the cause.
func publicMessage(err error, status int) string {
	var e *errs.Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return http.StatusText(status)
}
