package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/CeliaPro/ysm2-sub001/internal/errs"
)

// RecoveryMiddleware turns panics into internal errors. The panic value is
// logged, never sent to the client.
func RecoveryMiddleware(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					zap.String("method", c.Method()),
					zap.String("path", c.Path()),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()),
				)
				err = errs.E(errs.Internal, "panic", fmt.Errorf("%v", r))
			}
		}()

		return c.Next()
	}
}
