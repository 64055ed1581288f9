package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gofiber/fiber/v2"

	"warung/pkg/apperrors"
	"warung/pkg/logger"
)

// Recover turns a panic in a downstream handler into an InternalError.
func Recover(logg *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			panicErr := fmt.Errorf("panic: %v", r)
			if logg != nil {
				ctx := logg.WithField(c.UserContext(), "stack", string(debug.Stack()))
				logg.Error(ctx, "recovered from panic", panicErr)
			}
			err = apperrors.Internal(panicErr, "unexpected failure")
		}()
		return c.Next()
	}
}
