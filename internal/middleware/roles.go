package middleware

import (
	"github.com/gofiber/fiber/v2"

	"warung/pkg/apperrors"
)

// RequireRole rejects callers whose identity does not hold role. It must run after AuthRequired.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity := IdentityFrom(c)
		if identity == nil {
			return apperrors.New(apperrors.CodeUnauthenticated, "Authentication required")
		}
		if identity.Role != role {
			return apperrors.New(apperrors.CodeForbidden, "Access denied")
		}
		return c.Next()
	}
}
