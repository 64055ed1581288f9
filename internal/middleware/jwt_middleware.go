package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"warung/internal/services"
	"warung/pkg/apperrors"
	"warung/pkg/logger"
)

const identityKey = "identity"

// TokenVerifier verifies a session token and returns the identity it carries.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*services.Identity, error)
}

// AuthRequired is a Fiber middleware that requires a valid session token. The token is
// read from the Authorization header ("Bearer <token>") or, when no header is sent, from
// the session cookie.
func AuthRequired(tokens TokenVerifier, cookieName string, logg *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := extractToken(c, cookieName)
		if err != nil {
			return err
		}

		identity, err := tokens.Verify(c.UserContext(), token)
		if err != nil {
			return err
		}

		c.Locals(identityKey, identity)
		if logg != nil {
			ctx := logg.WithUserID(c.UserContext(), identity.UserID)
			c.SetUserContext(logg.WithRole(ctx, identity.Role))
		}
		return c.Next()
	}
}

func extractToken(c *fiber.Ctx, cookieName string) (string, error) {
	if header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization)); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", apperrors.New(apperrors.CodeUnauthenticated, "Authorization header format must be 'Bearer <token>'")
		}
		return strings.TrimSpace(parts[1]), nil
	}
	if token := c.Cookies(cookieName); token != "" {
		return token, nil
	}
	return "", apperrors.New(apperrors.CodeUnauthenticated, "Authentication required")
}

// IdentityFrom returns the identity attached by AuthRequired, or nil.
func IdentityFrom(c *fiber.Ctx) *services.Identity {
	identity, _ := c.Locals(identityKey).(*services.Identity)
	return identity
}

// AuthOptional attaches the caller's identity when a valid token is presented and lets
// the request through untouched otherwise.
func AuthOptional(tokens TokenVerifier, cookieName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := extractToken(c, cookieName)
		if err != nil {
			return c.Next()
		}
		if identity, err := tokens.Verify(c.UserContext(), token); err == nil {
			c.Locals(identityKey, identity)
		}
		return c.Next()
	}
}
