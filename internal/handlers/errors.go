package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"warung/pkg/apperrors"
	"warung/pkg/logger"
)

// ErrorHandler converts every error returned by a route into the {success:false, message} shape.
// The underlying error text is only included when exposeErrors is set.
func ErrorHandler(logg *logger.Logger, exposeErrors bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		body := fiber.Map{"success": false}

		var fiberErr *fiber.Error
		typed := apperrors.As(err)
		switch {
		case typed != nil:
			meta := apperrors.MetadataFor(typed.Code())
			status = meta.HTTPStatus
			body["code"] = typed.Code()
			body["message"] = typed.Message()
			if typed.Code() == apperrors.CodeInternal {
				body["message"] = meta.PublicMessage
			}
			if meta.Retryable {
				body["retryable"] = true
			}
			if meta.DetailsAllowed && typed.Details() != nil {
				body["details"] = typed.Details()
			}
		case errors.As(err, &fiberErr):
			status = fiberErr.Code
			body["message"] = fiberErr.Message
		default:
			body["code"] = apperrors.CodeInternal
			body["message"] = apperrors.MetadataFor(apperrors.CodeInternal).PublicMessage
			body["retryable"] = true
		}

		ctx := c.UserContext()
		if logg != nil {
			ctx = logg.WithField(ctx, "status", status)
			if status >= fiber.StatusInternalServerError {
				logg.Error(ctx, "request failed", err)
			} else {
				logg.Warn(logg.WithField(ctx, "reason", err.Error()), "request rejected")
			}
		}

		if exposeErrors && status >= fiber.StatusInternalServerError {
			body["error"] = err.Error()
		}
		return c.Status(status).JSON(body)
	}
}

func invalidBody(err error) error {
	return apperrors.Wrap(apperrors.CodeValidation, err, "Invalid request body")
}

func ok(c *fiber.Ctx, status int, message string, fields fiber.Map) error {
	body := fiber.Map{"success": true}
	if message != "" {
		body["message"] = message
	}
	for k, v := range fields {
		body[k] = v
	}
	return c.Status(status).JSON(body)
}

// chain prepends the non-nil guards to handler.
func chain(handler fiber.Handler, guards ...fiber.Handler) []fiber.Handler {
	return append(guarded(guards...), handler)
}

// guarded drops nil guards so optional middleware can be passed straight to Group.
func guarded(guards ...fiber.Handler) []fiber.Handler {
	out := make([]fiber.Handler, 0, len(guards)+1)
	for _, g := range guards {
		if g != nil {
			out = append(out, g)
		}
	}
	return out
}

// Guards are the access middlewares a handler mounts on its routes.
type Guards struct {
	Auth         fiber.Handler
	OptionalAuth fiber.Handler
	Admin        fiber.Handler
	Throttle     fiber.Handler
}
