package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"warung/pkg/apperrors"
	"warung/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

// RequestContext tags each request with an id, attaches a request logger and bounds the
// request's context with timeout. Completion is logged with status and duration.
func RequestContext(logg *logger.Logger, timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqID := c.Get(requestIDHeader)
		if reqID == "" || len(reqID) > 128 {
			reqID = uuid.NewString()
		}
		c.Set(requestIDHeader, reqID)

		ctx := c.UserContext()
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{
				"request_id": reqID,
				"method":     c.Method(),
				"path":       c.Path(),
			})
		}
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		c.SetUserContext(ctx)

		start := time.Now()
		if logg != nil {
			logg.Debug(ctx, "request.start")
		}
		err := c.Next()
		if logg != nil {
			status := c.Response().StatusCode()
			if err != nil {
				status = statusOf(err)
			}
			done := logg.WithFields(c.UserContext(), map[string]any{
				"status":      status,
				"duration_ms": time.Since(start).Milliseconds(),
			})
			logg.Info(done, "request.complete")
		}
		return err
	}
}

func statusOf(err error) int {
	if typed := apperrors.As(err); typed != nil {
		return apperrors.MetadataFor(typed.Code()).HTTPStatus
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}
	return fiber.StatusInternalServerError
}
