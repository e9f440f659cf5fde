package transport

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/hostelcart/batch-engine/internal/domain"
	"go.uber.org/zap"
)

// ErrorHandler is the fiber app-level error handler. Handlers usually map
// domain errors themselves; this is the safety net for errors that escape.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError

		var fiberErr *fiber.Error
		switch {
		case errors.As(err, &fiberErr):
			code = fiberErr.Code
		case errors.Is(err, domain.ErrValidation):
			code = fiber.StatusBadRequest
		case errors.Is(err, domain.ErrNotFound):
			code = fiber.StatusNotFound
		case errors.Is(err, domain.ErrConflict):
			code = fiber.StatusConflict
		}

		logger.Error("request error",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", code),
			zap.Error(err),
		)

		return c.Status(code).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
}
