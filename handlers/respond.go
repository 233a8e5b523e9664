package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"protocol-backend/services"
)

// statusFor maps a business failure kind to its HTTP status. Rejected
// solutions are ordinary gameplay and stay 200.
func statusFor(kind services.FailureKind) int {
	switch kind {
	case services.FailureInvalid:
		return fiber.StatusBadRequest
	case services.FailureNotFound:
		return fiber.StatusNotFound
	case services.FailureConflict:
		return fiber.StatusConflict
	case services.FailureForbidden:
		return fiber.StatusForbidden
	default:
		return fiber.StatusOK
	}
}

// respondError writes a *services.Failure as its mapped status and anything
// else as a 500.
func respondError(c *fiber.Ctx, log *zap.Logger, err error) error {
	var f *services.Failure
	if errors.As(err, &f) {
		return c.Status(statusFor(f.Kind)).JSON(fiber.Map{
			"error":   f.Message,
			"kind":    f.Kind,
			"details": f.Details,
		})
	}
	log.Error("❌ Request failed", zap.String("path", c.Path()), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal server error",
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}
