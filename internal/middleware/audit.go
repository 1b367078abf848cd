package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Audit logs each authenticated wallet request with its outcome and the
// caller's identity. This is the operational complement to the persistent
// audit trail written by the service layer.
func Audit(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", c.Response().StatusCode()),
			slog.Duration("duration", time.Since(start)),
		}
		if caller, ok := c.Locals("user_id").(string); ok && caller != "" {
			attrs = append(attrs, slog.String("caller", caller))
		}
		if role, ok := c.Locals("role").(string); ok && role != "" {
			attrs = append(attrs, slog.String("role", role))
		}
		if reqID, ok := c.Locals(requestIDHeader).(string); ok && reqID != "" {
			attrs = append(attrs, slog.String("request_id", reqID))
		}

		if err != nil {
			attrs = append(attrs, slog.Any("error", err))
			logger.Error("wallet request", attrs...)
			return err
		}
		logger.Info("wallet request", attrs...)
		return nil
	}
}
