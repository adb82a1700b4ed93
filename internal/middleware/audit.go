package middleware

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Audit writes one structured log line per completed request, carrying the
// request id assigned upstream so postings can be traced end to end.
func Audit(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		started := time.Now()
		err := c.Next()

		fields := []any{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", c.Response().StatusCode()),
			slog.Duration("elapsed", time.Since(started)),
		}
		if reqID, _ := c.Locals(requestIDHeader).(string); reqID != "" {
			fields = append(fields, slog.String("request_id", reqID))
		}

		if err != nil {
			logger.Error("request failed", append(fields, slog.Any("error", err))...)
			return err
		}
		logger.Info("request served", fields...)
		return nil
	}
}
