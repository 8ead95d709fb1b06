package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/thishamdi/digital-store-api/internal/logger"
)

// RequestLogger must run after requestid. It puts a request-scoped logger
// into the user context, hands chain errors to the app's ErrorHandler so
// the final status is known, and writes one line per request.
func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		rid := fmt.Sprint(c.Locals("requestid"))

		log := logger.L.With("request_id", rid)
		c.SetUserContext(logger.InjectLogger(c.UserContext(), log))

		if err := c.Next(); err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		attrs := []any{
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.IP(),
		}
		switch {
		case status >= fiber.StatusInternalServerError:
			log.Error("request", attrs...)
		case status >= fiber.StatusBadRequest:
			log.Warn("request", attrs...)
		default:
			log.Info("request", attrs...)
		}
		return nil
	}
}
