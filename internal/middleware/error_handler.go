package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/thishamdi/digital-store-api/internal/apperr"
	"github.com/thishamdi/digital-store-api/internal/logger"
	"github.com/thishamdi/digital-store-api/internal/utils"
)

// ErrorHandler renders every error as the standard envelope. Client errors
// keep their message; anything else is logged and hidden behind a 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return utils.Respond(c, fe.Code, fe.Message, nil)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return utils.Respond(c, fiber.StatusConflict, "Duplicate value", nil)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return utils.Respond(c, fiber.StatusNotFound, "Resource not found", nil)
	}

	if status, ok := apperr.Status(err); ok {
		return utils.Respond(c, status, err.Error(), nil)
	}

	logger.WithCtx(c.UserContext()).Error("unhandled error",
		"method", c.Method(),
		"path", c.Path(),
		"error", err,
	)
	return utils.Respond(c, fiber.StatusInternalServerError, "Internal server error", nil)
}
