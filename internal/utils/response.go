package utils

import "github.com/gofiber/fiber/v2"

// Respond writes the standard envelope. success is derived from the status.
func Respond(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(fiber.Map{
		"success": status < fiber.StatusBadRequest,
		"message": message,
		"data":    data,
	})
}

func OK(c *fiber.Ctx, message string, data any) error {
	return Respond(c, fiber.StatusOK, message, data)
}

func Created(c *fiber.Ctx, message string, data any) error {
	return Respond(c, fiber.StatusCreated, message, data)
}
