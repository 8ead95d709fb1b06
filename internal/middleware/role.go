package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/thishamdi/digital-store-api/internal/apperr"
)

func RequireRoles(allowed ...string) fiber.Handler {
	allowedSet := map[string]bool{}
	for _, r := range allowed {
		allowedSet[strings.ToLower(r)] = true
	}

	return func(c *fiber.Ctx) error {
		role, _ := c.Locals("role").(string)
		if role == "" {
			return apperr.Unauthorized("Unauthorized request")
		}
		if !allowedSet[role] {
			return apperr.Forbidden("Forbidden: Admin access required")
		}
		return c.Next()
	}
}

// RequireVerifiedEmail blocks users who have not confirmed their email.
// When enforce is false it lets everyone through.
func RequireVerifiedEmail(enforce bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !enforce {
			return c.Next()
		}
		u, ok := CurrentUser(c)
		if !ok {
			return apperr.Unauthorized("Unauthorized request")
		}
		if !u.IsEmailVerified {
			return apperr.Forbidden("Please verify your email address")
		}
		return c.Next()
	}
}
