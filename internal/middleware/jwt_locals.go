package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/thishamdi/digital-store-api/internal/apperr"
	"github.com/thishamdi/digital-store-api/internal/models"
	"github.com/thishamdi/digital-store-api/internal/utils"
)

type UserFinder interface {
	FindUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// AttachJWTLocals resolves the token's user and stores userId, role and
// the user itself in locals. A token for a deleted user is rejected.
func AttachJWTLocals(users UserFinder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := c.Locals("claims").(*utils.Claims)
		if !ok || claims == nil {
			return apperr.Unauthorized("Unauthorized request")
		}

		uid, err := uuid.Parse(strings.TrimSpace(claims.UserID))
		if err != nil {
			return apperr.Unauthorized("Invalid access token")
		}

		user, err := users.FindUser(c.UserContext(), uid)
		if err != nil {
			if _, isClient := apperr.Status(err); isClient {
				return apperr.Unauthorized("Invalid access token")
			}
			return err
		}

		c.Locals("userId", user.ID.String())
		c.Locals("role", strings.ToLower(string(user.Role)))
		c.Locals("currentUser", user)
		return c.Next()
	}
}

// CurrentUser returns the user placed in locals by AttachJWTLocals.
func CurrentUser(c *fiber.Ctx) (*models.User, bool) {
	u, ok := c.Locals("currentUser").(*models.User)
	return u, ok && u != nil
}
