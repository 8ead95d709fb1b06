package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/thishamdi/digital-store-api/internal/apperr"
	"github.com/thishamdi/digital-store-api/internal/utils"
)

const AccessCookie = "accessToken"

// JWTFromCookie accepts the access token from the accessToken cookie or an
// Authorization: Bearer header and leaves the parsed claims in locals.
func JWTFromCookie(tokens *utils.TokenIssuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := c.Cookies(AccessCookie)
		if tokenStr == "" {
			if h := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(h, "Bearer ") {
				tokenStr = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
			}
		}
		if tokenStr == "" {
			return apperr.Unauthorized("Unauthorized request")
		}

		claims, err := tokens.ParseAccess(tokenStr)
		if err != nil {
			return apperr.Unauthorized("Invalid access token")
		}

		c.Locals("claims", claims)
		return c.Next()
	}
}
