package middleware

import (
	"github.com/gofiber/fiber/v2"

	"go-hrflow/pkg/utils"
)

// ClaimsPredicate decides a capability from the caller's claims
type ClaimsPredicate func(claims *utils.UserClaims) bool

// AdminMiddleware lets the request through only when isAdmin accepts the caller
func AdminMiddleware(isAdmin ClaimsPredicate) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := Claims(c)
		if claims == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		if !isAdmin(claims) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Access denied: Admin role required",
			})
		}

		return c.Next()
	}
}
