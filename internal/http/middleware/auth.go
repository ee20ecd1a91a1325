package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/linkpulse/linkpulse/internal/http/util"
)

// OwnerIDKey is the request-local under which the verified owner id is stored.
const OwnerIDKey = "owner_id"

// OwnerAuth verifies the bearer owner token on management/analytics routes.
// Resolution routes never use this: short-link resolution is public.
func OwnerAuth(signer *util.TokenSigner) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing bearer token",
			})
		}

		ownerID, err := signer.Validate(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid or expired token",
			})
		}

		c.Locals(OwnerIDKey, ownerID)
		return c.Next()
	}
}

// OwnerID returns the verified owner id set by OwnerAuth, or "".
func OwnerID(c *fiber.Ctx) string {
	if v, ok := c.Locals(OwnerIDKey).(string); ok {
		return v
	}
	return ""
}
