package middleware

import (
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"protocol-backend/logging"
)

const (
	LocalUserID    = "user_id"
	LocalUserRoles = "user_roles"
)

// UserContextMiddleware copies the identity the gateway resolved (X-User-ID,
// X-User-Roles) into locals. Requests without a user id are rejected.
func UserContextMiddleware(log *zap.Logger) fiber.Handler {
	log = logging.OrNop(log)
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get("X-User-ID"))
		if userID == "" {
			log.Warn("❌ [USER_CTX] X-User-ID missing on secured route", zap.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID, request must come through gateway with auth context",
			})
		}

		var roles []string
		for _, r := range strings.Split(c.Get("X-User-Roles"), ",") {
			if r = strings.ToUpper(strings.TrimSpace(r)); r != "" {
				roles = append(roles, r)
			}
		}

		c.Locals(LocalUserID, userID)
		c.Locals(LocalUserRoles, roles)
		log.Debug("👤 [USER_CTX] resolved",
			zap.String("user_id", userID),
			zap.Strings("roles", roles),
			zap.String("path", c.Path()))
		return c.Next()
	}
}

// RequireRoles allows the request when the user holds any of roles. It must
// run after UserContextMiddleware.
func RequireRoles(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		held, _ := c.Locals(LocalUserRoles).([]string)
		for _, r := range roles {
			if slices.Contains(held, r) {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "insufficient role",
		})
	}
}

// UserID returns the id set by UserContextMiddleware.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}
