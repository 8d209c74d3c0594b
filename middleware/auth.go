// middleware/auth.go
package middleware

import (
	"strings"

	"privacy-rewards-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// Locals keys shared by every auth middleware.
const (
	LocalUserID   = "user_id"
	LocalRoles    = "user_roles"
	LocalPremium  = "user_premium"
	LocalDeviceID = "device_id"
)

// UserContextMiddleware extracts user identity, roles and premium flag set by Gateway.
// Routes under /user/ and /s/ require X-User-ID.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get("X-User-ID"))
		rolesStr := c.Get("X-User-Roles")
		premium := strings.EqualFold(strings.TrimSpace(c.Get("X-User-Premium")), "true")

		path := c.Path()
		isSecured := strings.HasPrefix(path, "/user/") || strings.HasPrefix(path, "/s/")
		if isSecured && userID == "" && c.Locals(LocalUserID) == nil {
			utils.Log.Warnf("❌ [USER_CTX] X-User-ID required but missing on secured route: %s", path)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID, request must come through gateway with auth context",
			})
		}

		var roles []string
		if rolesStr != "" {
			for _, r := range strings.Split(rolesStr, ",") {
				r = strings.TrimSpace(r)
				if r != "" {
					roles = append(roles, r)
				}
			}
		}

		if userID != "" {
			c.Locals(LocalUserID, userID)
		}
		c.Locals(LocalRoles, roles)
		c.Locals(LocalPremium, premium)

		utils.Log.WithFields(logrus.Fields{
			"user_id": userID,
			"roles":   roles,
			"premium": premium,
			"path":    path,
		}).Debug("👤 [USER_CTX]")

		return c.Next()
	}
}

// RequireRole rejects callers without role. Used for /s/admin routes.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		roles, _ := c.Locals(LocalRoles).([]string)
		for _, r := range roles {
			if r == role {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
	}
}

// UserID returns the authenticated user id, or "" when none is attached.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}

// IsPremium reports the premium flag attached by the gateway.
func IsPremium(c *fiber.Ctx) bool {
	p, _ := c.Locals(LocalPremium).(bool)
	return p
}
