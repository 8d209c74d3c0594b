// handlers/server_routes.go
package handlers

import (
	"privacy-rewards-system/middleware"
	"privacy-rewards-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupServerRoutes(app fiber.Router, selector *services.ServerSelector) {
	// 🔓 Public, but premium callers see premium servers
	app.Get("/servers", func(c *fiber.Ctx) error {
		servers, err := selector.Ranked(c.UserContext(), services.ServerQuery{
			Premium:     middleware.IsPremium(c),
			CountryCode: c.Query("country"),
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"servers": servers})
	})

	app.Get("/servers/best", func(c *fiber.Ctx) error {
		best, err := selector.Best(c.UserContext(), services.ServerQuery{
			Premium:     middleware.IsPremium(c),
			CountryCode: c.Query("country"),
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(best)
	})
}
