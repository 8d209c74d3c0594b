// handlers/mission_routes.go
package handlers

import (
	"privacy-rewards-system/middleware"
	"privacy-rewards-system/models"
	"privacy-rewards-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupMissionRoutes(app fiber.Router, missions *services.MissionEngine) {
	app.Get("/user/missions", func(c *fiber.Ctx) error {
		list, err := missions.ListAvailable(c.UserContext(), middleware.UserID(c), middleware.IsPremium(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"missions": list})
	})

	app.Get("/user/missions/instances", func(c *fiber.Ctx) error {
		status := models.MissionStatus(c.Query("status"))
		switch status {
		case "", models.MissionStatusActive, models.MissionStatusCompleted, models.MissionStatusExpired:
		default:
			return badRequest(c, "unknown mission status")
		}
		list, err := missions.ListInstances(c.UserContext(), middleware.UserID(c), status)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"instances": list})
	})

	app.Post("/user/missions/:id/start", func(c *fiber.Ctx) error {
		inst, err := missions.Start(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(inst)
	})

	app.Post("/user/missions/instances/:id/claim", func(c *fiber.Ctx) error {
		t, err := missions.Claim(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "transaction": t})
	})
}
