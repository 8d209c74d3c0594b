// handlers/tracking_routes.go
package handlers

import (
	"privacy-rewards-system/middleware"
	"privacy-rewards-system/services"

	"github.com/gofiber/fiber/v2"
)

type trackerBody struct {
	Domain     string `json:"domain"`
	Category   string `json:"category"`
	Timestamp  int64  `json:"timestamp"`
	WasBlocked *bool  `json:"was_blocked"`
}

func SetupTrackingRoutes(app fiber.Router, tracking *services.TrackingService) {
	// 🛡️ Browser extension reports; was_blocked defaults to true
	app.Post("/user/trackers", func(c *fiber.Ctx) error {
		var body trackerBody
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "invalid request body")
		}
		if body.Timestamp < 0 {
			return badRequest(c, "timestamp must be non-negative")
		}
		blocked := body.WasBlocked == nil || *body.WasBlocked
		entry, err := tracking.LogBlockedTracker(c.UserContext(), services.TrackerEvent{
			UserID:     middleware.UserID(c),
			Domain:     body.Domain,
			Category:   body.Category,
			Timestamp:  body.Timestamp,
			WasBlocked: blocked,
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "tracker": entry})
	})

	app.Get("/user/trackers/stats", func(c *fiber.Ctx) error {
		stats, err := tracking.Stats(c.UserContext(), middleware.UserID(c), c.QueryInt("days", 7))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(stats)
	})
}
