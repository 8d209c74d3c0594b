// handlers/referral_routes.go
package handlers

import (
	"strings"

	"privacy-rewards-system/middleware"
	"privacy-rewards-system/services"

	"github.com/gofiber/fiber/v2"
)

type redeemBody struct {
	Code string `json:"code"`
}

func SetupReferralRoutes(app fiber.Router, referrals *services.ReferralService) {
	app.Post("/user/referrals/code", func(c *fiber.Ctx) error {
		code, err := referrals.GenerateCode(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(code)
	})

	app.Post("/user/referrals/redeem", func(c *fiber.Ctx) error {
		var body redeemBody
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "invalid request body")
		}
		if strings.TrimSpace(body.Code) == "" {
			return badRequest(c, "code is required")
		}
		res, err := referrals.Redeem(c.UserContext(), middleware.UserID(c), body.Code)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "redemption": res})
	})

	app.Get("/user/referrals/stats", func(c *fiber.Ctx) error {
		stats, err := referrals.Stats(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(stats)
	})
}
