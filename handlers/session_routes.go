// handlers/session_routes.go
package handlers

import (
	"errors"

	"privacy-rewards-system/middleware"
	"privacy-rewards-system/services"

	"github.com/gofiber/fiber/v2"
)

type startSessionBody struct {
	ServerID string `json:"server_id"`
	Country  string `json:"country"`
}

type heartbeatBody struct {
	BytesIn         int64 `json:"bytes_in"`
	BytesOut        int64 `json:"bytes_out"`
	TrackersBlocked int64 `json:"trackers_blocked"`
	AdsBlocked      int64 `json:"ads_blocked"`
}

type closeSessionBody struct {
	BytesIn         int64  `json:"bytes_in"`
	BytesOut        int64  `json:"bytes_out"`
	TrackersBlocked *int64 `json:"trackers_blocked"`
	AdsBlocked      *int64 `json:"ads_blocked"`
}

const negativeCounters = "counters must be non-negative"

func (b heartbeatBody) valid() bool {
	return b.BytesIn >= 0 && b.BytesOut >= 0 && b.TrackersBlocked >= 0 && b.AdsBlocked >= 0
}

func (b closeSessionBody) valid() bool {
	if b.BytesIn < 0 || b.BytesOut < 0 {
		return false
	}
	if b.TrackersBlocked != nil && *b.TrackersBlocked < 0 {
		return false
	}
	return b.AdsBlocked == nil || *b.AdsBlocked >= 0
}

func SetupSessionRoutes(app fiber.Router, sessions *services.SessionService, selector *services.ServerSelector) {
	// Start a session; without server_id the best server for the caller is picked
	app.Post("/user/sessions", func(c *fiber.Ctx) error {
		userID := middleware.UserID(c)
		var body startSessionBody
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return badRequest(c, "invalid request body")
			}
		}

		serverID := body.ServerID
		if serverID == "" {
			best, err := selector.Best(c.UserContext(), services.ServerQuery{
				Premium:     middleware.IsPremium(c),
				CountryCode: body.Country,
			})
			if err != nil {
				return respondError(c, err)
			}
			serverID = best.ID
		}

		session, err := sessions.Start(c.UserContext(), userID, serverID)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(session)
	})

	app.Get("/user/sessions", func(c *fiber.Ctx) error {
		history, err := sessions.History(c.UserContext(), middleware.UserID(c), c.QueryInt("limit", 20))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"sessions": history})
	})

	app.Get("/user/sessions/active", func(c *fiber.Ctx) error {
		session, err := sessions.Active(c.UserContext(), middleware.UserID(c))
		if errors.Is(err, services.ErrNotFound) {
			return c.JSON(fiber.Map{"session": nil})
		}
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"session": session})
	})

	app.Post("/user/sessions/:id/heartbeat", func(c *fiber.Ctx) error {
		var body heartbeatBody
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "invalid request body")
		}
		if !body.valid() {
			return badRequest(c, negativeCounters)
		}
		session, err := sessions.Heartbeat(c.UserContext(), services.HeartbeatRequest{
			SessionID:       c.Params("id"),
			UserID:          middleware.UserID(c),
			BytesIn:         body.BytesIn,
			BytesOut:        body.BytesOut,
			TrackersBlocked: body.TrackersBlocked,
			AdsBlocked:      body.AdsBlocked,
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(session)
	})

	app.Post("/user/sessions/:id/close", func(c *fiber.Ctx) error {
		var body closeSessionBody
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return badRequest(c, "invalid request body")
			}
		}
		if !body.valid() {
			return badRequest(c, negativeCounters)
		}
		res, err := sessions.Close(c.UserContext(), services.CloseRequest{
			SessionID:       c.Params("id"),
			UserID:          middleware.UserID(c),
			BytesIn:         body.BytesIn,
			BytesOut:        body.BytesOut,
			TrackersBlocked: body.TrackersBlocked,
			AdsBlocked:      body.AdsBlocked,
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	})
}
