// handlers/errors.go
package handlers

import (
	"errors"

	"privacy-rewards-system/services"
	"privacy-rewards-system/utils"

	"github.com/gofiber/fiber/v2"
)

var errorStatus = []struct {
	err    error
	status int
}{
	{services.ErrNotFound, fiber.StatusNotFound},
	{services.ErrNoServersAvailable, fiber.StatusNotFound},
	{services.ErrInvalidAmount, fiber.StatusBadRequest},
	{services.ErrInvalidTracker, fiber.StatusBadRequest},
	{services.ErrInsufficientFunds, fiber.StatusUnprocessableEntity},
	{services.ErrDuplicateTransaction, fiber.StatusConflict},
	{services.ErrAlreadyActive, fiber.StatusConflict},
	{services.ErrAlreadyClosed, fiber.StatusConflict},
	{services.ErrAlreadyClaimed, fiber.StatusConflict},
	{services.ErrAlreadyReferred, fiber.StatusConflict},
	{services.ErrNotCompleted, fiber.StatusUnprocessableEntity},
	{services.ErrInvalidCode, fiber.StatusUnprocessableEntity},
	{services.ErrSelfReferral, fiber.StatusUnprocessableEntity},
	{services.ErrMissionInactive, fiber.StatusUnprocessableEntity},
	{services.ErrPremiumRequired, fiber.StatusForbidden},
}

// respondError maps a service error onto an HTTP response.
func respondError(c *fiber.Ctx, err error) error {
	if errors.Is(err, services.ErrSettlementFailed) {
		c.Set(fiber.HeaderRetryAfter, "1")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": services.ErrSettlementFailed.Error(),
		})
	}
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			return c.Status(m.status).JSON(fiber.Map{"error": m.err.Error()})
		}
	}
	utils.Log.WithError(err).Errorf("❌ %s %s failed", c.Method(), c.Path())
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}
