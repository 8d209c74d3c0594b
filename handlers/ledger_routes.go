// handlers/ledger_routes.go
package handlers

import (
	"privacy-rewards-system/middleware"
	"privacy-rewards-system/models"
	"privacy-rewards-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type withdrawBody struct {
	Amount        decimal.Decimal `json:"amount"`
	WalletAddress string          `json:"wallet_address"`
}

func SetupLedgerRoutes(app fiber.Router, ledger *services.LedgerService, leaderboard *services.LeaderboardService) {
	app.Get("/user/balance", func(c *fiber.Ctx) error {
		bal, err := ledger.Balance(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(bal)
	})

	app.Get("/user/transactions", func(c *fiber.Ctx) error {
		kind := models.TransactionKind(c.Query("kind"))
		switch kind {
		case "", models.TransactionKindEarn, models.TransactionKindSpend,
			models.TransactionKindWithdraw, models.TransactionKindBonus:
		default:
			return badRequest(c, "unknown transaction kind")
		}
		txs, err := ledger.Transactions(c.UserContext(), middleware.UserID(c), services.TransactionFilter{
			Limit: c.QueryInt("limit", 50),
			Kind:  kind,
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"transactions": txs})
	})

	app.Post("/user/wallet/withdraw", func(c *fiber.Ctx) error {
		var body withdrawBody
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "invalid request body")
		}
		if !body.Amount.IsPositive() {
			return badRequest(c, "amount must be positive")
		}
		if body.WalletAddress == "" {
			return badRequest(c, "wallet_address is required")
		}
		t, err := ledger.Withdraw(c.UserContext(), middleware.UserID(c), body.Amount, body.WalletAddress)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "transaction": t})
	})

	// 🔓 Public leaderboard
	app.Get("/leaderboard", func(c *fiber.Ctx) error {
		entries, err := leaderboard.Top(c.UserContext(), c.QueryInt("limit", 10))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"leaderboard": entries})
	})

	// 🛡️ Admin: re-issue a missed welcome bonus
	admin := app.Group("/s/admin", middleware.RequireRole("admin"))
	admin.Post("/users/:id/welcome", func(c *fiber.Ctx) error {
		t, created, err := ledger.GrantWelcomeBonus(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		status := fiber.StatusOK
		if created {
			status = fiber.StatusCreated
		}
		return c.Status(status).JSON(fiber.Map{"created": created, "transaction": t})
	})
}
