// handlers/routes.go
package handlers

import (
	"privacy-rewards-system/middleware"
	"privacy-rewards-system/services"

	"github.com/gofiber/fiber/v2"
)

// Deps are the services exposed over HTTP. A nil Auth client disables the SSE stream.
type Deps struct {
	Ledger      *services.LedgerService
	Missions    *services.MissionEngine
	Referrals   *services.ReferralService
	Sessions    *services.SessionService
	Servers     *services.ServerSelector
	Leaderboard *services.LeaderboardService
	Tracking    *services.TrackingService
	Auth        *services.AuthServiceClient
}

// Register mounts every route. Gateway auth is applied by the caller.
func Register(app *fiber.App, d Deps) {
	// 📡 SSE authenticates with query params, so it sits before the header-based user context
	if d.Auth != nil {
		app.Get("/user/transactions/stream", middleware.SSEAuthMiddleware(d.Auth), d.Ledger.StreamTransactionsSSE)
	}

	// 🔐 /user/ and /s/ require X-User-ID from here on
	app.Use(middleware.UserContextMiddleware())

	SetupServerRoutes(app, d.Servers)
	SetupSessionRoutes(app, d.Sessions, d.Servers)
	SetupLedgerRoutes(app, d.Ledger, d.Leaderboard)
	SetupMissionRoutes(app, d.Missions)
	SetupReferralRoutes(app, d.Referrals)
	SetupTrackingRoutes(app, d.Tracking)
}
