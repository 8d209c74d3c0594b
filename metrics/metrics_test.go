package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesRecordedSeries(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware())
	app.Get("/metrics", Handler())
	app.Get("/balance/:id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	RecordLedgerEntry("earn", "session", decimal.RequireFromString("-6.65"))
	RecordSessionClose("completed")
	RecordMissionCompleted("adsBlocked")
	RecordReferralRedeemed()
	RecordTrackerEvent("analytics", true)

	resp, err := app.Test(httptest.NewRequest("GET", "/balance/u1", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(raw)

	require.Contains(t, body, `rewards_ledger_entries_total{kind="earn",source="session"} 1`)
	require.Contains(t, body, `rewards_ledger_icr_volume_total{kind="earn",source="session"} 6.65`)
	require.Contains(t, body, `rewards_sessions_closed_total{outcome="completed"} 1`)
	require.Contains(t, body, `rewards_missions_completed_total{type="adsBlocked"} 1`)
	require.Contains(t, body, `rewards_referrals_redeemed_total 1`)
	require.Contains(t, body, `rewards_tracking_events_total{blocked="true",category="analytics"} 1`)
	require.Contains(t, body, `rewards_http_requests_total{method="GET",route="/balance/:id",status="204"} 1`)
}
