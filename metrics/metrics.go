package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

var (
	// Registry holds the service's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rewards",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rewards",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	ledgerEntries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rewards",
			Subsystem: "ledger",
			Name:      "entries_total",
			Help:      "Ledger transactions committed, by kind and source.",
		},
		[]string{"kind", "source"},
	)

	ledgerVolume = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rewards",
			Subsystem: "ledger",
			Name:      "icr_volume_total",
			Help:      "Absolute ICR moved by committed ledger transactions.",
		},
		[]string{"kind", "source"},
	)

	sessionsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rewards",
			Subsystem: "sessions",
			Name:      "closed_total",
			Help:      "Session close attempts by outcome.",
		},
		[]string{"outcome"},
	)

	missionsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rewards",
			Subsystem: "missions",
			Name:      "completed_total",
			Help:      "Mission instances completed, by mission type.",
		},
		[]string{"type"},
	)

	trackersLogged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rewards",
			Subsystem: "tracking",
			Name:      "events_total",
			Help:      "Tracker events reported by clients, by category and outcome.",
		},
		[]string{"category", "blocked"},
	)

	referralsRedeemed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rewards",
			Subsystem: "referrals",
			Name:      "redeemed_total",
			Help:      "Referral codes redeemed successfully.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		ledgerEntries,
		ledgerVolume,
		sessionsClosed,
		missionsCompleted,
		referralsRedeemed,
		trackersLogged,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registry on a fiber route.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
}

// Middleware records request counts and latency per matched route.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Path() == "/metrics" {
			return c.Next()
		}
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		route := c.Route().Path
		if route == "" {
			route = "unmatched"
		}
		method := strings.ToUpper(c.Method())
		httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		return err
	}
}

// RecordLedgerEntry counts one committed ledger transaction.
func RecordLedgerEntry(kind, source string, amount decimal.Decimal) {
	ledgerEntries.WithLabelValues(kind, source).Inc()
	ledgerVolume.WithLabelValues(kind, source).Add(amount.Abs().InexactFloat64())
}

// RecordSessionClose counts a session close by outcome (completed, rejected, failed).
func RecordSessionClose(outcome string) {
	sessionsClosed.WithLabelValues(outcome).Inc()
}

// RecordMissionCompleted counts a completed mission instance.
func RecordMissionCompleted(missionType string) {
	missionsCompleted.WithLabelValues(missionType).Inc()
}

// RecordReferralRedeemed counts a successful redemption.
func RecordReferralRedeemed() {
	referralsRedeemed.Inc()
}

// RecordTrackerEvent counts one logged tracker event.
func RecordTrackerEvent(category string, blocked bool) {
	trackersLogged.WithLabelValues(category, strconv.FormatBool(blocked)).Inc()
}
