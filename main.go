package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"privacy-rewards-system/config"
	"privacy-rewards-system/handlers"
	"privacy-rewards-system/metrics"
	"privacy-rewards-system/middleware"
	"privacy-rewards-system/models"
	"privacy-rewards-system/services"
	"privacy-rewards-system/utils"
	"privacy-rewards-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "rewards",
	Short:         "PrivacyGuard VPN reward ledger service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, sync workers and scheduler",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		utils.Log.WithError(err).Fatal("❌ command failed")
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, economy, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireServiceToken(); err != nil {
		return err
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	if err := models.AutoMigrate(db); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	accounts := services.NewAccountService(db)
	ledger := services.NewLedgerService(db, economy)
	missions := services.NewMissionEngine(db, ledger, accounts)
	referrals := services.NewReferralService(db, ledger, missions, accounts)
	sessions := services.NewSessionService(db, ledger, missions, accounts)
	selector := services.NewServerSelector(db)
	tracking := services.NewTrackingService(db)

	var cache redis.Cmdable
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return err
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		cache = rdb
	}
	leaderboard := services.NewLeaderboardService(db, cache)

	var exporter *services.StatementExporter
	if cfg.R2.Enabled() {
		store, err := utils.NewR2Store(ctx, cfg.R2)
		if err != nil {
			return err
		}
		exporter = services.NewStatementExporter(db, ledger, store)
	} else {
		utils.Log.Warn("⚠️  R2 credentials not set, nightly statement export disabled")
	}

	sched, err := services.StartScheduler(ctx, missions, exporter)
	if err != nil {
		return err
	}
	defer func() { _ = sched.Shutdown() }()

	if cfg.AccountSyncURL != "" {
		workers.NewAccountSyncWorker(db, accounts, ledger, cfg.AccountSyncURL, cfg.ServiceToken, cfg.SyncInterval).Start(ctx)
	} else {
		utils.Log.Warn("⚠️  ACCOUNT_SYNC_URL not set, account mirror and welcome bonuses disabled")
	}
	if cfg.InventorySyncURL != "" {
		go workers.PollServers(ctx, workers.NewServerSyncClient(db, cfg.InventorySyncURL, cfg.ServiceToken), cfg.SyncInterval)
	} else {
		utils.Log.Warn("⚠️  INVENTORY_SYNC_URL not set, server inventory sync disabled")
	}

	var authClient *services.AuthServiceClient
	if cfg.AuthServiceURL != "" {
		authClient = services.NewAuthServiceClient(cfg.AuthServiceURL, cfg.ServiceToken)
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024,
	})
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles, X-User-Premium",
		AllowCredentials: true,
		MaxAge:           86400,
	}))
	app.Use(metrics.Middleware())

	// 📈 Scraped directly, not through the gateway
	app.Get("/metrics", metrics.Handler())

	// 🔐❗ GLOBAL: Only Gateway requests allowed from here on
	app.Use(middleware.GatewayAuthMiddleware(cfg.ServiceToken))

	handlers.Register(app, handlers.Deps{
		Ledger:      ledger,
		Missions:    missions,
		Referrals:   referrals,
		Sessions:    sessions,
		Servers:     selector,
		Leaderboard: leaderboard,
		Tracking:    tracking,
		Auth:        authClient,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			utils.Log.WithError(err).Error("Server error")
			stop()
		}
	}()

	utils.Log.Infof("✅ Server running on %s (economy %s)", cfg.HTTPAddr, economy.Version)
	utils.Log.Infof("✅ CORS configured for origins: %s", strings.Join(cfg.AllowedOrigins, ","))

	<-ctx.Done()
	utils.Log.Info("Shutting down server...")
	return app.ShutdownWithTimeout(10 * time.Second)
}

// loadConfig reads the environment, configures logging and loads the economy.
func loadConfig() (*config.Config, services.Economy, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, services.Economy{}, err
	}
	utils.InitLogger(cfg.LogLevel, cfg.LogFormat)

	economy, err := services.LoadEconomy(cfg.EconomyFile)
	if err != nil {
		return nil, services.Economy{}, err
	}
	return cfg, economy, nil
}
