// config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// R2 holds the S3-compatible object storage credentials used for statement export.
type R2 struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	CDNBaseURL      string
}

// Enabled reports whether enough credentials are present to build a client.
func (r R2) Enabled() bool {
	return r.AccountID != "" && r.AccessKeyID != "" && r.AccessKeySecret != "" && r.Bucket != ""
}

// Config is the process configuration, read once at startup.
type Config struct {
	DBDriver       string
	DatabaseURL    string
	HTTPAddr       string
	AllowedOrigins []string
	ServiceToken   string

	EconomyFile string
	RedisURL    string

	AccountSyncURL   string
	InventorySyncURL string
	AuthServiceURL   string
	SyncInterval     time.Duration

	LogLevel  string
	LogFormat string

	R2 R2
}

// FromEnv loads .env when present, then reads the environment.
func FromEnv() (*Config, error) {
	_ = godotenv.Load()
	return fromLookup(os.Getenv)
}

func fromLookup(get func(string) string) (*Config, error) {
	cfg := &Config{
		DBDriver:         strings.ToLower(withDefault(get("DB_DRIVER"), "postgres")),
		DatabaseURL:      get("DATABASE_URL"),
		HTTPAddr:         withDefault(get("HTTP_ADDR"), ":5200"),
		ServiceToken:     get("REWARDS_SERVICE_TOKEN"),
		EconomyFile:      get("ECONOMY_FILE"),
		RedisURL:         get("REDIS_URL"),
		AccountSyncURL:   get("ACCOUNT_SYNC_URL"),
		InventorySyncURL: get("INVENTORY_SYNC_URL"),
		AuthServiceURL:   get("AUTH_SERVICE_URL"),
		LogLevel:         withDefault(get("LOG_LEVEL"), "info"),
		LogFormat:        withDefault(get("LOG_FORMAT"), "text"),
		R2: R2{
			AccountID:       get("CLOUDFLARE_ACCOUNT_ID"),
			AccessKeyID:     get("R2_ACCESS_KEY_ID"),
			AccessKeySecret: get("R2_ACCESS_KEY_SECRET"),
			Bucket:          get("R2_BUCKET_NAME"),
			CDNBaseURL:      get("CDN_BASE_URL"),
		},
	}

	origins := withDefault(get("ALLOWED_ORIGINS"), "http://localhost:3000")
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	cfg.SyncInterval = 10 * time.Second
	if raw := get("SYNC_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("SYNC_INTERVAL: invalid duration %q", raw)
		}
		cfg.SyncInterval = d
	}

	switch cfg.DBDriver {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable not set")
		}
	case "sqlite":
		if cfg.DatabaseURL == "" {
			cfg.DatabaseURL = "rewards.db"
		}
	default:
		return nil, fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", cfg.DBDriver)
	}
	return cfg, nil
}

// RequireServiceToken fails when the gateway token is missing. Only the
// serve command needs it.
func (c *Config) RequireServiceToken() error {
	if c.ServiceToken == "" {
		return fmt.Errorf("REWARDS_SERVICE_TOKEN environment variable not set")
	}
	return nil
}

func withDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}
