// workers/server_sync_worker.go
package workers

import (
	"context"
	"net/http"
	"time"

	"privacy-rewards-system/models"
	"privacy-rewards-system/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RemoteServer matches one server in the inventory service's change feed.
type RemoteServer struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	CountryCode string              `json:"country_code"`
	CountryName string              `json:"country_name"`
	CityName    string              `json:"city_name"`
	LatencyMs   int                 `json:"latency"`
	MaxUsers    int                 `json:"max_users"`
	Status      models.ServerStatus `json:"status"`
	PremiumOnly bool                `json:"is_premium"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// ServerSyncClient pulls inventory changes into vpn_servers.
type ServerSyncClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	DB         *gorm.DB
}

func NewServerSyncClient(db *gorm.DB, baseURL, token string) *ServerSyncClient {
	return &ServerSyncClient{
		BaseURL:    baseURL,
		Token:      token,
		DB:         db,
		HTTPClient: utils.SyncHTTPClient,
	}
}

// GetChangedServers fetches servers changed since the cursor.
func (c *ServerSyncClient) GetChangedServers(ctx context.Context, since time.Time) ([]RemoteServer, error) {
	var response struct {
		Servers []RemoteServer `json:"servers"`
	}
	if err := fetchChanges(ctx, c.HTTPClient, c.BaseURL, "/api/v1/public/servers", c.Token, since, &response); err != nil {
		return nil, err
	}
	return response.Servers, nil
}

// Apply upserts descriptive fields. current_users and load are owned by
// session accounting and never overwritten.
func (c *ServerSyncClient) Apply(ctx context.Context, remote []RemoteServer) error {
	if len(remote) == 0 {
		return nil
	}
	rows := make([]models.Server, 0, len(remote))
	for _, r := range remote {
		status := r.Status
		if status == "" {
			status = models.ServerStatusOffline
		}
		rows = append(rows, models.Server{
			ID:          r.ID,
			Name:        r.Name,
			CountryCode: r.CountryCode,
			CountryName: r.CountryName,
			CityName:    r.CityName,
			LatencyMs:   r.LatencyMs,
			MaxUsers:    r.MaxUsers,
			Status:      status,
			PremiumOnly: r.PremiumOnly,
		})
	}

	return c.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "country_code", "country_name", "city_name",
			"latency_ms", "max_users", "status", "premium_only", "updated_at",
		}),
	}).Create(&rows).Error
}

// PollServers applies inventory changes every pollInterval until ctx ends.
func PollServers(ctx context.Context, client *ServerSyncClient, pollInterval time.Duration) {
	utils.Log.Info("🛰️ Starting server inventory polling…")
	var lastSyncTime time.Time

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		pollTime := time.Now().UTC()
		servers, err := client.GetChangedServers(ctx, lastSyncTime)
		if err != nil {
			utils.Log.WithError(err).Error("❌ Error polling server inventory")
		} else if err := client.Apply(ctx, servers); err != nil {
			// Keep the cursor so the same window is retried next tick
			utils.Log.WithError(err).Errorf("❌ Failed to upsert %d server(s)", len(servers))
		} else {
			if len(servers) > 0 {
				utils.Log.Infof("✅ Upserted %d server(s) into vpn_servers", len(servers))
			}
			lastSyncTime = pollTime
		}

		select {
		case <-ctx.Done():
			utils.Log.Info("Server inventory polling stopped.")
			return
		case <-ticker.C:
		}
	}
}
