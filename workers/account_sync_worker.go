// workers/account_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"privacy-rewards-system/models"
	"privacy-rewards-system/services"
	"privacy-rewards-system/utils"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RemoteAccount matches one account in the account service's change feed.
type RemoteAccount struct {
	ID               string     `json:"id"`
	Username         string     `json:"username"`
	Premium          bool       `json:"premium"`
	PremiumExpiresAt *time.Time `json:"premium_expires_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// GetAccountChangesResponse is the top-level structure of the account feed.
type GetAccountChangesResponse struct {
	Accounts []RemoteAccount `json:"accounts"`
}

// AccountSyncWorker mirrors accounts into account_users and issues the
// welcome bonus for every account seen for the first time.
type AccountSyncWorker struct {
	db           *gorm.DB
	accounts     *services.AccountService
	ledger       *services.LedgerService
	interval     time.Duration
	baseURL      string // e.g., "http://accounts:8500"
	endpointPath string // e.g., "/api/v1/public/accounts"
	serviceToken string
	httpClient   *http.Client
}

func NewAccountSyncWorker(db *gorm.DB, accounts *services.AccountService, ledger *services.LedgerService, baseURL, serviceToken string, interval time.Duration) *AccountSyncWorker {
	return &AccountSyncWorker{
		db:           db,
		accounts:     accounts,
		ledger:       ledger,
		interval:     interval,
		baseURL:      baseURL,
		endpointPath: "/api/v1/public/accounts",
		serviceToken: serviceToken,
		httpClient:   utils.SyncHTTPClient,
	}
}

func (w *AccountSyncWorker) Start(ctx context.Context) {
	utils.Log.Info("🔁 Starting Account Sync Worker (account-service → account_users)…")
	go w.run(ctx)
}

func (w *AccountSyncWorker) run(ctx context.Context) {
	// Initial sync from the beginning of time
	if _, err := w.SyncOnce(ctx, time.Time{}); err != nil {
		utils.Log.WithError(err).Warn("⚠️ Initial account sync failed")
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.SyncOnce(ctx, w.lastSyncTime(ctx)); err != nil {
				utils.Log.WithError(err).Error("❌ Account sync batch failed")
			}
		case <-ctx.Done():
			utils.Log.Info("⏹️ Account Sync Worker stopped")
			return
		}
	}
}

// lastSyncTime is the newest updated_at in the local mirror.
func (w *AccountSyncWorker) lastSyncTime(ctx context.Context) time.Time {
	var latest models.AccountUser
	err := w.db.WithContext(ctx).Unscoped().Order("updated_at DESC").First(&latest).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Log.WithError(err).Warn("⚠️ Could not read account sync cursor")
		}
		return time.Unix(0, 0)
	}
	return latest.UpdatedAt
}

// SyncResult counts what one batch did.
type SyncResult struct {
	Received      int
	Upserted      int
	Errors        int
	BonusesIssued int
}

// SyncOnce fetches account changes since the cursor, upserts them and grants
// welcome bonuses to new accounts.
func (w *AccountSyncWorker) SyncOnce(ctx context.Context, since time.Time) (*SyncResult, error) {
	var response GetAccountChangesResponse
	if err := fetchChanges(ctx, w.httpClient, w.baseURL, w.endpointPath, w.serviceToken, since, &response); err != nil {
		return nil, err
	}

	res := &SyncResult{Received: len(response.Accounts)}
	if res.Received == 0 {
		utils.Log.Debugf("[SYNC] ✅ No account changes since %s", since.UTC().Format(time.RFC3339))
		return res, nil
	}

	for _, remote := range response.Accounts {
		if remote.ID == "" {
			res.Errors++
			continue
		}
		local := models.AccountUser{
			ID:       remote.ID,
			Username: remote.Username,
			Premium:  remote.Premium,
			Timestamps: models.Timestamps{
				CreatedAt: remote.CreatedAt,
				UpdatedAt: remote.UpdatedAt,
			},
		}
		if remote.PremiumExpiresAt != nil {
			local.PremiumExpiresAt = models.NowMillis(*remote.PremiumExpiresAt)
		}

		created, err := w.accounts.Upsert(ctx, &local)
		if err != nil {
			res.Errors++
			utils.Log.WithError(err).WithField("user_id", remote.ID).Warn("[SYNC] ⚠️ Failed to upsert account_user")
			continue
		}
		res.Upserted++

		if created {
			if _, issued, err := w.ledger.GrantWelcomeBonus(ctx, remote.ID); err != nil {
				res.Errors++
				utils.Log.WithError(err).WithField("user_id", remote.ID).Error("[SYNC] ❌ Welcome bonus failed")
			} else if issued {
				res.BonusesIssued++
			}
		}
	}

	utils.Log.WithFields(logrus.Fields{
		"received": res.Received,
		"upserted": res.Upserted,
		"errors":   res.Errors,
		"bonuses":  res.BonusesIssued,
	}).Info("[SYNC] ✅ Accounts synced")
	return res, nil
}

// fetchChanges GETs baseURL+path?since=... with the service token and decodes into out.
func fetchChanges(ctx context.Context, client *http.Client, baseURL, path, token string, since time.Time, out interface{}) error {
	base, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid sync service URL '%s': %w", baseURL, err)
	}
	endpointURL := base.JoinPath(path)
	q := endpointURL.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpointURL.RawQuery = q.Encode()
	finalURL := endpointURL.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request to %s: %w", finalURL, err)
	}
	req.Header.Set("X-Service-Token", token)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request to sync service failed: %w", err)
	}
	defer func() {
		// Always drain & close to prevent connection leaks
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("sync service returned status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode sync service response: %w", err)
	}
	return nil
}
