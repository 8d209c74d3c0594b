// services/leaderboard.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"privacy-rewards-system/models"
	"privacy-rewards-system/utils"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const leaderboardCachePrefix = "rewards:leaderboard:top:"

// LeaderboardEntry is one ranked earner.
type LeaderboardEntry struct {
	Rank           int             `json:"rank"`
	UserID         string          `json:"user_id"`
	Username       string          `json:"username"`
	LifetimeEarned decimal.Decimal `json:"lifetime_earned"`
}

// LeaderboardService ranks users by lifetime earnings. Results are cached in
// Redis for TTL when a client is configured.
type LeaderboardService struct {
	DB    *gorm.DB
	Cache redis.Cmdable
	TTL   time.Duration
}

func NewLeaderboardService(db *gorm.DB, cache redis.Cmdable) *LeaderboardService {
	return &LeaderboardService{DB: db, Cache: cache, TTL: 30 * time.Second}
}

// Top returns the limit highest lifetime earners.
func (s *LeaderboardService) Top(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	key := fmt.Sprintf("%s%d", leaderboardCachePrefix, limit)

	if s.Cache != nil {
		raw, err := s.Cache.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var cached []LeaderboardEntry
			if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
				return cached, nil
			}
		case !errors.Is(err, redis.Nil):
			utils.Log.WithError(err).Warn("⚠️ Leaderboard cache read failed")
		}
	}

	type row struct {
		UserID         string
		Username       *string
		LifetimeEarned decimal.Decimal
	}
	var rows []row
	if err := s.DB.WithContext(ctx).
		Model(&models.Balance{}).
		Select("balances.user_id, account_users.username, balances.lifetime_earned").
		Joins("LEFT JOIN account_users ON account_users.id = balances.user_id").
		Where("balances.lifetime_earned > 0").
		Order("balances.lifetime_earned DESC").
		Order("balances.user_id ASC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, len(rows))
	for i, r := range rows {
		name := r.UserID
		if r.Username != nil && *r.Username != "" {
			name = *r.Username
		}
		entries[i] = LeaderboardEntry{
			Rank:           i + 1,
			UserID:         r.UserID,
			Username:       name,
			LifetimeEarned: r.LifetimeEarned,
		}
	}

	if s.Cache != nil {
		if raw, err := json.Marshal(entries); err == nil {
			if err := s.Cache.Set(ctx, key, raw, s.TTL).Err(); err != nil {
				utils.Log.WithError(err).Warn("⚠️ Leaderboard cache write failed")
			}
		}
	}
	return entries, nil
}
