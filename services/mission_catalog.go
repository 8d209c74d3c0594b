// services/mission_catalog.go
package services

import (
	"context"
	"fmt"
	"time"

	"privacy-rewards-system/models"
	"privacy-rewards-system/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DefaultMissions is the launch catalog written by the seed-missions command.
var DefaultMissions = []models.MissionDefinition{
	{
		Title:        "First Connection",
		Description:  "Connect to VPN for the first time",
		Type:         models.MissionSessionDuration,
		TargetValue:  1,
		RewardAmount: decimal.NewFromInt(5),
	},
	{
		Title:        "Privacy Warrior",
		Description:  "Block 100 trackers",
		Type:         models.MissionTrackersBlocked,
		TargetValue:  100,
		RewardAmount: decimal.NewFromInt(10),
	},
	{
		Title:        "Ad-Free Explorer",
		Description:  "Block 50 ads",
		Type:         models.MissionAdsBlocked,
		TargetValue:  50,
		RewardAmount: decimal.NewFromInt(8),
	},
	{
		Title:        "VPN Marathon",
		Description:  "Stay connected for 60 minutes",
		Type:         models.MissionSessionDuration,
		TargetValue:  60,
		RewardAmount: decimal.NewFromInt(15),
	},
	{
		Title:        "Premium Explorer",
		Description:  "Block 500 trackers (Premium only)",
		Type:         models.MissionTrackersBlocked,
		TargetValue:  500,
		RewardAmount: decimal.NewFromInt(50),
		PremiumOnly:  true,
	},
}

// SeedMissions inserts every definition whose title is not in the catalog yet.
// Returns the number of rows written.
func SeedMissions(ctx context.Context, db *gorm.DB, defs []models.MissionDefinition, now time.Time) (int, error) {
	written := 0
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, d := range defs {
			if !d.Type.Valid() {
				return fmt.Errorf("mission %q: unknown type %q", d.Title, d.Type)
			}
			if d.TargetValue <= 0 {
				return fmt.Errorf("mission %q: target must be positive", d.Title)
			}
			if d.RewardAmount.IsNegative() {
				return fmt.Errorf("mission %q: %w", d.Title, ErrInvalidAmount)
			}

			var count int64
			if err := tx.Model(&models.MissionDefinition{}).Where("title = ?", d.Title).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}

			d.ID = uuid.NewString()
			d.Active = true
			d.CreatedAt = models.NowMillis(now)
			if err := tx.Create(&d).Error; err != nil {
				return fmt.Errorf("insert mission %q: %w", d.Title, err)
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	utils.Log.WithField("count", written).Info("🌱 Mission catalog seeded")
	return written, nil
}
