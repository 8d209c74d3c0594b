// services/mission.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"privacy-rewards-system/metrics"
	"privacy-rewards-system/models"
	"privacy-rewards-system/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MissionCompletion is one instance that reached its target during ApplyActivity.
// Reward is nil when the definition had already paid out for this user.
type MissionCompletion struct {
	Instance models.MissionInstance `json:"instance"`
	Reward   *models.Transaction    `json:"reward,omitempty"`
}

// AvailableMission is a definition the user may start, with their active progress if any.
type AvailableMission struct {
	models.MissionDefinition
	ActiveInstanceID string `json:"active_instance_id,omitempty"`
	Progress         int64  `json:"progress"`
}

// MissionEngine tracks per-user mission progress and pays out completions.
type MissionEngine struct {
	DB       *gorm.DB
	Ledger   *LedgerService
	Accounts *AccountService
	Now      func() time.Time
}

func NewMissionEngine(db *gorm.DB, ledger *LedgerService, accounts *AccountService) *MissionEngine {
	return &MissionEngine{DB: db, Ledger: ledger, Accounts: accounts, Now: time.Now}
}

// Start activates a mission definition for the user.
func (e *MissionEngine) Start(ctx context.Context, userID, definitionID string) (*models.MissionInstance, error) {
	var inst *models.MissionInstance
	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := models.NowMillis(e.Now())

		var def models.MissionDefinition
		if err := tx.Where("id = ?", definitionID).First(&def).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if !def.AvailableAt(now) {
			return ErrMissionInactive
		}
		if def.PremiumOnly {
			premium, err := e.Accounts.isPremiumTx(tx, userID)
			if err != nil {
				return err
			}
			if !premium {
				return ErrPremiumRequired
			}
		}

		var running int64
		if err := tx.Model(&models.MissionInstance{}).
			Where("user_id = ? AND mission_definition_id = ? AND status = ?", userID, def.ID, models.MissionStatusActive).
			Count(&running).Error; err != nil {
			return err
		}
		if running > 0 {
			return ErrAlreadyActive
		}

		created := models.MissionInstance{
			ID:                  uuid.NewString(),
			UserID:              userID,
			MissionDefinitionID: def.ID,
			Status:              models.MissionStatusActive,
			StartedAt:           now,
		}
		if def.DurationSeconds != nil {
			expires := now + *def.DurationSeconds*1000
			created.ExpiresAt = &expires
		}
		if err := tx.Create(&created).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyActive
			}
			return err
		}
		created.MissionDefinition = &def
		inst = &created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// ApplyActivity advances the user's active missions by delta in its own transaction.
func (e *MissionEngine) ApplyActivity(ctx context.Context, userID string, delta models.ActivityDelta) ([]MissionCompletion, error) {
	var completions []MissionCompletion
	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		completions, err = e.ApplyActivityTx(tx, userID, delta)
		return err
	})
	if err != nil {
		return nil, err
	}
	RecordCompletions(completions)
	return completions, nil
}

// ApplyActivityTx advances the user's active missions inside the caller's transaction.
// Overdue instances are expired instead of advanced. An instance reaching its
// target is clamped, completed and credited once per definition.
func (e *MissionEngine) ApplyActivityTx(tx *gorm.DB, userID string, delta models.ActivityDelta) ([]MissionCompletion, error) {
	if delta.IsZero() {
		return nil, nil
	}
	now := models.NowMillis(e.Now())

	var instances []models.MissionInstance
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("MissionDefinition").
		Where("user_id = ? AND status = ?", userID, models.MissionStatusActive).
		Order("started_at ASC").
		Find(&instances).Error; err != nil {
		return nil, fmt.Errorf("load active missions for %s: %w", userID, err)
	}

	var completions []MissionCompletion
	for i := range instances {
		inst := &instances[i]
		def := inst.MissionDefinition
		if def == nil {
			utils.Log.WithField("instance_id", inst.ID).Warn("⚠️ Mission instance without definition, skipping")
			continue
		}

		if inst.ExpiredAt(now) {
			if err := tx.Model(&models.MissionInstance{}).Where("id = ?", inst.ID).
				Update("status", models.MissionStatusExpired).Error; err != nil {
				return nil, err
			}
			continue
		}

		gain := def.Type.ProgressFrom(delta)
		if gain <= 0 {
			continue
		}
		progress := inst.Progress + gain

		if progress < def.TargetValue {
			if err := tx.Model(&models.MissionInstance{}).Where("id = ?", inst.ID).
				Update("progress", progress).Error; err != nil {
				return nil, err
			}
			continue
		}

		if err := tx.Model(&models.MissionInstance{}).Where("id = ?", inst.ID).Updates(map[string]interface{}{
			"progress":     def.TargetValue,
			"status":       models.MissionStatusCompleted,
			"completed_at": now,
		}).Error; err != nil {
			return nil, err
		}
		inst.Progress = def.TargetValue
		inst.Status = models.MissionStatusCompleted
		completedAt := now
		inst.CompletedAt = &completedAt

		reward, err := e.rewardTx(tx, userID, def)
		if err != nil {
			return nil, err
		}
		completions = append(completions, MissionCompletion{Instance: *inst, Reward: reward})
	}
	return completions, nil
}

// rewardTx credits a definition's reward unless this user was already paid for it.
func (e *MissionEngine) rewardTx(tx *gorm.DB, userID string, def *models.MissionDefinition) (*models.Transaction, error) {
	paid, err := e.Ledger.HasTransactionTx(tx, userID, models.SourceMission, def.ID)
	if err != nil {
		return nil, err
	}
	if paid {
		return nil, nil
	}
	return e.Ledger.CreditTx(tx, CreditRequest{
		UserID:      userID,
		Amount:      def.RewardAmount,
		Kind:        models.TransactionKindEarn,
		Source:      models.SourceMission,
		SourceID:    def.ID,
		Description: fmt.Sprintf("Mission completed: %s", def.Title),
	})
}

// Claim pays out a completed instance whose reward was not yet credited.
func (e *MissionEngine) Claim(ctx context.Context, userID, instanceID string) (*models.Transaction, error) {
	var reward *models.Transaction
	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inst models.MissionInstance
		err := tx.Preload("MissionDefinition").
			Where("id = ? AND user_id = ?", instanceID, userID).
			First(&inst).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if inst.Status != models.MissionStatusCompleted {
			return ErrNotCompleted
		}
		if inst.MissionDefinition == nil {
			return ErrNotFound
		}

		paid, err := e.Ledger.HasTransactionTx(tx, userID, models.SourceMission, inst.MissionDefinitionID)
		if err != nil {
			return err
		}
		if paid {
			return ErrAlreadyClaimed
		}
		reward, err = e.rewardTx(tx, userID, inst.MissionDefinition)
		if errors.Is(err, ErrDuplicateTransaction) {
			return ErrAlreadyClaimed
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordLedgerEntry(string(reward.Kind), string(reward.Source), reward.Amount)
	return reward, nil
}

// ListAvailable returns startable definitions visible to the user.
// Premium-only definitions are hidden unless premium is set.
func (e *MissionEngine) ListAvailable(ctx context.Context, userID string, premium bool) ([]AvailableMission, error) {
	now := models.NowMillis(e.Now())

	q := e.DB.WithContext(ctx).
		Where("active = ?", true).
		Where("start_date IS NULL OR start_date <= ?", now).
		Where("end_date IS NULL OR end_date >= ?", now)
	if !premium {
		q = q.Where("premium_only = ?", false)
	}
	var defs []models.MissionDefinition
	if err := q.Order("created_at ASC").Find(&defs).Error; err != nil {
		return nil, err
	}

	var running []models.MissionInstance
	if err := e.DB.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.MissionStatusActive).
		Find(&running).Error; err != nil {
		return nil, err
	}
	byDef := make(map[string]models.MissionInstance, len(running))
	for _, inst := range running {
		byDef[inst.MissionDefinitionID] = inst
	}

	out := make([]AvailableMission, 0, len(defs))
	for _, d := range defs {
		am := AvailableMission{MissionDefinition: d}
		if inst, ok := byDef[d.ID]; ok && !inst.ExpiredAt(now) {
			am.ActiveInstanceID = inst.ID
			am.Progress = inst.Progress
		}
		out = append(out, am)
	}
	return out, nil
}

// ListInstances returns the user's mission instances, optionally filtered by status.
func (e *MissionEngine) ListInstances(ctx context.Context, userID string, status models.MissionStatus) ([]models.MissionInstance, error) {
	q := e.DB.WithContext(ctx).Preload("MissionDefinition").Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var instances []models.MissionInstance
	if err := q.Order("started_at DESC").Find(&instances).Error; err != nil {
		return nil, err
	}
	return instances, nil
}

// ExpireOverdue moves every active instance whose time limit passed before now to expired.
func (e *MissionEngine) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	res := e.DB.WithContext(ctx).Model(&models.MissionInstance{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", models.MissionStatusActive, models.NowMillis(now)).
		Update("status", models.MissionStatusExpired)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		utils.Log.WithField("count", res.RowsAffected).Info("⏰ Expired overdue mission instances")
	}
	return res.RowsAffected, nil
}

// RecordCompletions publishes metrics and logs for completions after commit.
func RecordCompletions(completions []MissionCompletion) {
	for _, c := range completions {
		def := c.Instance.MissionDefinition
		missionType := "unknown"
		if def != nil {
			missionType = string(def.Type)
		}
		metrics.RecordMissionCompleted(missionType)
		fields := logrus.Fields{
			"user_id":     c.Instance.UserID,
			"instance_id": c.Instance.ID,
			"mission_id":  c.Instance.MissionDefinitionID,
		}
		if c.Reward != nil {
			metrics.RecordLedgerEntry(string(c.Reward.Kind), string(c.Reward.Source), c.Reward.Amount)
			fields["reward"] = c.Reward.Amount.String()
		}
		utils.Log.WithFields(fields).Info("🏆 Mission completed")
	}
}
