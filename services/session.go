// services/session.go
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
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CloseRequest carries the final counters reported by the client on disconnect.
// Nil blocker counters count as zero.
type CloseRequest struct {
	SessionID       string
	UserID          string // when set, the session must belong to this user
	BytesIn         int64
	BytesOut        int64
	TrackersBlocked *int64
	AdsBlocked      *int64
}

// CloseResult is the settlement summary returned to the client.
type CloseResult struct {
	SessionID        string              `json:"session_id"`
	DurationMinutes  int64               `json:"duration"`
	Reward           decimal.Decimal     `json:"reward"`
	BytesTransferred int64               `json:"bytes_transferred"`
	EconomyVersion   string              `json:"economy_version"`
	Transaction      *models.Transaction `json:"transaction,omitempty"`
	Completions      []MissionCompletion `json:"missions_completed,omitempty"`
}

// HeartbeatRequest overwrites the running counters of an active session.
type HeartbeatRequest struct {
	SessionID       string
	UserID          string
	BytesIn         int64
	BytesOut        int64
	TrackersBlocked int64
	AdsBlocked      int64
}

// SessionService opens, updates and settles VPN sessions.
type SessionService struct {
	DB       *gorm.DB
	Ledger   *LedgerService
	Missions *MissionEngine
	Accounts *AccountService
	Now      func() time.Time
}

func NewSessionService(db *gorm.DB, ledger *LedgerService, missions *MissionEngine, accounts *AccountService) *SessionService {
	return &SessionService{DB: db, Ledger: ledger, Missions: missions, Accounts: accounts, Now: time.Now}
}

// Start opens a session on serverID and counts the user against its load.
func (s *SessionService) Start(ctx context.Context, userID, serverID string) (*models.Session, error) {
	var session *models.Session
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var active int64
		if err := tx.Model(&models.Session{}).
			Where("user_id = ? AND status = ?", userID, models.SessionStatusActive).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return ErrAlreadyActive
		}

		var server models.Server
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", serverID).First(&server).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if server.Status != models.ServerStatusActive {
			return ErrNoServersAvailable
		}
		if server.PremiumOnly {
			premium, err := s.Accounts.isPremiumTx(tx, userID)
			if err != nil {
				return err
			}
			if !premium {
				return ErrPremiumRequired
			}
		}

		created := models.Session{
			ID:        uuid.NewString(),
			UserID:    userID,
			ServerID:  server.ID,
			StartedAt: models.NowMillis(s.Now()),
			IcrEarned: decimal.Zero,
			Status:    models.SessionStatusActive,
		}
		if err := tx.Create(&created).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyActive
			}
			return fmt.Errorf("insert session: %w", err)
		}

		users := server.CurrentUsers + 1
		if err := tx.Model(&models.Server{}).Where("id = ?", server.ID).Updates(map[string]interface{}{
			"current_users": users,
			"load":          models.LoadFor(users, server.MaxUsers),
		}).Error; err != nil {
			return fmt.Errorf("update server load: %w", err)
		}
		session = &created
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.Log.WithFields(logrus.Fields{
		"user_id":    userID,
		"session_id": session.ID,
		"server_id":  serverID,
	}).Info("🔌 VPN session started")
	return session, nil
}

// Heartbeat records running counters. It never touches the ledger.
func (s *SessionService) Heartbeat(ctx context.Context, req HeartbeatRequest) (*models.Session, error) {
	var session models.Session
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.lockSession(tx, req.SessionID, req.UserID, &session); err != nil {
			return err
		}
		patch := map[string]interface{}{
			"bytes_in":         req.BytesIn,
			"bytes_out":        req.BytesOut,
			"trackers_blocked": req.TrackersBlocked,
			"ads_blocked":      req.AdsBlocked,
		}
		if err := tx.Model(&models.Session{}).Where("id = ?", session.ID).Updates(patch).Error; err != nil {
			return err
		}
		session.BytesIn = req.BytesIn
		session.BytesOut = req.BytesOut
		session.TrackersBlocked = req.TrackersBlocked
		session.AdsBlocked = req.AdsBlocked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Close settles the session: completes it, releases the server slot, credits
// the reward and forwards the activity to the mission engine, all in one
// transaction. Failures after the state checks return ErrSettlementFailed and
// leave the session active.
func (s *SessionService) Close(ctx context.Context, req CloseRequest) (*CloseResult, error) {
	economy := s.Ledger.Economy
	var result *CloseResult

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session models.Session
		if err := s.lockSession(tx, req.SessionID, req.UserID, &session); err != nil {
			return err
		}

		settled, err := s.settleTx(tx, &session, req, economy)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSettlementFailed, err)
		}
		result = settled
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrSettlementFailed):
			metrics.RecordSessionClose("failed")
			utils.Log.WithError(err).WithField("session_id", req.SessionID).Error("❌ Session settlement rolled back")
		default:
			metrics.RecordSessionClose("rejected")
		}
		return nil, err
	}

	metrics.RecordSessionClose("completed")
	metrics.RecordLedgerEntry(string(result.Transaction.Kind), string(result.Transaction.Source), result.Transaction.Amount)
	RecordCompletions(result.Completions)
	utils.Log.WithFields(logrus.Fields{
		"session_id": result.SessionID,
		"minutes":    result.DurationMinutes,
		"reward":     result.Reward.String(),
		"economy":    result.EconomyVersion,
	}).Info("✅ VPN session settled")
	return result, nil
}

func (s *SessionService) settleTx(tx *gorm.DB, session *models.Session, req CloseRequest, economy Economy) (*CloseResult, error) {
	now := models.NowMillis(s.Now())

	minutes := (now - session.StartedAt) / 60000
	if minutes < 0 {
		minutes = 0
	}
	// Heartbeat counters never reach the reward
	var trackers, ads int64
	if req.TrackersBlocked != nil {
		trackers = *req.TrackersBlocked
	}
	if req.AdsBlocked != nil {
		ads = *req.AdsBlocked
	}
	reward := economy.SessionReward(minutes, trackers, ads)

	firstToday, err := s.firstSessionOfDayTx(tx, session.UserID, now)
	if err != nil {
		return nil, err
	}

	if err := tx.Model(&models.Session{}).Where("id = ?", session.ID).Updates(map[string]interface{}{
		"status":           models.SessionStatusCompleted,
		"ended_at":         now,
		"bytes_in":         req.BytesIn,
		"bytes_out":        req.BytesOut,
		"trackers_blocked": trackers,
		"ads_blocked":      ads,
		"icr_earned":       reward,
		"economy_version":  economy.Version,
	}).Error; err != nil {
		return nil, fmt.Errorf("complete session: %w", err)
	}

	if err := s.releaseServerTx(tx, session.ServerID); err != nil {
		return nil, err
	}

	credit, err := s.Ledger.CreditTx(tx, CreditRequest{
		UserID:      session.UserID,
		Amount:      reward,
		Kind:        models.TransactionKindEarn,
		Source:      models.SourceSession,
		SourceID:    session.ID,
		Description: fmt.Sprintf("VPN session: %dmin, %d trackers blocked", minutes, trackers),
	})
	if err != nil {
		return nil, err
	}

	delta := models.ActivityDelta{
		SessionDuration: minutes,
		TrackersBlocked: trackers,
		AdsBlocked:      ads,
	}
	if firstToday {
		delta.ActiveDays = 1
	}
	var completions []MissionCompletion
	if s.Missions != nil {
		completions, err = s.Missions.ApplyActivityTx(tx, session.UserID, delta)
		if err != nil {
			return nil, err
		}
	}

	return &CloseResult{
		SessionID:        session.ID,
		DurationMinutes:  minutes,
		Reward:           reward,
		BytesTransferred: req.BytesIn + req.BytesOut,
		EconomyVersion:   economy.Version,
		Transaction:      credit,
		Completions:      completions,
	}, nil
}

// firstSessionOfDayTx reports whether no session of the user closed earlier on
// the same UTC day.
func (s *SessionService) firstSessionOfDayTx(tx *gorm.DB, userID string, nowMs int64) (bool, error) {
	t := time.UnixMilli(nowMs).UTC()
	dayStart := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).UnixMilli()

	var count int64
	if err := tx.Model(&models.Session{}).
		Where("user_id = ? AND status = ? AND ended_at >= ?", userID, models.SessionStatusCompleted, dayStart).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count == 0, nil
}

// releaseServerTx decrements the server's user count, floored at zero.
func (s *SessionService) releaseServerTx(tx *gorm.DB, serverID string) error {
	var server models.Server
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", serverID).First(&server).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.Log.WithField("server_id", serverID).Warn("⚠️ Session server no longer in inventory, skipping load release")
		return nil
	}
	if err != nil {
		return err
	}

	users := server.CurrentUsers - 1
	if users < 0 {
		users = 0
	}
	return tx.Model(&models.Server{}).Where("id = ?", server.ID).Updates(map[string]interface{}{
		"current_users": users,
		"load":          models.LoadFor(users, server.MaxUsers),
	}).Error
}

// lockSession loads and locks an active session owned by userID (when given).
func (s *SessionService) lockSession(tx *gorm.DB, sessionID, userID string, out *models.Session) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", sessionID).First(out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if userID != "" && out.UserID != userID {
		return ErrNotFound
	}
	if out.Status != models.SessionStatusActive {
		return ErrAlreadyClosed
	}
	return nil
}

// Active returns the user's open session, or ErrNotFound.
func (s *SessionService) Active(ctx context.Context, userID string) (*models.Session, error) {
	var session models.Session
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.SessionStatusActive).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// History returns the user's sessions, newest first.
func (s *SessionService) History(ctx context.Context, userID string, limit int) ([]models.Session, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var sessions []models.Session
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("started_at DESC").
		Limit(limit).
		Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}
