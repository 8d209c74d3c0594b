// services/tracking.go
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"privacy-rewards-system/metrics"
	"privacy-rewards-system/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultStatsDays = 7
	maxStatsDays     = 90
	recentTrackers   = 50
)

var (
	privacyScoreStart = decimal.NewFromInt(50)
	privacyScoreStep  = decimal.RequireFromString("0.1")
	privacyScoreMax   = decimal.NewFromInt(100)
)

// TrackerEvent is one tracker request reported by the browser extension.
type TrackerEvent struct {
	UserID     string
	Domain     string
	Category   string
	Timestamp  int64 // ms; zero means now
	WasBlocked bool
}

// BrowserStats summarizes the browser tracker events of a window.
type BrowserStats struct {
	Days         int                   `json:"days"`
	TotalBlocked int64                 `json:"total_blocked"`
	ByCategory   map[string]int64      `json:"by_category"`
	Recent       []models.TrackerLog   `json:"recent"`
	Scores       []models.PrivacyScore `json:"scores"`
}

// TrackingService records blocked trackers and keeps the daily privacy score.
type TrackingService struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewTrackingService(db *gorm.DB) *TrackingService {
	return &TrackingService{DB: db, Now: time.Now}
}

// NormalizeTrackerCategory maps free-form categories onto the known set.
func NormalizeTrackerCategory(category string) string {
	switch c := strings.ToLower(strings.TrimSpace(category)); c {
	case models.TrackerCategoryAdvertising, models.TrackerCategoryAnalytics, models.TrackerCategorySocial:
		return c
	default:
		return models.TrackerCategoryUnknown
	}
}

// LogBlockedTracker stores the event and, when it was blocked, bumps the
// privacy score of the event's UTC day. The first blocked tracker of a day
// opens the score at 50; each further one adds 0.1 up to 100.
func (s *TrackingService) LogBlockedTracker(ctx context.Context, ev TrackerEvent) (*models.TrackerLog, error) {
	domain := strings.ToLower(strings.TrimSpace(ev.Domain))
	if domain == "" || len(domain) > 255 {
		return nil, ErrInvalidTracker
	}
	now := models.NowMillis(s.Now())
	if ev.Timestamp <= 0 {
		ev.Timestamp = now
	}

	entry := models.TrackerLog{
		ID:         uuid.NewString(),
		UserID:     ev.UserID,
		Domain:     domain,
		Category:   NormalizeTrackerCategory(ev.Category),
		Timestamp:  ev.Timestamp,
		WasBlocked: ev.WasBlocked,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("insert tracker log: %w", err)
		}
		if !entry.WasBlocked {
			return nil
		}
		return s.bumpScoreTx(tx, entry.UserID, scoreDate(entry.Timestamp), now)
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordTrackerEvent(entry.Category, entry.WasBlocked)
	return &entry, nil
}

func (s *TrackingService) bumpScoreTx(tx *gorm.DB, userID, date string, now int64) error {
	opened := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.PrivacyScore{
		ID:              uuid.NewString(),
		UserID:          userID,
		Date:            date,
		Score:           privacyScoreStart,
		TrackersBlocked: 1,
		UpdatedAt:       now,
	})
	if opened.Error != nil {
		return fmt.Errorf("open privacy score: %w", opened.Error)
	}
	if opened.RowsAffected > 0 {
		return nil
	}

	var score models.PrivacyScore
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND date = ?", userID, date).
		First(&score).Error; err != nil {
		return fmt.Errorf("load privacy score: %w", err)
	}
	return tx.Model(&models.PrivacyScore{}).Where("id = ?", score.ID).Updates(map[string]interface{}{
		"trackers_blocked": score.TrackersBlocked + 1,
		"score":            decimal.Min(privacyScoreMax, score.Score.Add(privacyScoreStep)),
		"updated_at":       now,
	}).Error
}

// Stats returns the browser tracker activity of the last days (default 7).
func (s *TrackingService) Stats(ctx context.Context, userID string, days int) (*BrowserStats, error) {
	if days <= 0 {
		days = defaultStatsDays
	}
	if days > maxStatsDays {
		days = maxStatsDays
	}
	now := s.Now().UTC()
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)

	var logs []models.TrackerLog
	if err := s.DB.WithContext(ctx).
		Where("user_id = ? AND timestamp >= ? AND session_id IS NULL", userID, cutoff.UnixMilli()).
		Order("timestamp DESC").
		Find(&logs).Error; err != nil {
		return nil, err
	}

	stats := &BrowserStats{Days: days, ByCategory: map[string]int64{}}
	for _, l := range logs {
		if l.WasBlocked {
			stats.TotalBlocked++
		}
		stats.ByCategory[l.Category]++
	}
	stats.Recent = logs[:min(len(logs), recentTrackers)]

	if err := s.DB.WithContext(ctx).
		Where("user_id = ? AND date >= ?", userID, scoreDate(cutoff.UnixMilli())).
		Order("date ASC").
		Find(&stats.Scores).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

func scoreDate(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.DateOnly)
}
