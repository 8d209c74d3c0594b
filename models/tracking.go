package models

import "github.com/shopspring/decimal"

// Tracker categories reported by the browser extension.
const (
	TrackerCategoryAdvertising = "advertising"
	TrackerCategoryAnalytics   = "analytics"
	TrackerCategorySocial      = "social"
	TrackerCategoryUnknown     = "unknown"
)

// TrackerLog is one tracker request seen by a client. Browser events carry no session.
type TrackerLog struct {
	ID         string  `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID     string  `gorm:"not null;type:varchar(64);index:idx_tracker_user_time,priority:1" json:"user_id"`
	SessionID  *string `gorm:"type:varchar(36);index" json:"session_id"`
	Domain     string  `gorm:"not null;type:varchar(255);index" json:"domain"`
	Category   string  `gorm:"not null;type:varchar(32)" json:"category"`
	Timestamp  int64   `gorm:"not null;index:idx_tracker_user_time,priority:2" json:"timestamp"`
	WasBlocked bool    `gorm:"not null" json:"was_blocked"`
}

// PrivacyScore is a user's daily privacy summary, one row per UTC date.
type PrivacyScore struct {
	ID              string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID          string          `gorm:"not null;type:varchar(64);uniqueIndex:idx_privacy_user_date,priority:1" json:"user_id"`
	Date            string          `gorm:"not null;type:varchar(10);uniqueIndex:idx_privacy_user_date,priority:2" json:"date"`
	Score           decimal.Decimal `gorm:"type:decimal(5,1);not null" json:"score"`
	TrackersBlocked int64           `gorm:"not null;default:0" json:"trackers_blocked"`
	UpdatedAt       int64           `gorm:"not null;autoUpdateTime:false" json:"updated_at"`
}
