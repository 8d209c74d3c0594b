package models

import "github.com/shopspring/decimal"

// SessionStatus is the VPN session state. Only active sessions accept updates.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusError     SessionStatus = "error"
)

// Session is one continuous VPN connection between connect and disconnect.
// The partial unique index keeps at most one active session per user.
type Session struct {
	ID              string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID          string          `gorm:"not null;type:varchar(64);index;uniqueIndex:idx_session_one_active,where:status = 'active'" json:"user_id"`
	ServerID        string          `gorm:"not null;type:varchar(36);index" json:"server_id"`
	StartedAt       int64           `gorm:"not null;index" json:"started_at"`
	EndedAt         *int64          `json:"ended_at,omitempty"`
	BytesIn         int64           `gorm:"not null;default:0" json:"bytes_in"`
	BytesOut        int64           `gorm:"not null;default:0" json:"bytes_out"`
	TrackersBlocked int64           `gorm:"not null;default:0" json:"trackers_blocked"`
	AdsBlocked      int64           `gorm:"not null;default:0" json:"ads_blocked"`
	IcrEarned       decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"icr_earned"`
	Status          SessionStatus   `gorm:"not null;type:varchar(16);index" json:"status"`
	EconomyVersion  string          `gorm:"type:varchar(32)" json:"economy_version,omitempty"`
}

func (Session) TableName() string { return "vpn_sessions" }
