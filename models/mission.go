package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MissionType is the closed set of challenge kinds. Every value must be
// handled by ProgressFrom; Valid rejects anything else at seeding time.
type MissionType string

const (
	MissionSessionDuration MissionType = "sessionDuration"
	MissionTrackersBlocked MissionType = "trackersBlocked"
	MissionAdsBlocked      MissionType = "adsBlocked"
	MissionDailyStreak     MissionType = "dailyStreak"
	MissionReferral        MissionType = "referral"
)

// MissionTypes lists every supported mission type.
var MissionTypes = []MissionType{
	MissionSessionDuration,
	MissionTrackersBlocked,
	MissionAdsBlocked,
	MissionDailyStreak,
	MissionReferral,
}

// ActivityDelta is one batch of usage telemetry forwarded to the mission engine.
type ActivityDelta struct {
	SessionDuration int64 `json:"session_duration,omitempty"` // minutes
	TrackersBlocked int64 `json:"trackers_blocked,omitempty"`
	AdsBlocked      int64 `json:"ads_blocked,omitempty"`
	ActiveDays      int64 `json:"active_days,omitempty"`
	Referrals       int64 `json:"referrals,omitempty"`
}

// IsZero reports whether the delta carries no progress for any mission type.
func (d ActivityDelta) IsZero() bool {
	return d.SessionDuration <= 0 && d.TrackersBlocked <= 0 && d.AdsBlocked <= 0 &&
		d.ActiveDays <= 0 && d.Referrals <= 0
}

// ProgressFrom extracts the progress this mission type gains from d.
// Negative telemetry never counts.
func (t MissionType) ProgressFrom(d ActivityDelta) int64 {
	var v int64
	switch t {
	case MissionSessionDuration:
		v = d.SessionDuration
	case MissionTrackersBlocked:
		v = d.TrackersBlocked
	case MissionAdsBlocked:
		v = d.AdsBlocked
	case MissionDailyStreak:
		v = d.ActiveDays
	case MissionReferral:
		v = d.Referrals
	}
	if v < 0 {
		return 0
	}
	return v
}

// Valid reports whether t is one of the supported mission types.
func (t MissionType) Valid() bool {
	for _, known := range MissionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseMissionType converts a catalog string into a MissionType.
func ParseMissionType(s string) (MissionType, error) {
	t := MissionType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown mission type %q", s)
	}
	return t, nil
}

// MissionDefinition is a challenge template. Written by the seeding command only.
type MissionDefinition struct {
	ID              string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title           string          `gorm:"not null" json:"title"`
	Description     string          `gorm:"type:text" json:"description"`
	Type            MissionType     `gorm:"not null;type:varchar(32);index" json:"type"`
	TargetValue     int64           `gorm:"not null" json:"target_value"`
	RewardAmount    decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"reward_amount"`
	DurationSeconds *int64          `json:"duration,omitempty"`
	PremiumOnly     bool            `gorm:"not null;default:false" json:"is_premium_only"`
	Active          bool            `gorm:"not null;default:true;index" json:"is_active"`
	StartDate       *int64          `json:"start_date,omitempty"`
	EndDate         *int64          `json:"end_date,omitempty"`
	CreatedAt       int64           `gorm:"not null;autoCreateTime:false" json:"created_at"`
}

// AvailableAt reports whether the definition can be started at nowMs.
func (m *MissionDefinition) AvailableAt(nowMs int64) bool {
	if !m.Active {
		return false
	}
	if m.StartDate != nil && nowMs < *m.StartDate {
		return false
	}
	if m.EndDate != nil && nowMs > *m.EndDate {
		return false
	}
	return true
}

// MissionStatus is the mission instance state. completed and expired are terminal.
type MissionStatus string

const (
	MissionStatusActive    MissionStatus = "active"
	MissionStatusCompleted MissionStatus = "completed"
	MissionStatusExpired   MissionStatus = "expired"
)

// MissionInstance is one user's activation of a mission definition.
type MissionInstance struct {
	ID                  string        `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID              string        `gorm:"not null;type:varchar(64);index:idx_mission_user_status,priority:1;uniqueIndex:idx_mission_one_active,priority:1,where:status = 'active'" json:"user_id"`
	MissionDefinitionID string        `gorm:"not null;type:varchar(36);index;uniqueIndex:idx_mission_one_active,priority:2" json:"mission_id"`
	Progress            int64         `gorm:"not null;default:0" json:"progress"`
	Status              MissionStatus `gorm:"not null;type:varchar(16);index:idx_mission_user_status,priority:2" json:"status"`
	StartedAt           int64         `gorm:"not null" json:"started_at"`
	CompletedAt         *int64        `json:"completed_at,omitempty"`
	ExpiresAt           *int64        `json:"expires_at,omitempty"`

	MissionDefinition *MissionDefinition `gorm:"foreignKey:MissionDefinitionID" json:"mission,omitempty"`
}

// ExpiredAt reports whether the instance's time limit has passed at nowMs.
func (m *MissionInstance) ExpiredAt(nowMs int64) bool {
	return m.ExpiresAt != nil && nowMs > *m.ExpiresAt
}
