package models

import (
	"time"

	"gorm.io/gorm"
)

// Timestamps adds GORM auto-times to the mirrored collaborator tables
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// NowMillis returns t as milliseconds since epoch, UTC.
func NowMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}
