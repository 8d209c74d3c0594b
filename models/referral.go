package models

import "github.com/shopspring/decimal"

// ReferralStatus tracks the lifecycle of a referral row.
type ReferralStatus string

const (
	ReferralStatusPending   ReferralStatus = "pending"
	ReferralStatusCompleted ReferralStatus = "completed"
	ReferralStatusRewarded  ReferralStatus = "rewarded"
)

// Referral links an inviting user to an invited user. At most one per referred user, ever.
type Referral struct {
	ID           string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ReferrerID   string          `gorm:"index;not null;type:varchar(64)" json:"referrer_id"`
	ReferredID   string          `gorm:"uniqueIndex;not null;type:varchar(64)" json:"referred_user_id"`
	Code         string          `gorm:"index;not null;type:varchar(64)" json:"referral_code"`
	Status       ReferralStatus  `gorm:"not null;type:varchar(16);index" json:"status"`
	RewardAmount decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"reward_amount"`
	CreatedAt    int64           `gorm:"not null;autoCreateTime:false" json:"created_at"`
	CompletedAt  *int64          `json:"completed_at,omitempty"`
}

// ReferralCode is an issued code resolving to its referrer.
type ReferralCode struct {
	Code      string `gorm:"primaryKey;type:varchar(64)" json:"code"`
	UserID    string `gorm:"index;not null;type:varchar(64)" json:"user_id"`
	CreatedAt int64  `gorm:"not null;autoCreateTime:false" json:"created_at"`
}
