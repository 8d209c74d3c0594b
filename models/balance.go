package models

import "github.com/shopspring/decimal"

// Balance is the derived per-user ICR balance. Mutated only by the ledger.
type Balance struct {
	ID             string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID         string          `gorm:"uniqueIndex;not null;type:varchar(64)" json:"user_id"`
	Current        decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"balance"`
	LifetimeEarned decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"lifetime_earnings"`
	PendingRewards decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"pending_rewards"`
	WalletAddress  *string         `gorm:"type:varchar(128)" json:"wallet_address,omitempty"`
	UpdatedAt      int64           `gorm:"not null;autoUpdateTime:false" json:"updated_at"`
}
