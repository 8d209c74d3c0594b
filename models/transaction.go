package models

import "github.com/shopspring/decimal"

// TransactionKind is the accounting side of a ledger row.
type TransactionKind string

const (
	TransactionKindEarn     TransactionKind = "earn"
	TransactionKindSpend    TransactionKind = "spend"
	TransactionKindWithdraw TransactionKind = "withdraw"
	TransactionKindBonus    TransactionKind = "bonus"
)

// IsCredit reports whether rows of this kind carry a non-negative amount.
func (k TransactionKind) IsCredit() bool {
	return k == TransactionKindEarn || k == TransactionKindBonus
}

// IsDebit reports whether rows of this kind carry a non-positive amount.
func (k TransactionKind) IsDebit() bool {
	return k == TransactionKindSpend || k == TransactionKindWithdraw
}

// TransactionSource is the business reason for a ledger row.
type TransactionSource string

const (
	SourceSession          TransactionSource = "session"
	SourceMission          TransactionSource = "mission"
	SourceReferral         TransactionSource = "referral"
	SourcePurchase         TransactionSource = "purchase"
	SourceWalletWithdrawal TransactionSource = "wallet_withdrawal"
	SourceWelcomeBonus     TransactionSource = "welcome_bonus"
)

// Transaction is an immutable ledger row. (user_id, source, source_id) is the
// idempotency key; rows without a source_id are never deduplicated.
type Transaction struct {
	ID           string            `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID       string            `gorm:"not null;type:varchar(64);index:idx_tx_user_created,priority:1;uniqueIndex:idx_tx_idempotency,priority:1" json:"user_id"`
	Kind         TransactionKind   `gorm:"not null;type:varchar(16);index" json:"type"`
	Amount       decimal.Decimal   `gorm:"type:decimal(20,8);not null" json:"amount"`
	Source       TransactionSource `gorm:"not null;type:varchar(32);uniqueIndex:idx_tx_idempotency,priority:2" json:"source"`
	SourceID     *string           `gorm:"type:varchar(64);uniqueIndex:idx_tx_idempotency,priority:3" json:"source_id,omitempty"`
	Description  string            `gorm:"type:text" json:"description"`
	BalanceAfter decimal.Decimal   `gorm:"type:decimal(20,8);not null" json:"balance_after"`
	CreatedAt    int64             `gorm:"not null;autoCreateTime:false;index:idx_tx_user_created,priority:2" json:"created_at"`
}
