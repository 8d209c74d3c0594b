package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
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

// CreditRequest describes a non-negative ledger entry.
type CreditRequest struct {
	UserID      string
	Amount      decimal.Decimal
	Kind        models.TransactionKind // earn (default) or bonus
	Source      models.TransactionSource
	SourceID    string // optional idempotency reference
	Description string
}

// DebitRequest describes a ledger entry that lowers the balance.
type DebitRequest struct {
	UserID        string
	Amount        decimal.Decimal // positive magnitude; stored negated
	Kind          models.TransactionKind
	Source        models.TransactionSource
	SourceID      string
	Description   string
	WalletAddress string // recorded on the balance for withdrawals
}

// TransactionFilter narrows a history query.
type TransactionFilter struct {
	Limit int
	Kind  models.TransactionKind
}

// AuditResult compares the stored balance with the sum of its transactions.
type AuditResult struct {
	UserID         string          `json:"user_id"`
	Balance        decimal.Decimal `json:"balance"`
	TransactionSum decimal.Decimal `json:"transaction_sum"`
	Count          int64           `json:"transaction_count"`
	Consistent     bool            `json:"consistent"`
}

// LedgerService owns Balance and Transaction. Every mutation locks the user's
// balance row for the duration of one DB transaction.
type LedgerService struct {
	DB      *gorm.DB
	Economy Economy
	Now     func() time.Time
}

func NewLedgerService(db *gorm.DB, economy Economy) *LedgerService {
	return &LedgerService{DB: db, Economy: economy, Now: time.Now}
}

// Credit applies a credit as its own atomic unit.
func (s *LedgerService) Credit(ctx context.Context, req CreditRequest) (*models.Transaction, error) {
	var out *models.Transaction
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := s.CreditTx(tx, req)
		if err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordLedgerEntry(string(out.Kind), string(out.Source), out.Amount)
	return out, nil
}

// CreditTx applies a credit inside the caller's transaction.
func (s *LedgerService) CreditTx(tx *gorm.DB, req CreditRequest) (*models.Transaction, error) {
	if req.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: credit %s", ErrInvalidAmount, req.Amount)
	}
	if req.Kind == "" {
		req.Kind = models.TransactionKindEarn
	}
	if !req.Kind.IsCredit() {
		return nil, fmt.Errorf("credit with non-credit kind %q", req.Kind)
	}

	bal, err := s.lockBalance(tx, req.UserID)
	if err != nil {
		return nil, err
	}
	now := nextStamp(models.NowMillis(s.Now()), bal.UpdatedAt)
	if err := s.ensureUnused(tx, req.UserID, req.Source, req.SourceID); err != nil {
		return nil, err
	}

	newBalance := bal.Current.Add(req.Amount)
	if err := tx.Model(&models.Balance{}).Where("id = ?", bal.ID).Updates(map[string]interface{}{
		"current":         newBalance,
		"lifetime_earned": bal.LifetimeEarned.Add(req.Amount),
		"updated_at":      now,
	}).Error; err != nil {
		return nil, fmt.Errorf("update balance for %s: %w", req.UserID, err)
	}

	return s.insert(tx, &models.Transaction{
		UserID:       req.UserID,
		Kind:         req.Kind,
		Amount:       req.Amount,
		Source:       req.Source,
		SourceID:     optional(req.SourceID),
		Description:  req.Description,
		BalanceAfter: newBalance,
		CreatedAt:    now,
	})
}

// Debit applies a debit as its own atomic unit.
func (s *LedgerService) Debit(ctx context.Context, req DebitRequest) (*models.Transaction, error) {
	var out *models.Transaction
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := s.DebitTx(tx, req)
		if err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordLedgerEntry(string(out.Kind), string(out.Source), out.Amount)
	return out, nil
}

// DebitTx applies a debit inside the caller's transaction. Nothing is written
// when the balance cannot cover the amount.
func (s *LedgerService) DebitTx(tx *gorm.DB, req DebitRequest) (*models.Transaction, error) {
	if req.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: debit %s", ErrInvalidAmount, req.Amount)
	}
	if req.Kind == "" {
		req.Kind = models.TransactionKindSpend
	}
	if !req.Kind.IsDebit() {
		return nil, fmt.Errorf("debit with non-debit kind %q", req.Kind)
	}

	bal, err := s.lockBalance(tx, req.UserID)
	if err != nil {
		return nil, err
	}
	now := nextStamp(models.NowMillis(s.Now()), bal.UpdatedAt)
	if bal.Current.LessThan(req.Amount) {
		return nil, fmt.Errorf("%w: balance %s, requested %s", ErrInsufficientFunds, bal.Current, req.Amount)
	}
	if err := s.ensureUnused(tx, req.UserID, req.Source, req.SourceID); err != nil {
		return nil, err
	}

	newBalance := bal.Current.Sub(req.Amount)
	patch := map[string]interface{}{
		"current":    newBalance,
		"updated_at": now,
	}
	if req.WalletAddress != "" {
		patch["wallet_address"] = req.WalletAddress
	}
	if err := tx.Model(&models.Balance{}).Where("id = ?", bal.ID).Updates(patch).Error; err != nil {
		return nil, fmt.Errorf("update balance for %s: %w", req.UserID, err)
	}

	return s.insert(tx, &models.Transaction{
		UserID:       req.UserID,
		Kind:         req.Kind,
		Amount:       req.Amount.Neg(),
		Source:       req.Source,
		SourceID:     optional(req.SourceID),
		Description:  req.Description,
		BalanceAfter: newBalance,
		CreatedAt:    now,
	})
}

// Withdraw debits amount towards an external wallet. Settlement on chain is
// handled elsewhere; this only records the ledger side.
func (s *LedgerService) Withdraw(ctx context.Context, userID string, amount decimal.Decimal, walletAddress string) (*models.Transaction, error) {
	if walletAddress == "" {
		return nil, fmt.Errorf("wallet address is required")
	}
	return s.Debit(ctx, DebitRequest{
		UserID:        userID,
		Amount:        amount,
		Kind:          models.TransactionKindWithdraw,
		Source:        models.SourceWalletWithdrawal,
		Description:   fmt.Sprintf("Withdrawal to %s...", truncate(walletAddress, 10)),
		WalletAddress: walletAddress,
	})
}

// Spend debits amount for an in-app purchase.
func (s *LedgerService) Spend(ctx context.Context, userID string, amount decimal.Decimal, description string) (*models.Transaction, error) {
	return s.Debit(ctx, DebitRequest{
		UserID:      userID,
		Amount:      amount,
		Kind:        models.TransactionKindSpend,
		Source:      models.SourcePurchase,
		Description: description,
	})
}

// GrantWelcomeBonus issues the one-time registration bonus. Repeated calls
// return the original transaction.
func (s *LedgerService) GrantWelcomeBonus(ctx context.Context, userID string) (*models.Transaction, bool, error) {
	t, err := s.Credit(ctx, CreditRequest{
		UserID:      userID,
		Amount:      s.Economy.Bonuses.Welcome,
		Kind:        models.TransactionKindBonus,
		Source:      models.SourceWelcomeBonus,
		SourceID:    userID,
		Description: "Welcome to PrivacyGuard VPN!",
	})
	if errors.Is(err, ErrDuplicateTransaction) {
		existing, findErr := s.FindTransaction(ctx, userID, models.SourceWelcomeBonus, userID)
		if findErr != nil {
			return nil, false, findErr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	utils.Log.WithFields(logrus.Fields{
		"user_id": userID,
		"amount":  t.Amount.String(),
	}).Info("🎁 Welcome bonus issued")
	return t, true, nil
}

// HasTransaction reports whether (user, source, sourceID) was already recorded.
func (s *LedgerService) HasTransaction(ctx context.Context, userID string, source models.TransactionSource, sourceID string) (bool, error) {
	return s.HasTransactionTx(s.DB.WithContext(ctx), userID, source, sourceID)
}

// HasTransactionTx is HasTransaction against the caller's transaction.
func (s *LedgerService) HasTransactionTx(tx *gorm.DB, userID string, source models.TransactionSource, sourceID string) (bool, error) {
	var count int64
	if err := tx.Model(&models.Transaction{}).
		Where("user_id = ? AND source = ? AND source_id = ?", userID, source, sourceID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindTransaction loads the transaction recorded under an idempotency key.
func (s *LedgerService) FindTransaction(ctx context.Context, userID string, source models.TransactionSource, sourceID string) (*models.Transaction, error) {
	var t models.Transaction
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND source = ? AND source_id = ?", userID, source, sourceID).
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Balance returns the user's balance, zero-valued when none exists yet.
func (s *LedgerService) Balance(ctx context.Context, userID string) (*models.Balance, error) {
	var bal models.Balance
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&bal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.Balance{
			UserID:         userID,
			Current:        decimal.Zero,
			LifetimeEarned: decimal.Zero,
			PendingRewards: decimal.Zero,
			UpdatedAt:      models.NowMillis(s.Now()),
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &bal, nil
}

// Transactions returns the user's history, newest first.
func (s *LedgerService) Transactions(ctx context.Context, userID string, f TransactionFilter) ([]models.Transaction, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	q := s.DB.WithContext(ctx).Where("user_id = ?", userID)
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}

	var txs []models.Transaction
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&txs).Error; err != nil {
		return nil, err
	}
	return txs, nil
}

// TransactionsSince returns transactions created strictly after sinceMs, oldest first.
func (s *LedgerService) TransactionsSince(ctx context.Context, userID string, sinceMs int64) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND created_at > ?", userID, sinceMs).
		Order("created_at ASC").
		Find(&txs).Error
	return txs, err
}

// Audit recomputes the transaction sum for a user and compares it with the balance.
func (s *LedgerService) Audit(ctx context.Context, userID string) (*AuditResult, error) {
	bal, err := s.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}

	var amounts []decimal.Decimal
	if err := s.DB.WithContext(ctx).Model(&models.Transaction{}).
		Where("user_id = ?", userID).
		Pluck("amount", &amounts).Error; err != nil {
		return nil, err
	}

	sum := decimal.Zero
	for _, a := range amounts {
		sum = sum.Add(a)
	}
	return &AuditResult{
		UserID:         userID,
		Balance:        bal.Current,
		TransactionSum: sum,
		Count:          int64(len(amounts)),
		Consistent:     sum.Equal(bal.Current),
	}, nil
}

// lockBalance creates the balance row if absent and locks it for the rest of tx.
func (s *LedgerService) lockBalance(tx *gorm.DB, userID string) (*models.Balance, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrNotFound)
	}

	seed := models.Balance{
		ID:             uuid.NewString(),
		UserID:         userID,
		Current:        decimal.Zero,
		LifetimeEarned: decimal.Zero,
		PendingRewards: decimal.Zero,
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&seed).Error; err != nil {
		return nil, fmt.Errorf("ensure balance for %s: %w", userID, err)
	}

	var bal models.Balance
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&bal).Error; err != nil {
		return nil, fmt.Errorf("lock balance for %s: %w", userID, err)
	}
	return &bal, nil
}

// lockBalances locks every listed balance row in ascending user id order.
func (s *LedgerService) lockBalances(tx *gorm.DB, userIDs ...string) error {
	ids := slices.Clone(userIDs)
	slices.Sort(ids)
	for _, id := range slices.Compact(ids) {
		if _, err := s.lockBalance(tx, id); err != nil {
			return err
		}
	}
	return nil
}

// ensureUnused fails with ErrDuplicateTransaction when the idempotency key is taken.
// Called after lockBalance so the check and the insert share one critical section.
func (s *LedgerService) ensureUnused(tx *gorm.DB, userID string, source models.TransactionSource, sourceID string) error {
	if sourceID == "" {
		return nil
	}
	exists, err := s.HasTransactionTx(tx, userID, source, sourceID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s/%s for user %s", ErrDuplicateTransaction, source, sourceID, userID)
	}
	return nil
}

func (s *LedgerService) insert(tx *gorm.DB, t *models.Transaction) (*models.Transaction, error) {
	t.ID = uuid.NewString()
	if err := tx.Create(t).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTransaction, t.Source)
		}
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	return t, nil
}

// nextStamp keeps a user's transaction timestamps strictly increasing so the
// newest row is always the one carrying the current balance.
func nextStamp(now, last int64) int64 {
	if now <= last {
		return last + 1
	}
	return now
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
