// services/referral.go
package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"privacy-rewards-system/metrics"
	"privacy-rewards-system/models"
	"privacy-rewards-system/utils"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

const (
	referralShareBase   = "https://privacyguard.app/ref/"
	referralSuffixLen   = 6
	referralMaxAttempts = 5
	referralAlphabet    = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// IssuedCode is a stored referral code plus its share link.
type IssuedCode struct {
	Code     string `json:"code"`
	ShareURL string `json:"share_url"`
}

// RedeemResult summarizes a successful redemption.
type RedeemResult struct {
	ReferralID    string              `json:"referral_id"`
	ReferrerID    string              `json:"referrer_id"`
	ReferrerBonus decimal.Decimal     `json:"referrer_bonus"`
	ReferredBonus decimal.Decimal     `json:"referred_bonus"`
	Completions   []MissionCompletion `json:"-"`
	credits       []*models.Transaction
}

// ReferralStats is the referrer's view of their invitations.
type ReferralStats struct {
	TotalReferrals     int64             `json:"total_referrals"`
	CompletedReferrals int64             `json:"completed_referrals"`
	TotalEarned        decimal.Decimal   `json:"total_earned"`
	Recent             []models.Referral `json:"recent"`
}

// ReferralService issues and redeems referral codes.
type ReferralService struct {
	DB       *gorm.DB
	Ledger   *LedgerService
	Missions *MissionEngine
	Accounts *AccountService
	Now      func() time.Time
}

func NewReferralService(db *gorm.DB, ledger *LedgerService, missions *MissionEngine, accounts *AccountService) *ReferralService {
	return &ReferralService{DB: db, Ledger: ledger, Missions: missions, Accounts: accounts, Now: time.Now}
}

// GenerateCode issues a new code of the form PREFIX_xxxxxx for the user.
func (s *ReferralService) GenerateCode(ctx context.Context, userID string) (*IssuedCode, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrNotFound)
	}
	prefix := s.codePrefix(ctx, userID)

	for attempt := 0; attempt < referralMaxAttempts; attempt++ {
		suffix, err := randomSuffix(referralSuffixLen)
		if err != nil {
			return nil, err
		}
		code := prefix + "_" + suffix

		var taken int64
		if err := s.DB.WithContext(ctx).Model(&models.ReferralCode{}).Where("code = ?", code).Count(&taken).Error; err != nil {
			return nil, err
		}
		if taken > 0 {
			continue
		}
		rc := models.ReferralCode{Code: code, UserID: userID, CreatedAt: models.NowMillis(s.Now())}
		if err := s.DB.WithContext(ctx).Create(&rc).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				continue
			}
			return nil, fmt.Errorf("store referral code: %w", err)
		}
		return &IssuedCode{Code: code, ShareURL: referralShareBase + code}, nil
	}
	return nil, fmt.Errorf("could not allocate a unique referral code after %d attempts", referralMaxAttempts)
}

// codePrefix is the upper-cased slug of the username, or of the user id when
// the account mirror does not know the user.
func (s *ReferralService) codePrefix(ctx context.Context, userID string) string {
	base := userID
	if s.Accounts != nil {
		if u, err := s.Accounts.Lookup(ctx, userID); err == nil && u.Username != "" {
			base = u.Username
		}
	}
	p := strings.ReplaceAll(slug.Make(base), "-", "")
	if p == "" {
		p = "USER"
	}
	if len(p) > 12 {
		p = p[:12]
	}
	return cases.Upper(language.Und).String(p)
}

func randomSuffix(n int) (string, error) {
	radix := big.NewInt(int64(len(referralAlphabet)))
	var b strings.Builder
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, radix)
		if err != nil {
			return "", fmt.Errorf("draw referral suffix: %w", err)
		}
		b.WriteByte(referralAlphabet[idx.Int64()])
	}
	return strings.ToUpper(b.String()), nil
}

// Redeem links userID to the code's owner and pays both sides in one transaction.
func (s *ReferralService) Redeem(ctx context.Context, userID, code string) (*RedeemResult, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	var result *RedeemResult

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rc models.ReferralCode
		found := true
		if err := tx.Where("code = ?", code).First(&rc).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			found = false
		}

		// Both balances are locked in user id order before any check
		locked := []string{userID}
		if found {
			locked = append(locked, rc.UserID)
		}
		if err := s.Ledger.lockBalances(tx, locked...); err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&models.Referral{}).Where("referred_id = ?", userID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrAlreadyReferred
		}
		if !found {
			return ErrInvalidCode
		}
		if rc.UserID == userID {
			return ErrSelfReferral
		}

		now := models.NowMillis(s.Now())
		bonuses := s.Ledger.Economy.Bonuses
		ref := models.Referral{
			ID:           uuid.NewString(),
			ReferrerID:   rc.UserID,
			ReferredID:   userID,
			Code:         rc.Code,
			Status:       models.ReferralStatusCompleted,
			RewardAmount: bonuses.Referrer,
			CreatedAt:    now,
			CompletedAt:  &now,
		}
		if err := tx.Create(&ref).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyReferred
			}
			return fmt.Errorf("insert referral: %w", err)
		}

		referrerCredit, err := s.Ledger.CreditTx(tx, CreditRequest{
			UserID:      rc.UserID,
			Amount:      bonuses.Referrer,
			Kind:        models.TransactionKindEarn,
			Source:      models.SourceReferral,
			SourceID:    ref.ID,
			Description: "Referral bonus",
		})
		if err != nil {
			return err
		}
		referredCredit, err := s.Ledger.CreditTx(tx, CreditRequest{
			UserID:      userID,
			Amount:      bonuses.Referred,
			Kind:        models.TransactionKindEarn,
			Source:      models.SourceReferral,
			SourceID:    ref.ID,
			Description: "Welcome bonus from referral",
		})
		if err != nil {
			return err
		}

		var completions []MissionCompletion
		if s.Missions != nil {
			completions, err = s.Missions.ApplyActivityTx(tx, rc.UserID, models.ActivityDelta{Referrals: 1})
			if err != nil {
				return err
			}
		}

		result = &RedeemResult{
			ReferralID:    ref.ID,
			ReferrerID:    rc.UserID,
			ReferrerBonus: referrerCredit.Amount,
			ReferredBonus: referredCredit.Amount,
			Completions:   completions,
			credits:       []*models.Transaction{referrerCredit, referredCredit},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, t := range result.credits {
		metrics.RecordLedgerEntry(string(t.Kind), string(t.Source), t.Amount)
	}
	metrics.RecordReferralRedeemed()
	RecordCompletions(result.Completions)
	utils.Log.WithFields(logrus.Fields{
		"referral_id": result.ReferralID,
		"referrer_id": result.ReferrerID,
		"referred_id": userID,
	}).Info("🤝 Referral redeemed")
	return result, nil
}

// Stats returns the user's referral totals and their 50 most recent referrals.
func (s *ReferralService) Stats(ctx context.Context, userID string) (*ReferralStats, error) {
	db := s.DB.WithContext(ctx)
	stats := &ReferralStats{TotalEarned: decimal.Zero}

	if err := db.Model(&models.Referral{}).Where("referrer_id = ?", userID).
		Count(&stats.TotalReferrals).Error; err != nil {
		return nil, err
	}

	paid := []models.ReferralStatus{models.ReferralStatusCompleted, models.ReferralStatusRewarded}
	var amounts []decimal.Decimal
	if err := db.Model(&models.Referral{}).
		Where("referrer_id = ? AND status IN ?", userID, paid).
		Pluck("reward_amount", &amounts).Error; err != nil {
		return nil, err
	}
	stats.CompletedReferrals = int64(len(amounts))
	for _, a := range amounts {
		stats.TotalEarned = stats.TotalEarned.Add(a)
	}

	if err := db.Where("referrer_id = ?", userID).
		Order("created_at DESC").Limit(50).
		Find(&stats.Recent).Error; err != nil {
		return nil, err
	}
	return stats, nil
}
