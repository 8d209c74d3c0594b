// services/users.go
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"privacy-rewards-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AccountService reads and maintains the local AccountUser mirror.
type AccountService struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewAccountService(db *gorm.DB) *AccountService {
	return &AccountService{DB: db, Now: time.Now}
}

// Lookup returns the mirrored account, or ErrNotFound.
func (s *AccountService) Lookup(ctx context.Context, userID string) (*models.AccountUser, error) {
	return s.lookupTx(s.DB.WithContext(ctx), userID)
}

func (s *AccountService) lookupTx(tx *gorm.DB, userID string) (*models.AccountUser, error) {
	var u models.AccountUser
	err := tx.Where("id = ?", userID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// IsPremium reports whether the user currently holds premium. Unknown users are not premium.
func (s *AccountService) IsPremium(ctx context.Context, userID string) (bool, error) {
	return s.isPremiumTx(s.DB.WithContext(ctx), userID)
}

func (s *AccountService) isPremiumTx(tx *gorm.DB, userID string) (bool, error) {
	u, err := s.lookupTx(tx, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.IsPremiumAt(models.NowMillis(s.Now())), nil
}

// Upsert stores the account snapshot and reports whether the row was new.
func (s *AccountService) Upsert(ctx context.Context, u *models.AccountUser) (bool, error) {
	created := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.AccountUser{}).Where("id = ?", u.ID).Count(&count).Error; err != nil {
			return err
		}
		created = count == 0
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"username", "premium", "premium_expires_at", "updated_at"}),
		}).Create(u).Error
	})
	return created, err
}

// Search matches usernames case-insensitively.
func (s *AccountService) Search(ctx context.Context, query string, limit int) ([]models.AccountUser, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	db := s.DB.WithContext(ctx).Model(&models.AccountUser{}).Limit(limit)
	if query != "" {
		db = db.Where("LOWER(username) LIKE ?", "%"+strings.ToLower(strings.TrimSpace(query))+"%")
	}
	var users []models.AccountUser
	if err := db.Order("username ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}
