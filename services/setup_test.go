package services

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"privacy-rewards-system/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, models.AutoMigrate(db))
	return db
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testStack struct {
	db        *gorm.DB
	clock     *testClock
	accounts  *AccountService
	ledger    *LedgerService
	missions  *MissionEngine
	referrals *ReferralService
	sessions  *SessionService
	selector  *ServerSelector
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	db := setupTestDB(t)
	clock := newTestClock()

	accounts := NewAccountService(db)
	accounts.Now = clock.Now
	ledger := NewLedgerService(db, DefaultEconomy)
	ledger.Now = clock.Now
	missions := NewMissionEngine(db, ledger, accounts)
	missions.Now = clock.Now
	referrals := NewReferralService(db, ledger, missions, accounts)
	referrals.Now = clock.Now
	sessions := NewSessionService(db, ledger, missions, accounts)
	sessions.Now = clock.Now

	return &testStack{
		db:        db,
		clock:     clock,
		accounts:  accounts,
		ledger:    ledger,
		missions:  missions,
		referrals: referrals,
		sessions:  sessions,
		selector:  NewServerSelector(db),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, got.Equal(dec(want)), "want %s, got %s", want, got)
}

func (s *testStack) addAccount(t *testing.T, id, username string, premium bool) {
	t.Helper()
	require.NoError(t, s.db.Create(&models.AccountUser{ID: id, Username: username, Premium: premium}).Error)
}

func (s *testStack) addServer(t *testing.T, srv models.Server) models.Server {
	t.Helper()
	if srv.ID == "" {
		srv.ID = uuid.NewString()
	}
	if srv.Status == "" {
		srv.Status = models.ServerStatusActive
	}
	require.NoError(t, s.db.Create(&srv).Error)
	return srv
}

func (s *testStack) addMission(t *testing.T, def models.MissionDefinition) models.MissionDefinition {
	t.Helper()
	def.ID = uuid.NewString()
	def.Active = true
	def.CreatedAt = models.NowMillis(s.clock.Now())
	require.NoError(t, s.db.Create(&def).Error)
	return def
}

func (s *testStack) balance(t *testing.T, userID string) *models.Balance {
	t.Helper()
	bal, err := s.ledger.Balance(t.Context(), userID)
	require.NoError(t, err)
	return bal
}
