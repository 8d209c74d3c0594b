// services/statement.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"privacy-rewards-system/models"
	"privacy-rewards-system/utils"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ObjectStore persists exported documents.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// UserStatement is one user's ledger activity for a day.
type UserStatement struct {
	UserID         string          `json:"user_id"`
	Credits        decimal.Decimal `json:"credits"`
	Debits         decimal.Decimal `json:"debits"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
	Transactions   int             `json:"transaction_count"`
	Consistent     bool            `json:"consistent"`
}

// Statement is the exported daily ledger snapshot.
type Statement struct {
	Day            string          `json:"day"`
	GeneratedAt    int64           `json:"generated_at"`
	EconomyVersion string          `json:"economy_version"`
	Users          []UserStatement `json:"users"`
}

// StatementResult reports where a statement was written.
type StatementResult struct {
	Key          string   `json:"key"`
	URL          string   `json:"url"`
	Users        int      `json:"users"`
	Transactions int      `json:"transactions"`
	Inconsistent []string `json:"inconsistent,omitempty"`
}

// StatementExporter writes per-day ledger statements to object storage.
type StatementExporter struct {
	DB     *gorm.DB
	Ledger *LedgerService
	Store  ObjectStore
	Now    func() time.Time
}

func NewStatementExporter(db *gorm.DB, ledger *LedgerService, store ObjectStore) *StatementExporter {
	return &StatementExporter{DB: db, Ledger: ledger, Store: store, Now: time.Now}
}

// Build assembles the statement for the UTC day containing day.
func (e *StatementExporter) Build(ctx context.Context, day time.Time) (*Statement, error) {
	day = day.UTC()
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	var txs []models.Transaction
	if err := e.DB.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", start.UnixMilli(), end.UnixMilli()).
		Order("user_id ASC").
		Order("created_at ASC").
		Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("load transactions for %s: %w", start.Format("2006-01-02"), err)
	}

	byUser := make(map[string]*UserStatement)
	for _, t := range txs {
		us, ok := byUser[t.UserID]
		if !ok {
			us = &UserStatement{UserID: t.UserID, Credits: decimal.Zero, Debits: decimal.Zero}
			byUser[t.UserID] = us
		}
		if t.Amount.IsNegative() {
			us.Debits = us.Debits.Add(t.Amount.Neg())
		} else {
			us.Credits = us.Credits.Add(t.Amount)
		}
		us.ClosingBalance = t.BalanceAfter
		us.Transactions++
	}

	st := &Statement{
		Day:            start.Format("2006-01-02"),
		GeneratedAt:    models.NowMillis(e.Now()),
		EconomyVersion: e.Ledger.Economy.Version,
		Users:          make([]UserStatement, 0, len(byUser)),
	}
	for _, us := range byUser {
		audit, err := e.Ledger.Audit(ctx, us.UserID)
		if err != nil {
			return nil, err
		}
		us.Consistent = audit.Consistent
		st.Users = append(st.Users, *us)
	}
	sort.Slice(st.Users, func(i, j int) bool { return st.Users[i].UserID < st.Users[j].UserID })
	return st, nil
}

// Export builds the statement for day and uploads it as JSON.
func (e *StatementExporter) Export(ctx context.Context, day time.Time) (*StatementResult, error) {
	if e.Store == nil {
		return nil, fmt.Errorf("statement export: no object store configured")
	}
	st, err := e.Build(ctx, day)
	if err != nil {
		return nil, err
	}
	body, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode statement: %w", err)
	}

	key := fmt.Sprintf("statements/%s.json", st.Day)
	url, err := e.Store.Put(ctx, key, body, "application/json")
	if err != nil {
		return nil, err
	}

	res := &StatementResult{Key: key, URL: url, Users: len(st.Users)}
	for _, us := range st.Users {
		res.Transactions += us.Transactions
		if !us.Consistent {
			res.Inconsistent = append(res.Inconsistent, us.UserID)
		}
	}

	entry := utils.Log.WithFields(logrus.Fields{"key": key, "users": res.Users, "transactions": res.Transactions})
	if len(res.Inconsistent) > 0 {
		entry.WithField("inconsistent", res.Inconsistent).Error("❌ Ledger statement exported with inconsistent balances")
	} else {
		entry.Info("📄 Ledger statement exported")
	}
	return res, nil
}
