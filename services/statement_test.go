package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"privacy-rewards-system/models"

	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	objects map[string][]byte
}

func (m *memoryStore) Put(_ context.Context, key string, body []byte, _ string) (string, error) {
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[key] = body
	return "https://cdn.test/" + key, nil
}

func TestStatementExportCoversOneDay(t *testing.T) {
	s := newTestStack(t)
	ctx := t.Context()

	_, err := s.ledger.Credit(ctx, CreditRequest{UserID: "u1", Amount: dec("20"), Source: models.SourceSession})
	require.NoError(t, err)
	_, err = s.ledger.Spend(ctx, "u1", dec("5"), "sticker pack")
	require.NoError(t, err)
	_, err = s.ledger.Credit(ctx, CreditRequest{UserID: "u2", Amount: dec("3"), Source: models.SourceSession})
	require.NoError(t, err)

	// Next day activity stays out of the statement
	s.clock.Advance(24 * time.Hour)
	_, err = s.ledger.Credit(ctx, CreditRequest{UserID: "u1", Amount: dec("100"), Source: models.SourceSession})
	require.NoError(t, err)

	store := &memoryStore{}
	exporter := NewStatementExporter(s.db, s.ledger, store)
	exporter.Now = s.clock.Now

	res, err := exporter.Export(ctx, s.clock.Now().AddDate(0, 0, -1))
	require.NoError(t, err)
	require.Equal(t, "statements/2024-03-14.json", res.Key)
	require.Equal(t, "https://cdn.test/statements/2024-03-14.json", res.URL)
	require.Equal(t, 2, res.Users)
	require.Equal(t, 3, res.Transactions)
	require.Empty(t, res.Inconsistent)

	var st Statement
	require.NoError(t, json.Unmarshal(store.objects[res.Key], &st))
	require.Equal(t, "2024-03-14", st.Day)
	require.Equal(t, DefaultEconomy.Version, st.EconomyVersion)
	require.Len(t, st.Users, 2)
	require.Equal(t, "u1", st.Users[0].UserID)
	requireDecimal(t, "20", st.Users[0].Credits)
	requireDecimal(t, "5", st.Users[0].Debits)
	requireDecimal(t, "15", st.Users[0].ClosingBalance)
	require.True(t, st.Users[0].Consistent)
}

func TestStatementExportFlagsDrift(t *testing.T) {
	s := newTestStack(t)
	ctx := t.Context()

	_, err := s.ledger.Credit(ctx, CreditRequest{UserID: "u1", Amount: dec("20"), Source: models.SourceSession})
	require.NoError(t, err)
	require.NoError(t, s.db.Model(&models.Balance{}).Where("user_id = ?", "u1").Update("current", dec("21")).Error)

	exporter := NewStatementExporter(s.db, s.ledger, &memoryStore{})
	res, err := exporter.Export(ctx, s.clock.Now())
	require.NoError(t, err)
	require.Equal(t, []string{"u1"}, res.Inconsistent)
}

func TestStatementExportNeedsStore(t *testing.T) {
	s := newTestStack(t)
	_, err := NewStatementExporter(s.db, s.ledger, nil).Export(t.Context(), s.clock.Now())
	require.Error(t, err)
}
