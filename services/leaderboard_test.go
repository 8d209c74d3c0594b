package services

import (
	"testing"

	"privacy-rewards-system/models"

	"github.com/stretchr/testify/require"
)

func TestLeaderboardTopWithoutCache(t *testing.T) {
	s := newTestStack(t)
	ctx := t.Context()
	s.addAccount(t, "u1", "alice", false)
	s.addAccount(t, "u2", "bob", false)

	for user, amount := range map[string]string{"u1": "12", "u2": "40", "u3": "7"} {
		_, err := s.ledger.Credit(ctx, CreditRequest{UserID: user, Amount: dec(amount), Source: models.SourceSession})
		require.NoError(t, err)
	}
	// Spending does not lower lifetime earnings
	_, err := s.ledger.Spend(ctx, "u2", dec("35"), "gift card")
	require.NoError(t, err)

	board := NewLeaderboardService(s.db, nil)
	top, err := board.Top(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	require.Equal(t, LeaderboardEntry{Rank: 1, UserID: "u2", Username: "bob", LifetimeEarned: top[0].LifetimeEarned}, top[0])
	requireDecimal(t, "40", top[0].LifetimeEarned)
	require.Equal(t, "alice", top[1].Username)

	all, err := board.Top(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "u3", all[2].Username)
	require.Equal(t, 3, all[2].Rank)
}
