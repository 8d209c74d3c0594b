package services

import (
	"testing"

	"privacy-rewards-system/models"

	"github.com/stretchr/testify/require"
)

func TestScorePrefersLowLoad(t *testing.T) {
	idle := models.Server{Name: "idle", Load: 10, LatencyMs: 20}
	busy := models.Server{Name: "busy", Load: 90, LatencyMs: 20}

	require.InDelta(t, 93.2, Score(idle), 1e-9)
	require.InDelta(t, 45.2, Score(busy), 1e-9)

	best, err := Best([]models.Server{busy, idle})
	require.NoError(t, err)
	require.Equal(t, "idle", best.Name)
}

func TestRankIsStableAndDoesNotMutate(t *testing.T) {
	in := []models.Server{
		{Name: "a", Load: 50, LatencyMs: 100},
		{Name: "b", Load: 50, LatencyMs: 100},
		{Name: "c", Load: 0, LatencyMs: 0},
	}
	ranked := Rank(in)
	require.Equal(t, []string{"c", "a", "b"}, []string{ranked[0].Name, ranked[1].Name, ranked[2].Name})
	require.Equal(t, "a", in[0].Name)
}

func TestBestEmpty(t *testing.T) {
	_, err := Best(nil)
	require.ErrorIs(t, err, ErrNoServersAvailable)
}

func TestServerSelectorFilters(t *testing.T) {
	s := newTestStack(t)
	ctx := t.Context()
	s.addServer(t, models.Server{Name: "Berlin", CountryCode: "de", Load: 70})
	s.addServer(t, models.Server{Name: "Munich", CountryCode: "DE", Load: 5})
	s.addServer(t, models.Server{Name: "Zurich", CountryCode: "CH", PremiumOnly: true})
	s.addServer(t, models.Server{Name: "Paris", CountryCode: "FR", Status: models.ServerStatusOffline})

	free, err := s.selector.Candidates(ctx, ServerQuery{})
	require.NoError(t, err)
	require.Len(t, free, 2)
	require.Equal(t, "Berlin", free[0].Name)

	all, err := s.selector.Candidates(ctx, ServerQuery{Premium: true})
	require.NoError(t, err)
	require.Len(t, all, 3)

	best, err := s.selector.Best(ctx, ServerQuery{CountryCode: "de"})
	require.NoError(t, err)
	require.Equal(t, "Munich", best.Name)

	_, err = s.selector.Best(ctx, ServerQuery{CountryCode: "FR"})
	require.ErrorIs(t, err, ErrNoServersAvailable)
	_, err = s.selector.Best(ctx, ServerQuery{CountryCode: "CH"})
	require.ErrorIs(t, err, ErrNoServersAvailable)
}
