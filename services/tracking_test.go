package services

import (
	"fmt"
	"testing"
	"time"

	"privacy-rewards-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTrackingService(s *testStack) *TrackingService {
	tracking := NewTrackingService(s.db)
	tracking.Now = s.clock.Now
	return tracking
}

func privacyScore(t *testing.T, s *testStack, userID, date string) models.PrivacyScore {
	t.Helper()
	var score models.PrivacyScore
	require.NoError(t, s.db.Where("user_id = ? AND date = ?", userID, date).First(&score).Error)
	return score
}

func TestTrackingScoreOpensAtFiftyAndSteps(t *testing.T) {
	s := newTestStack(t)
	tracking := newTrackingService(s)
	ctx := t.Context()

	entry, err := tracking.LogBlockedTracker(ctx, TrackerEvent{
		UserID: "u1", Domain: " Pixel.Example.COM ", Category: "Analytics", WasBlocked: true,
	})
	require.NoError(t, err)
	require.Equal(t, "pixel.example.com", entry.Domain)
	require.Equal(t, models.TrackerCategoryAnalytics, entry.Category)
	require.Equal(t, models.NowMillis(s.clock.Now()), entry.Timestamp)
	require.Nil(t, entry.SessionID)

	score := privacyScore(t, s, "u1", "2024-03-14")
	requireDecimal(t, "50", score.Score)
	require.EqualValues(t, 1, score.TrackersBlocked)

	_, err = tracking.LogBlockedTracker(ctx, TrackerEvent{UserID: "u1", Domain: "ads.example", Category: "beacon", WasBlocked: true})
	require.NoError(t, err)
	score = privacyScore(t, s, "u1", "2024-03-14")
	requireDecimal(t, "50.1", score.Score)
	require.EqualValues(t, 2, score.TrackersBlocked)

	// Allowed requests are logged but leave the score alone
	_, err = tracking.LogBlockedTracker(ctx, TrackerEvent{UserID: "u1", Domain: "cdn.example", WasBlocked: false})
	require.NoError(t, err)
	score = privacyScore(t, s, "u1", "2024-03-14")
	requireDecimal(t, "50.1", score.Score)

	var logs int64
	require.NoError(t, s.db.Model(&models.TrackerLog{}).Where("user_id = ?", "u1").Count(&logs).Error)
	require.EqualValues(t, 3, logs)

	_, err = tracking.LogBlockedTracker(ctx, TrackerEvent{UserID: "u1", Domain: "  "})
	require.ErrorIs(t, err, ErrInvalidTracker)
}

func TestTrackingScoreCapsAtHundred(t *testing.T) {
	s := newTestStack(t)
	tracking := newTrackingService(s)
	ctx := t.Context()

	_, err := tracking.LogBlockedTracker(ctx, TrackerEvent{UserID: "u1", Domain: "a.example", WasBlocked: true})
	require.NoError(t, err)
	require.NoError(t, s.db.Model(&models.PrivacyScore{}).
		Where("user_id = ?", "u1").Update("score", dec("99.9")).Error)

	for i := 0; i < 3; i++ {
		_, err = tracking.LogBlockedTracker(ctx, TrackerEvent{UserID: "u1", Domain: "a.example", WasBlocked: true})
		require.NoError(t, err)
	}
	score := privacyScore(t, s, "u1", "2024-03-14")
	requireDecimal(t, "100", score.Score)
	require.EqualValues(t, 4, score.TrackersBlocked)
}

func TestTrackingScoreIsPerUTCDay(t *testing.T) {
	s := newTestStack(t)
	tracking := newTrackingService(s)
	ctx := t.Context()

	late := time.Date(2024, 3, 14, 23, 59, 0, 0, time.UTC)
	for _, ts := range []time.Time{late, late, late.Add(2 * time.Minute)} {
		_, err := tracking.LogBlockedTracker(ctx, TrackerEvent{
			UserID: "u1", Domain: "a.example", Timestamp: ts.UnixMilli(), WasBlocked: true,
		})
		require.NoError(t, err)
	}

	requireDecimal(t, "50.1", privacyScore(t, s, "u1", "2024-03-14").Score)
	next := privacyScore(t, s, "u1", "2024-03-15")
	requireDecimal(t, "50", next.Score)
	require.EqualValues(t, 1, next.TrackersBlocked)
}

func TestTrackingStats(t *testing.T) {
	s := newTestStack(t)
	tracking := newTrackingService(s)
	ctx := t.Context()
	now := s.clock.Now()

	for i := 0; i < 55; i++ {
		_, err := tracking.LogBlockedTracker(ctx, TrackerEvent{
			UserID:     "u1",
			Domain:     fmt.Sprintf("t%d.example", i),
			Category:   models.TrackerCategoryAdvertising,
			Timestamp:  now.Add(-time.Duration(i) * time.Minute).UnixMilli(),
			WasBlocked: i%5 != 0,
		})
		require.NoError(t, err)
	}
	_, err := tracking.LogBlockedTracker(ctx, TrackerEvent{
		UserID: "u1", Domain: "social.example", Category: "social", Timestamp: now.Add(-3 * 24 * time.Hour).UnixMilli(), WasBlocked: true,
	})
	require.NoError(t, err)
	_, err = tracking.LogBlockedTracker(ctx, TrackerEvent{
		UserID: "u1", Domain: "old.example", Timestamp: now.Add(-10 * 24 * time.Hour).UnixMilli(), WasBlocked: true,
	})
	require.NoError(t, err)

	// VPN-side events are not browser stats
	sessionID := uuid.NewString()
	require.NoError(t, s.db.Create(&models.TrackerLog{
		ID: uuid.NewString(), UserID: "u1", SessionID: &sessionID, Domain: "vpn.example",
		Category: models.TrackerCategoryUnknown, Timestamp: now.UnixMilli(), WasBlocked: true,
	}).Error)

	stats, err := tracking.Stats(ctx, "u1", 0)
	require.NoError(t, err)
	require.Equal(t, 7, stats.Days)
	require.EqualValues(t, 45, stats.TotalBlocked)
	require.Equal(t, map[string]int64{
		models.TrackerCategoryAdvertising: 55,
		models.TrackerCategorySocial:      1,
	}, stats.ByCategory)
	require.Len(t, stats.Recent, 50)
	require.Equal(t, "t0.example", stats.Recent[0].Domain)
	require.Len(t, stats.Scores, 2)
	require.Equal(t, "2024-03-11", stats.Scores[0].Date)
	require.Equal(t, "2024-03-14", stats.Scores[1].Date)

	wide, err := tracking.Stats(ctx, "u1", 365)
	require.NoError(t, err)
	require.Equal(t, 90, wide.Days)
	require.EqualValues(t, 46, wide.TotalBlocked)
	require.Equal(t, int64(1), wide.ByCategory[models.TrackerCategoryUnknown])
	require.Len(t, wide.Scores, 3)
}
