package services

import (
	"sync"
	"testing"
	"time"

	"privacy-rewards-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func trackerMission(target int64, reward string) models.MissionDefinition {
	return models.MissionDefinition{
		Title:        "Privacy Warrior",
		Type:         models.MissionTrackersBlocked,
		TargetValue:  target,
		RewardAmount: dec(reward),
	}
}

func TestMissionCompletionClampsAndCreditsOnce(t *testing.T) {
	s := newTestStack(t)
	ctx := t.Context()
	def := s.addMission(t, trackerMission(100, "10"))

	inst, err := s.missions.Start(ctx, "u1", def.ID)
	require.NoError(t, err)
	require.Nil(t, inst.ExpiresAt)

	done, err := s.missions.ApplyActivity(ctx, "u1", models.ActivityDelta{TrackersBlocked: 80})
	require.NoError(t, err)
	require.Empty(t, done)

	done, err = s.missions.ApplyActivity(ctx, "u1", models.ActivityDelta{TrackersBlocked: 40})
	require.NoError(t, err)
	require.Len(t, done, 1)
	require.EqualValues(t, 100, done[0].Instance.Progress)
	require.Equal(t, models.MissionStatusCompleted, done[0].Instance.Status)
	require.NotNil(t, done[0].Instance.CompletedAt)
	require.NotNil(t, done[0].Reward)
	requireDecimal(t, "10", done[0].Reward.Amount)
	require.Equal(t, def.ID, *done[0].Reward.SourceID)

	// Same delta again: the instance is terminal, nothing moves
	done, err = s.missions.ApplyActivity(ctx, "u1", models.ActivityDelta{TrackersBlocked: 40})
	require.NoError(t, err)
	require.Empty(t, done)

	requireDecimal(t, "10", s.balance(t, "u1").Current)

	stored, err := s.missions.ListInstances(ctx, "u1", models.MissionStatusCompleted)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.EqualValues(t, 100, stored[0].Progress)
}

func TestMissionIgnoresOtherTypesAndNegativeDeltas(t *testing.T) {
	s := newTestStack(t)
	ctx := t.Context()
	def := s.addMission(t, trackerMission(100, "10"))
	_, err := s.missions.Start(ctx, "u1", def.ID)
	require.NoError(t, err)

	_, err = s.missions.ApplyActivity(ctx, "u1", models.ActivityDelta{TrackersBlocked: 30})
	require.NoError(t, err)
	_, err = s.missions.ApplyActivity(ctx, "u1", models.ActivityDelta{TrackersBlocked: -20, AdsBlocked: 500})
	require.NoError(t, err)

	active, err := s.missions.ListInstances(ctx, "u1", models.MissionStatusActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.EqualValues(t, 30, active[0].Progress)
}

func TestMissionRewardPaidOncePerDefinition(t *testing.T) {
	s := newTestStack(t)
	ctx := t.Context()
	def := s.addMission(t, trackerMission(10, "3"))

	for round := 0; round < 2; round++ {
		_, err := s.missions.Start(ctx, "u1", def.ID)
		require.NoError(t, err)
		done, err := s.missions.ApplyActivity(ctx, "u1", models.ActivityDelta{TrackersBlocked: 10})
		require.NoError(t, err)
		require.Len(t, done, 1)
		if round == 0 {
			require.NotNil(t, done[0].Reward)
		} else {
			require.Nil(t, done[0].Reward)
		}
	}
	requireDecimal(t, "3", s.balance(t, "u1").Current)
}

func TestMissionExpiredInstanceIgnoresActivity(t *testing.T) {
	s := newTestStack(t)
	ctx := t.Context()
	limit := int64(60)
	def := trackerMission(10, "5")
	def.DurationSeconds = &limit
	def = s.addMission(t, def)

	inst, err := s.missions.Start(ctx, "u1", def.ID)
	require.NoError(t, err)
	require.NotNil(t, inst.ExpiresAt)
	require.Equal(t, inst.StartedAt+60_000, *inst.ExpiresAt)

	s.clock.Advance(2 * time.Minute)
	done, err := s.missions.ApplyActivity(ctx, "u1", models.ActivityDelta{TrackersBlocked: 50})
	require.NoError(t, err)
	require.Empty(t, done)

	expired, err := s.missions.ListInstances(ctx, "u1", models.MissionStatusExpired)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	require.EqualValues(t, 0, expired[0].Progress)
	require.True(t, s.balance(t, "u1").Current.IsZero())
}

func TestMissionExpireOverdueSweep(t *testing.T) {
	s := newTestStack(t)
	ctx := t.Context()
	limit := int64(30)
	timed := trackerMission(10, "5")
	timed.DurationSeconds = &limit
	timed = s.addMission(t, timed)
	open := s.addMission(t, models.MissionDefinition{Title: "Ad-Free Explorer", Type: models.MissionAdsBlocked, TargetValue: 50, RewardAmount: dec("8")})

	_, err := s.missions.Start(ctx, "u1", timed.ID)
	require.NoError(t, err)
	_, err = s.missions.Start(ctx, "u1", open.ID)
	require.NoError(t, err)

	n, err := s.missions.ExpireOverdue(ctx, s.clock.Now())
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = s.missions.ExpireOverdue(ctx, s.clock.Now().Add(time.Minute))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	active, err := s.missions.ListInstances(ctx, "u1", models.MissionStatusActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, open.ID, active[0].MissionDefinitionID)
}

func TestMissionStartRejections(t *testing.T) {
	s := newTestStack(t)
	ctx := t.Context()

	_, err := s.missions.Start(ctx, "u1", uuid.NewString())
	require.ErrorIs(t, err, ErrNotFound)

	inactive := s.addMission(t, trackerMission(10, "1"))
	require.NoError(t, s.db.Model(&models.MissionDefinition{}).Where("id = ?", inactive.ID).Update("active", false).Error)
	_, err = s.missions.Start(ctx, "u1", inactive.ID)
	require.ErrorIs(t, err, ErrMissionInactive)

	ended := trackerMission(10, "1")
	yesterday := models.NowMillis(s.clock.Now().Add(-24 * time.Hour))
	ended.EndDate = &yesterday
	ended = s.addMission(t, ended)
	_, err = s.missions.Start(ctx, "u1", ended.ID)
	require.ErrorIs(t, err, ErrMissionInactive)

	future := trackerMission(10, "1")
	tomorrow := models.NowMillis(s.clock.Now().Add(24 * time.Hour))
	future.StartDate = &tomorrow
	future = s.addMission(t, future)
	_, err = s.missions.Start(ctx, "u1", future.ID)
	require.ErrorIs(t, err, ErrMissionInactive)

	premium := trackerMission(500, "50")
	premium.PremiumOnly = true
	premium = s.addMission(t, premium)
	_, err = s.missions.Start(ctx, "u1", premium.ID)
	require.ErrorIs(t, err, ErrPremiumRequired)

	s.addAccount(t, "vip", "vip", true)
	_, err = s.missions.Start(ctx, "vip", premium.ID)
	require.NoError(t, err)
	_, err = s.missions.Start(ctx, "vip", premium.ID)
	require.ErrorIs(t, err, ErrAlreadyActive)
}

func TestMissionClaim(t *testing.T) {
	s := newTestStack(t)
	ctx := t.Context()
	def := s.addMission(t, trackerMission(10, "4"))

	inst, err := s.missions.Start(ctx, "u1", def.ID)
	require.NoError(t, err)

	_, err = s.missions.Claim(ctx, "u1", inst.ID)
	require.ErrorIs(t, err, ErrNotCompleted)
	_, err = s.missions.Claim(ctx, "u2", inst.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.missions.Claim(ctx, "u1", uuid.NewString())
	require.ErrorIs(t, err, ErrNotFound)

	// Completed without the credit (e.g. written before rewards were automatic)
	require.NoError(t, s.db.Model(&models.MissionInstance{}).Where("id = ?", inst.ID).Updates(map[string]interface{}{
		"status":   models.MissionStatusCompleted,
		"progress": 10,
	}).Error)

	reward, err := s.missions.Claim(ctx, "u1", inst.ID)
	require.NoError(t, err)
	requireDecimal(t, "4", reward.Amount)
	require.Equal(t, models.SourceMission, reward.Source)

	_, err = s.missions.Claim(ctx, "u1", inst.ID)
	require.ErrorIs(t, err, ErrAlreadyClaimed)
	requireDecimal(t, "4", s.balance(t, "u1").Current)
}

func TestMissionListAvailable(t *testing.T) {
	s := newTestStack(t)
	ctx := t.Context()
	free := s.addMission(t, trackerMission(100, "10"))
	s.clock.Advance(time.Second)
	premium := trackerMission(500, "50")
	premium.PremiumOnly = true
	premium = s.addMission(t, premium)

	_, err := s.missions.Start(ctx, "u1", free.ID)
	require.NoError(t, err)
	_, err = s.missions.ApplyActivity(ctx, "u1", models.ActivityDelta{TrackersBlocked: 25})
	require.NoError(t, err)

	list, err := s.missions.ListAvailable(ctx, "u1", false)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, free.ID, list[0].ID)
	require.NotEmpty(t, list[0].ActiveInstanceID)
	require.EqualValues(t, 25, list[0].Progress)

	list, err = s.missions.ListAvailable(ctx, "u1", true)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, premium.ID, list[1].ID)
	require.Empty(t, list[1].ActiveInstanceID)
}

func TestSeedMissionsIsIdempotent(t *testing.T) {
	s := newTestStack(t)
	ctx := t.Context()

	n, err := SeedMissions(ctx, s.db, DefaultMissions, s.clock.Now())
	require.NoError(t, err)
	require.Equal(t, 5, n)

	n, err = SeedMissions(ctx, s.db, DefaultMissions, s.clock.Now())
	require.NoError(t, err)
	require.Zero(t, n)

	var premiumOnly int64
	require.NoError(t, s.db.Model(&models.MissionDefinition{}).Where("premium_only = ?", true).Count(&premiumOnly).Error)
	require.EqualValues(t, 1, premiumOnly)

	_, err = SeedMissions(ctx, s.db, []models.MissionDefinition{{Title: "Bad", Type: "uptime", TargetValue: 1}}, s.clock.Now())
	require.Error(t, err)
}

func TestMissionConcurrentActivityCreditsOnce(t *testing.T) {
	s := newTestStack(t)
	ctx := t.Context()
	def := s.addMission(t, trackerMission(100, "10"))
	_, err := s.missions.Start(ctx, "u1", def.ID)
	require.NoError(t, err)

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.missions.ApplyActivity(ctx, "u1", models.ActivityDelta{TrackersBlocked: 60})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var credits int64
	require.NoError(t, s.db.Model(&models.Transaction{}).
		Where("user_id = ? AND source = ?", "u1", models.SourceMission).
		Count(&credits).Error)
	require.EqualValues(t, 1, credits)
	requireDecimal(t, "10", s.balance(t, "u1").Current)

	done, err := s.missions.ListInstances(ctx, "u1", models.MissionStatusCompleted)
	require.NoError(t, err)
	require.Len(t, done, 1)
	require.EqualValues(t, 100, done[0].Progress)
}
