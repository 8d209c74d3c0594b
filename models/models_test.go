package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadFor(t *testing.T) {
	cases := []struct {
		users, max, want int
	}{
		{0, 10, 0},
		{1, 10, 10},
		{1, 3, 33},
		{2, 3, 67},
		{15, 10, 100},
		{-1, 10, 0},
		{0, 0, 0},
		{4, 0, 100},
	}
	for _, tc := range cases {
		require.Equalf(t, tc.want, LoadFor(tc.users, tc.max), "LoadFor(%d, %d)", tc.users, tc.max)
	}
}

func TestProgressFrom(t *testing.T) {
	d := ActivityDelta{SessionDuration: 62, TrackersBlocked: 40, AdsBlocked: -5, ActiveDays: 1, Referrals: 2}

	require.EqualValues(t, 62, MissionSessionDuration.ProgressFrom(d))
	require.EqualValues(t, 40, MissionTrackersBlocked.ProgressFrom(d))
	require.EqualValues(t, 0, MissionAdsBlocked.ProgressFrom(d))
	require.EqualValues(t, 1, MissionDailyStreak.ProgressFrom(d))
	require.EqualValues(t, 2, MissionReferral.ProgressFrom(d))
	require.EqualValues(t, 0, MissionType("bandwidth").ProgressFrom(d))
}

func TestParseMissionType(t *testing.T) {
	mt, err := ParseMissionType("adsBlocked")
	require.NoError(t, err)
	require.Equal(t, MissionAdsBlocked, mt)

	_, err = ParseMissionType("AdsBlocked")
	require.Error(t, err)

	require.True(t, ActivityDelta{AdsBlocked: -3}.IsZero())
	require.False(t, ActivityDelta{Referrals: 1}.IsZero())
}

func TestMissionInstanceExpiredAt(t *testing.T) {
	open := MissionInstance{}
	require.False(t, open.ExpiredAt(1<<60))

	deadline := int64(1000)
	timed := MissionInstance{ExpiresAt: &deadline}
	require.False(t, timed.ExpiredAt(1000))
	require.True(t, timed.ExpiredAt(1001))
}
