package leaderboard_test

import (
	"testing"
	"time"

	"github.com/runstr-app/runstr-server/internal/workouts"
	"github.com/runstr-app/runstr-server/internal/workouts/leaderboard"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rankBaseTime = time.Date(2024, 3, 10, 7, 0, 0, 0, time.UTC)

func runBy(owner string, distanceMeters float64, durationSeconds int, splits []workouts.Split) workouts.WorkoutRecord {
	return workouts.WorkoutRecord{
		ID:              owner + "-run",
		Source:          workouts.SourceNostr,
		Owner:           owner,
		Activity:        workouts.ActivityRunning,
		StartTime:       rankBaseTime,
		DurationSeconds: durationSeconds,
		DistanceMeters:  distanceMeters,
		Splits:          splits,
	}
}

func TestRankForDistance_ExactSplitPreferred(t *testing.T) {
	rec := runBy("alice", 8000, 2400, []workouts.Split{
		{Km: 5, Seconds: 1450},
	})

	entries, err := leaderboard.RankForDistance([]workouts.WorkoutRecord{rec}, leaderboard.Category5K)
	require.NoError(t, err)

	require.Len(t, entries, 1)
	assert.Equal(t, 1450.0, entries[0].TimeSeconds)
	assert.False(t, entries[0].Estimated)
}

func TestRankForDistance_LargestSplitAtMostTarget(t *testing.T) {
	rec := runBy("alice", 8000, 2400, []workouts.Split{
		{Km: 3, Seconds: 900},
		{Km: 4, Seconds: 1190},
		{Km: 6, Seconds: 1800},
	})

	entries, err := leaderboard.RankForDistance([]workouts.WorkoutRecord{rec}, leaderboard.Category5K)
	require.NoError(t, err)

	require.Len(t, entries, 1)
	assert.Equal(t, 1190.0, entries[0].TimeSeconds)
	assert.True(t, entries[0].Estimated)
}

func TestRankForDistance_PaceExtrapolation(t *testing.T) {
	// 8000m in 2400s, no splits: 5k estimate is 2400 * (5/8) = 1500s
	rec := runBy("alice", 8000, 2400, nil)

	entries, err := leaderboard.RankForDistance([]workouts.WorkoutRecord{rec}, leaderboard.Category5K)
	require.NoError(t, err)

	require.Len(t, entries, 1)
	assert.Equal(t, 1500.0, entries[0].TimeSeconds)
	assert.True(t, entries[0].Estimated)
}

func TestRankForDistance_ThresholdIsAtLeast(t *testing.T) {
	entries, err := leaderboard.RankForDistance([]workouts.WorkoutRecord{
		runBy("short", 4900, 1400, nil), // under 5000m, not eligible
		runBy("long", 12000, 3900, nil), // well past 5k still counts
	}, leaderboard.Category5K)
	require.NoError(t, err)

	require.Len(t, entries, 1)
	assert.Equal(t, "long", entries[0].Owner)
}

func TestRankForDistance_BestPerOwner(t *testing.T) {
	fast := runBy("alice", 5000, 1400, nil)
	slow := runBy("alice", 5000, 1600, nil)
	slow.ID = "alice-slow"

	entries, err := leaderboard.RankForDistance([]workouts.WorkoutRecord{slow, fast}, leaderboard.Category5K)
	require.NoError(t, err)

	require.Len(t, entries, 1)
	assert.Equal(t, 1400.0, entries[0].TimeSeconds)
}

func TestRankForDistance_OrderingAndRanks(t *testing.T) {
	entries, err := leaderboard.RankForDistance([]workouts.WorkoutRecord{
		runBy("carol", 5000, 1550, nil),
		runBy("alice", 5000, 1450, nil),
		runBy("bob", 5000, 1500, nil),
	}, leaderboard.Category5K)
	require.NoError(t, err)

	require.Len(t, entries, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{entries[0].Rank, entries[1].Rank, entries[2].Rank})
	assert.Equal(t, "alice", entries[0].Owner)
	assert.Equal(t, "bob", entries[1].Owner)
	assert.Equal(t, "carol", entries[2].Owner)
}

func TestRankForDistance_TieBrokenByOwner(t *testing.T) {
	entries, err := leaderboard.RankForDistance([]workouts.WorkoutRecord{
		runBy("zoe", 5000, 1500, nil),
		runBy("amy", 5000, 1500, nil),
	}, leaderboard.Category5K)
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, "amy", entries[0].Owner)
	assert.Equal(t, "zoe", entries[1].Owner)
}

func TestRankForDistance_NonRunningExcluded(t *testing.T) {
	ride := runBy("alice", 20000, 2400, nil)
	ride.Activity = workouts.ActivityCycling

	entries, err := leaderboard.RankForDistance([]workouts.WorkoutRecord{ride}, leaderboard.Category10K)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRankForDistance_UnknownCategory(t *testing.T) {
	_, err := leaderboard.RankForDistance(nil, leaderboard.Category("100k"))
	assert.ErrorIs(t, err, leaderboard.ErrUnknownCategory)
}

func TestParseCategory(t *testing.T) {
	c, err := leaderboard.ParseCategory("half_marathon")
	require.NoError(t, err)
	assert.Equal(t, leaderboard.CategoryHalf, c)

	_, err = leaderboard.ParseCategory("sprint")
	assert.ErrorIs(t, err, leaderboard.ErrUnknownCategory)
}
