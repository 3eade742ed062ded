package analytics_test

import (
	"context"
	"testing"
	"time"

	"github.com/runstr-app/runstr-server/internal/workouts"
	"github.com/runstr-app/runstr-server/internal/workouts/analytics"
	"github.com/runstr-app/runstr-server/internal/workouts/merge"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type providerMock struct {
	set *merge.MergedWorkoutSet
	err error
}

func (p *providerMock) MergedWorkouts(_ context.Context, _ string) (*merge.MergedWorkoutSet, error) {
	return p.set, p.err
}

func TestAnalyzer_PersonalRecords(t *testing.T) {
	provider := &providerMock{
		set: &merge.MergedWorkoutSet{
			Workouts: []workouts.WorkoutRecord{
				run("pr", analyticsBaseTime, 5000, 1480),
			},
		},
	}

	analyzer := analytics.NewAnalyzer(provider, 0.05, time.UTC)
	prs, err := analyzer.PersonalRecords(context.Background(), "user-1")
	require.NoError(t, err)

	require.Contains(t, prs, analytics.Bucket5K)
	assert.Equal(t, 1480, prs[analytics.Bucket5K].DurationSeconds)
}

func TestAnalyzer_ProviderError(t *testing.T) {
	provider := &providerMock{err: assert.AnError}
	analyzer := analytics.NewAnalyzer(provider, 0.05, time.UTC)

	_, err := analyzer.PersonalRecords(context.Background(), "user-1")
	assert.ErrorIs(t, err, assert.AnError)

	_, err = analyzer.Streak(context.Background(), "user-1")
	assert.ErrorIs(t, err, assert.AnError)

	_, err = analyzer.Scores(context.Background(), "user-1")
	assert.ErrorIs(t, err, assert.AnError)

	_, err = analyzer.Volume(context.Background(), "user-1", analytics.PeriodWeek)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestAnalyzer_Volume(t *testing.T) {
	provider := &providerMock{
		set: &merge.MergedWorkoutSet{
			Workouts: []workouts.WorkoutRecord{
				run("a", analyticsBaseTime, 5000, 1500),
				run("b", analyticsBaseTime.Add(2*time.Hour), 3000, 1100),
				run("c", analyticsBaseTime.AddDate(0, 0, -9), 8000, 2500),
			},
		},
	}

	analyzer := analytics.NewAnalyzer(provider, 0.05, time.UTC)
	buckets, err := analyzer.Volume(context.Background(), "user-1", analytics.PeriodWeek)
	require.NoError(t, err)

	require.Len(t, buckets, 2)
	// most recent week first, with both same-week workouts summed
	assert.Equal(t, 2, buckets[0].Count)
	assert.Equal(t, 8000.0, buckets[0].DistanceMeters)
	assert.Equal(t, 1, buckets[1].Count)
}
