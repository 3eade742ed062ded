package analytics_test

import (
	"testing"
	"time"

	"github.com/runstr-app/runstr-server/internal/workouts"
	"github.com/runstr-app/runstr-server/internal/workouts/analytics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateVolume_Weekly(t *testing.T) {
	// 2024-03-10 is a Sunday, so it belongs to the week of Monday 2024-03-04
	records := []workouts.WorkoutRecord{
		run("a", analyticsBaseTime, 5000, 1500),
		run("b", analyticsBaseTime.AddDate(0, 0, -1), 3000, 900),
		run("c", analyticsBaseTime.AddDate(0, 0, -7), 10000, 3000),
	}

	buckets := analytics.AggregateVolume(records, analytics.PeriodWeek, time.UTC)
	require.Len(t, buckets, 2)

	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), buckets[0].PeriodStart)
	assert.Equal(t, 2, buckets[0].Count)
	assert.Equal(t, 8000.0, buckets[0].DistanceMeters)
	assert.Equal(t, 2400, buckets[0].DurationSeconds)

	assert.Equal(t, time.Date(2024, 2, 26, 0, 0, 0, 0, time.UTC), buckets[1].PeriodStart)
	assert.Equal(t, 1, buckets[1].Count)
}

func TestAggregateVolume_Daily(t *testing.T) {
	records := []workouts.WorkoutRecord{
		run("a", analyticsBaseTime, 5000, 1500),
		run("b", analyticsBaseTime.Add(6*time.Hour), 3000, 900),
		run("c", analyticsBaseTime.AddDate(0, 0, -2), 10000, 3000),
	}

	buckets := analytics.AggregateVolume(records, analytics.PeriodDay, time.UTC)
	require.Len(t, buckets, 2)

	// most recent day first
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), buckets[0].PeriodStart)
	assert.Equal(t, 2, buckets[0].Count)
	assert.Equal(t, time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC), buckets[1].PeriodStart)
}

func TestAggregateVolume_Monthly(t *testing.T) {
	records := []workouts.WorkoutRecord{
		run("a", analyticsBaseTime, 5000, 1500),
		run("b", analyticsBaseTime.AddDate(0, -1, 0), 3000, 900),
	}

	buckets := analytics.AggregateVolume(records, analytics.PeriodMonth, time.UTC)
	require.Len(t, buckets, 2)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), buckets[0].PeriodStart)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), buckets[1].PeriodStart)
}

func TestAggregateVolume_SkipsRecordsWithoutStartTime(t *testing.T) {
	rec := run("a", time.Time{}, 5000, 1500)
	buckets := analytics.AggregateVolume([]workouts.WorkoutRecord{rec}, analytics.PeriodDay, time.UTC)
	assert.Empty(t, buckets)
}
