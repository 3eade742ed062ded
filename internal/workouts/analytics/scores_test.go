package analytics_test

import (
	"testing"
	"time"

	"github.com/runstr-app/runstr-server/internal/workouts"
	"github.com/runstr-app/runstr-server/internal/workouts/analytics"

	"github.com/stretchr/testify/assert"
)

func TestComputeScores_NoData(t *testing.T) {
	scores := analytics.ComputeScores(nil, time.Now())
	assert.Zero(t, scores.Cardio)
	assert.Zero(t, scores.Strength)
	assert.Zero(t, scores.Wellness)
	assert.Zero(t, scores.Nutrition)
	assert.Zero(t, scores.Holistic)
}

func TestComputeScores_CardioOnly(t *testing.T) {
	now := time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC)

	scores := analytics.ComputeScores([]workouts.WorkoutRecord{
		run("a", now.AddDate(0, 0, -1), 5000, 1500),
		run("b", now.AddDate(0, 0, -3), 10000, 3000),
	}, now)

	assert.Greater(t, scores.Cardio, 0.0)
	assert.Zero(t, scores.Strength)
	assert.Zero(t, scores.Wellness)
	// a single active category gets no breadth bonus
	assert.Equal(t, scores.Cardio, scores.Holistic)
}

func TestComputeScores_MoreActivityNeverLowersScore(t *testing.T) {
	now := time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC)

	base := []workouts.WorkoutRecord{
		run("a", now.AddDate(0, 0, -1), 5000, 1500),
	}
	more := append([]workouts.WorkoutRecord{
		run("b", now.AddDate(0, 0, -2), 8000, 2400),
	}, base...)

	baseScores := analytics.ComputeScores(base, now)
	moreScores := analytics.ComputeScores(more, now)
	assert.GreaterOrEqual(t, moreScores.Cardio, baseScores.Cardio)
	assert.GreaterOrEqual(t, moreScores.Holistic, baseScores.Holistic)
}

func TestComputeScores_ClampedTo100(t *testing.T) {
	now := time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC)

	var records []workouts.WorkoutRecord
	for day := 1; day <= 28; day++ {
		r := run("marathon-a-day", now.AddDate(0, 0, -day), 42195, 14000)
		kcal := 3000.0
		r.CaloriesKcal = &kcal
		records = append(records, r)
	}

	scores := analytics.ComputeScores(records, now)
	assert.LessOrEqual(t, scores.Cardio, 100.0)
	assert.LessOrEqual(t, scores.Nutrition, 100.0)
	assert.LessOrEqual(t, scores.Holistic, 100.0)
}

func TestComputeScores_OldWorkoutsOutsideWindowIgnored(t *testing.T) {
	now := time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC)

	scores := analytics.ComputeScores([]workouts.WorkoutRecord{
		run("ancient", now.AddDate(0, 0, -60), 5000, 1500),
	}, now)
	assert.Zero(t, scores.Cardio)
	assert.Zero(t, scores.Holistic)
}

func TestComputeScores_BreadthBonus(t *testing.T) {
	now := time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC)

	reps := 40
	strength := workouts.WorkoutRecord{
		ID:              "lift",
		Owner:           "user-1",
		Activity:        workouts.ActivityStrength,
		StartTime:       now.AddDate(0, 0, -2),
		DurationSeconds: 2400,
		Reps:            &reps,
	}
	meditation := workouts.WorkoutRecord{
		ID:              "sit",
		Owner:           "user-1",
		Activity:        workouts.ActivityMeditation,
		StartTime:       now.AddDate(0, 0, -1),
		DurationSeconds: 1200,
	}

	scores := analytics.ComputeScores([]workouts.WorkoutRecord{
		run("a", now.AddDate(0, 0, -1), 5000, 1500),
		strength,
		meditation,
	}, now)

	avg := (scores.Cardio + scores.Strength + scores.Wellness) / 3
	assert.Greater(t, scores.Holistic, avg, "active categories earn a breadth bonus")
	assert.Zero(t, scores.Nutrition)
}
