package analytics

import (
	"time"

	"github.com/runstr-app/runstr-server/internal/workouts"
)

const scoreWindowDays = 30

// CategoryScores are the per-category performance scores plus the
// holistic combination, each in [0,100]. A category with no data in the
// scoring window scores 0 and is excluded from the holistic average.
type CategoryScores struct {
	Cardio    float64 `json:"cardio"`
	Strength  float64 `json:"strength"`
	Wellness  float64 `json:"wellness"`
	Nutrition float64 `json:"nutrition"`
	Holistic  float64 `json:"holistic"`
}

// ComputeScores derives the category scores from the workouts of the last
// 30 days. Every sub-score grows (or stays flat) with more activity and
// depends only on the supplied records and reference time.
func ComputeScores(records []workouts.WorkoutRecord, now time.Time) CategoryScores {
	windowStart := now.AddDate(0, 0, -scoreWindowDays)

	var (
		cardioKm         float64
		cardioDays       = map[string]bool{}
		strengthSessions int
		strengthReps     int
		wellnessMinutes  float64
		wellnessSessions int
		nutritionDays    = map[string]bool{}
	)

	for _, rec := range records {
		if rec.StartTime.IsZero() || rec.StartTime.Before(windowStart) || rec.StartTime.After(now) {
			continue
		}
		day := rec.StartTime.Format("2006-01-02")

		switch rec.Activity {
		case workouts.ActivityRunning, workouts.ActivityWalking, workouts.ActivityCycling:
			cardioKm += rec.DistanceMeters / 1000
			cardioDays[day] = true
		case workouts.ActivityStrength:
			strengthSessions++
			if rec.Reps != nil {
				strengthReps += *rec.Reps
			}
		case workouts.ActivityMeditation:
			wellnessSessions++
			wellnessMinutes += float64(rec.DurationSeconds) / 60
		}

		if rec.CaloriesKcal != nil && *rec.CaloriesKcal > 0 {
			nutritionDays[day] = true
		}
	}

	scores := CategoryScores{
		Cardio:    capAt(cardioKm*1.4, 70) + capAt(float64(len(cardioDays))*2.5, 30),
		Strength:  capAt(float64(strengthSessions)*6, 60) + capAt(float64(strengthReps)*0.08, 40),
		Wellness:  capAt(wellnessMinutes*0.5, 70) + capAt(float64(wellnessSessions)*3, 30),
		Nutrition: capAt(float64(len(nutritionDays))*5, 100),
	}
	scores.Holistic = holistic(scores)
	return scores
}

// holistic averages the active (non-zero) categories and adds a small
// bonus per extra active category, rewarding breadth of activity.
func holistic(s CategoryScores) float64 {
	var sum float64
	var active int
	for _, score := range []float64{s.Cardio, s.Strength, s.Wellness, s.Nutrition} {
		if score > 0 {
			sum += score
			active++
		}
	}
	if active == 0 {
		return 0
	}
	return capAt(sum/float64(active)+float64(active-1)*2.5, 100)
}

func capAt(val, max float64) float64 {
	if val > max {
		return max
	}
	return val
}
