package analytics

import (
	"sort"
	"time"

	"github.com/runstr-app/runstr-server/internal/workouts"
)

type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// VolumeBucket aggregates workout totals for one period window.
type VolumeBucket struct {
	PeriodStart     time.Time `json:"periodStart"`
	Count           int       `json:"count"`
	DistanceMeters  float64   `json:"distanceMeters"`
	DurationSeconds int       `json:"durationSeconds"`
	CaloriesKcal    float64   `json:"caloriesKcal"`
}

// AggregateVolume sums count, distance, duration and calories per
// day/week/month window, most recent window first. Weeks start on Monday.
func AggregateVolume(records []workouts.WorkoutRecord, period Period, loc *time.Location) []VolumeBucket {
	if loc == nil {
		loc = time.Local
	}

	buckets := make(map[time.Time]VolumeBucket)
	for _, rec := range records {
		if rec.StartTime.IsZero() {
			continue
		}
		start := periodStart(rec.StartTime, period, loc)
		b := buckets[start]
		b.PeriodStart = start
		b.Count++
		b.DistanceMeters += rec.DistanceMeters
		b.DurationSeconds += rec.DurationSeconds
		if rec.CaloriesKcal != nil {
			b.CaloriesKcal += *rec.CaloriesKcal
		}
		buckets[start] = b
	}

	out := make([]VolumeBucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PeriodStart.After(out[j].PeriodStart)
	})
	return out
}

func periodStart(t time.Time, period Period, loc *time.Location) time.Time {
	day := dayOf(t, loc)
	switch period {
	case PeriodWeek:
		// roll back to Monday
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case PeriodMonth:
		return time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, loc)
	default:
		return day
	}
}
