package analytics

import (
	"sort"
	"time"

	"github.com/runstr-app/runstr-server/internal/workouts"
)

// Streak describes consecutive-day workout runs. Days are local
// wall-clock days, midnight to midnight.
type Streak struct {
	CurrentDays int `json:"currentDays"`
	LongestDays int `json:"longestDays"`
}

// ComputeStreak walks the workout history day by day. The current streak
// is anchored at today or yesterday: a missing workout today does not
// break a streak that is still alive from yesterday.
func ComputeStreak(records []workouts.WorkoutRecord, now time.Time, loc *time.Location) Streak {
	if loc == nil {
		loc = time.Local
	}

	activeDays := make(map[time.Time]bool)
	for _, rec := range records {
		if rec.StartTime.IsZero() {
			continue
		}
		activeDays[dayOf(rec.StartTime, loc)] = true
	}
	if len(activeDays) == 0 {
		return Streak{}
	}

	anchor := dayOf(now, loc)
	if !activeDays[anchor] {
		anchor = anchor.AddDate(0, 0, -1)
	}
	current := 0
	for activeDays[anchor] {
		current++
		anchor = anchor.AddDate(0, 0, -1)
	}

	days := make([]time.Time, 0, len(activeDays))
	for day := range activeDays {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	longest, run := 1, 1
	for i := 1; i < len(days); i++ {
		if days[i-1].AddDate(0, 0, 1).Equal(days[i]) {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	return Streak{CurrentDays: current, LongestDays: longest}
}

func dayOf(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
