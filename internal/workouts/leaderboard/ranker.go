package leaderboard

import (
	"fmt"
	"sort"

	"github.com/runstr-app/runstr-server/internal/workouts"
)

// Category is a race distance leaderboard. Eligibility is "ran at least
// this far", unlike the narrow tolerance bands used for personal records.
type Category string

const (
	Category5K       Category = "5k"
	Category10K      Category = "10k"
	CategoryHalf     Category = "half_marathon"
	CategoryMarathon Category = "marathon"
)

var categoryThresholdMeters = map[Category]float64{
	Category5K:       5000,
	Category10K:      10000,
	CategoryHalf:     21000,
	CategoryMarathon: 42000,
}

var ErrUnknownCategory = fmt.Errorf("unknown leaderboard category")

func ParseCategory(raw string) (Category, error) {
	c := Category(raw)
	if _, ok := categoryThresholdMeters[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, raw)
	}
	return c, nil
}

// Entry is one ranked leaderboard row.
type Entry struct {
	Rank        int                    `json:"rank"`
	Owner       string                 `json:"owner"`
	TimeSeconds float64                `json:"timeSeconds"`
	Estimated   bool                   `json:"estimated"`
	Workout     workouts.WorkoutRecord `json:"workout"`
}

// RankForDistance ranks owners by their best time to complete the
// category distance. The completion time comes from an exact split when
// one was recorded, otherwise from the largest split not exceeding the
// target, otherwise extrapolated linearly from the workout's overall
// pace. One entry per owner, fastest first.
func RankForDistance(records []workouts.WorkoutRecord, category Category) ([]Entry, error) {
	threshold, ok := categoryThresholdMeters[category]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	targetKm := threshold / 1000

	best := make(map[string]Entry)
	for _, rec := range records {
		if rec.Activity != workouts.ActivityRunning {
			continue
		}
		if rec.DistanceMeters < threshold {
			continue
		}

		timeSeconds, estimated, ok := completionTime(rec, targetKm)
		if !ok {
			continue
		}

		current, exists := best[rec.Owner]
		if exists && current.TimeSeconds <= timeSeconds {
			continue
		}
		best[rec.Owner] = Entry{
			Owner:       rec.Owner,
			TimeSeconds: timeSeconds,
			Estimated:   estimated,
			Workout:     rec,
		}
	}

	entries := make([]Entry, 0, len(best))
	for _, e := range best {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TimeSeconds != entries[j].TimeSeconds {
			return entries[i].TimeSeconds < entries[j].TimeSeconds
		}
		return entries[i].Owner < entries[j].Owner
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// completionTime derives the time at which the runner passed the target
// distance within one workout.
func completionTime(rec workouts.WorkoutRecord, targetKm float64) (seconds float64, estimated bool, ok bool) {
	if secs, found := rec.SplitSecondsAt(targetKm); found {
		return secs, false, true
	}
	if split, found := rec.LargestSplitAtMost(targetKm); found {
		return split.Seconds, true, true
	}
	if rec.DurationSeconds <= 0 || !rec.HasDistance() {
		return 0, false, false
	}
	// no usable splits: assume even pacing over the whole workout
	fraction := targetKm * 1000 / rec.DistanceMeters
	return float64(rec.DurationSeconds) * fraction, true, true
}
