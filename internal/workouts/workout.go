package workouts

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrWorkoutNotFound = errors.New("workout not found")
	ErrMalformedRecord = errors.New("malformed workout record")
)

type SourceSystem string

const (
	SourceLocal          SourceSystem = "local"
	SourcePlatformHealth SourceSystem = "platform_health"
	SourceNostr          SourceSystem = "nostr"
)

type ActivityType string

const (
	ActivityRunning    ActivityType = "running"
	ActivityWalking    ActivityType = "walking"
	ActivityCycling    ActivityType = "cycling"
	ActivityStrength   ActivityType = "strength"
	ActivityMeditation ActivityType = "meditation"
	ActivityOther      ActivityType = "other"
)

// CanonicalActivityType maps a source-provided activity name to one of the
// canonical categories. Unknown non-empty names map to ActivityOther.
func CanonicalActivityType(raw string) ActivityType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "running", "run", "jog", "jogging", "treadmill":
		return ActivityRunning
	case "walking", "walk", "hike", "hiking":
		return ActivityWalking
	case "cycling", "cycle", "bike", "biking", "ride":
		return ActivityCycling
	case "strength", "weights", "gym", "weightlifting", "calisthenics",
		"traditionalstrengthtraining", "functionalstrengthtraining":
		return ActivityStrength
	case "meditation", "breathwork", "yoga", "mindandbody":
		return ActivityMeditation
	case "":
		return ""
	default:
		return ActivityOther
	}
}

// Split is a recorded elapsed time at a cumulative distance within a workout.
type Split struct {
	Km      float64 `json:"km"`
	Seconds float64 `json:"seconds"`
}

// WorkoutRecord is the canonical post-normalization workout shape. The ID is
// only unique within its source system; records from different sources may
// describe the same real-world activity and are reconciled by the merge
// engine through content similarity, never key equality.
type WorkoutRecord struct {
	ID       string       `json:"id"`
	Source   SourceSystem `json:"source"`
	Owner    string       `json:"owner"`
	Activity ActivityType `json:"activity"`

	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	DurationSeconds int       `json:"durationSeconds"`

	DistanceMeters      float64  `json:"distanceMeters,omitempty"`
	CaloriesKcal        *float64 `json:"caloriesKcal,omitempty"`
	HeartRateAvg        *float64 `json:"heartRateAvg,omitempty"`
	Steps               *int     `json:"steps,omitempty"`
	ElevationGainMeters *float64 `json:"elevationGainMeters,omitempty"`
	Reps                *int     `json:"reps,omitempty"`

	Splits []Split `json:"splits,omitempty"`
	Notes  string  `json:"notes,omitempty"`

	// UserAuthored marks local records the user explicitly created, as
	// opposed to passively synced copies. Such records win dedup ties.
	UserAuthored bool `json:"userAuthored,omitempty"`
	// Synced marks local records already posted to the relay network.
	Synced bool `json:"synced,omitempty"`

	// FetchedAt is when this copy was obtained from its source,
	// used as the recency tie-break during dedup.
	FetchedAt time.Time `json:"fetchedAt"`
}

func (w *WorkoutRecord) HasDistance() bool {
	return w.DistanceMeters > 0
}

// PaceSecPerKm returns the average pace, or 0 when distance or duration
// is missing.
func (w *WorkoutRecord) PaceSecPerKm() float64 {
	if w.DistanceMeters <= 0 || w.DurationSeconds <= 0 {
		return 0
	}
	return float64(w.DurationSeconds) / (w.DistanceMeters / 1000)
}

// MetricCompleteness counts the present optional metrics, used to pick the
// most complete copy of a duplicated workout.
func (w *WorkoutRecord) MetricCompleteness() int {
	count := 0
	if w.DistanceMeters > 0 {
		count++
	}
	if w.CaloriesKcal != nil {
		count++
	}
	if w.HeartRateAvg != nil {
		count++
	}
	if w.Steps != nil {
		count++
	}
	if w.ElevationGainMeters != nil {
		count++
	}
	if w.Reps != nil {
		count++
	}
	if len(w.Splits) > 0 {
		count++
	}
	if w.Notes != "" {
		count++
	}
	return count
}

// SplitSecondsAt returns the recorded elapsed seconds at exactly the given
// cumulative distance, if such a split exists.
func (w *WorkoutRecord) SplitSecondsAt(km float64) (float64, bool) {
	for _, s := range w.Splits {
		if s.Km == km {
			return s.Seconds, true
		}
	}
	return 0, false
}

// LargestSplitAtMost returns the split with the largest distance not
// exceeding the given target.
func (w *WorkoutRecord) LargestSplitAtMost(km float64) (Split, bool) {
	var best Split
	found := false
	for _, s := range w.Splits {
		if s.Km > km {
			continue
		}
		if !found || s.Km > best.Km {
			best = s
			found = true
		}
	}
	return best, found
}
