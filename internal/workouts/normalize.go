package workouts

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// typical running pace band, seconds per km
const (
	runningPaceMinSecPerKm = 180
	runningPaceMaxSecPerKm = 600
)

const nostrWorkoutKind = 1301

// RawRecord is the tagged union of source payload shapes fed to Normalize.
type RawRecord interface {
	rawSource() SourceSystem
}

// RawLocalRecord is a workout as stored in the on-device/local store.
type RawLocalRecord struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	Activity        string    `json:"activity"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	DurationSeconds int       `json:"durationSeconds"`
	DistanceMeters  float64   `json:"distanceMeters"`
	CaloriesKcal    *float64  `json:"caloriesKcal"`
	HeartRateAvg    *float64  `json:"heartRateAvg"`
	Steps           *int      `json:"steps"`
	ElevationGain   *float64  `json:"elevationGainMeters"`
	Reps            *int      `json:"reps"`
	Splits          []Split   `json:"splits"`
	Notes           string    `json:"notes"`
	UserAuthored    bool      `json:"userAuthored"`
	Synced          bool      `json:"synced"`
}

func (RawLocalRecord) rawSource() SourceSystem { return SourceLocal }

// RawHealthRecord is a workout as returned by the platform health gateway
// (HealthKit / Health Connect shape). Zero values mean absent.
type RawHealthRecord struct {
	UUID            string    `json:"uuid"`
	WorkoutType     string    `json:"workoutType"`
	StartDate       time.Time `json:"startDate"`
	EndDate         time.Time `json:"endDate"`
	DurationSeconds float64   `json:"durationSeconds"`
	DistanceMeters  float64   `json:"totalDistanceMeters"`
	EnergyKcal      float64   `json:"totalEnergyBurnedKcal"`
	AvgHeartRate    float64   `json:"avgHeartRate"`
	StepCount       int       `json:"stepCount"`
	ElevationMeters float64   `json:"elevationAscendedMeters"`
}

func (RawHealthRecord) rawSource() SourceSystem { return SourcePlatformHealth }

// RawNostrEvent is a kind 1301 workout note fetched from the relay gateway.
type RawNostrEvent struct {
	ID        string     `json:"id"`
	Pubkey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
}

func (RawNostrEvent) rawSource() SourceSystem { return SourceNostr }

// Normalize converts a raw source payload into the canonical WorkoutRecord.
// Missing optional fields never cause an error; a record is rejected with
// ErrMalformedRecord only when neither a usable start time nor a usable
// duration can be derived.
func Normalize(raw RawRecord, owner string, fetchedAt time.Time) (*WorkoutRecord, error) {
	switch r := raw.(type) {
	case RawLocalRecord:
		return normalizeLocal(r, owner, fetchedAt)
	case RawHealthRecord:
		return normalizeHealth(r, owner, fetchedAt)
	case RawNostrEvent:
		return normalizeNostr(r, owner, fetchedAt)
	default:
		return nil, fmt.Errorf("%w: unknown raw payload %T", ErrMalformedRecord, raw)
	}
}

func normalizeLocal(r RawLocalRecord, owner string, fetchedAt time.Time) (*WorkoutRecord, error) {
	if owner == "" {
		owner = r.UserID
	}

	duration := r.DurationSeconds
	if duration <= 0 && !r.StartTime.IsZero() && !r.EndTime.IsZero() {
		duration = int(r.EndTime.Sub(r.StartTime).Seconds())
	}
	if r.StartTime.IsZero() && duration <= 0 {
		return nil, fmt.Errorf("%w: local record %s has no start time and no duration", ErrMalformedRecord, r.ID)
	}
	if r.StartTime.IsZero() {
		log.Warnf("local record %s has no start time, kept as low-confidence unique", r.ID)
	}

	endTime := r.EndTime
	if endTime.IsZero() && !r.StartTime.IsZero() {
		endTime = r.StartTime.Add(time.Duration(duration) * time.Second)
	}

	w := &WorkoutRecord{
		ID:                  r.ID,
		Source:              SourceLocal,
		Owner:               owner,
		StartTime:           r.StartTime,
		EndTime:             endTime,
		DurationSeconds:     duration,
		DistanceMeters:      r.DistanceMeters,
		CaloriesKcal:        r.CaloriesKcal,
		HeartRateAvg:        r.HeartRateAvg,
		Steps:               r.Steps,
		ElevationGainMeters: r.ElevationGain,
		Reps:                r.Reps,
		Splits:              r.Splits,
		Notes:               r.Notes,
		UserAuthored:        r.UserAuthored,
		Synced:              r.Synced,
		FetchedAt:           fetchedAt,
	}
	w.Activity = resolveActivity(r.Activity, w)
	return w, nil
}

func normalizeHealth(r RawHealthRecord, owner string, fetchedAt time.Time) (*WorkoutRecord, error) {
	duration := int(r.DurationSeconds)
	if duration <= 0 && !r.StartDate.IsZero() && !r.EndDate.IsZero() {
		duration = int(r.EndDate.Sub(r.StartDate).Seconds())
	}
	if r.StartDate.IsZero() && duration <= 0 {
		return nil, fmt.Errorf("%w: health record %s has no start date and no duration", ErrMalformedRecord, r.UUID)
	}

	endTime := r.EndDate
	if endTime.IsZero() && !r.StartDate.IsZero() {
		endTime = r.StartDate.Add(time.Duration(duration) * time.Second)
	}

	w := &WorkoutRecord{
		ID:              r.UUID,
		Source:          SourcePlatformHealth,
		Owner:           owner,
		StartTime:       r.StartDate,
		EndTime:         endTime,
		DurationSeconds: duration,
		DistanceMeters:  r.DistanceMeters,
		FetchedAt:       fetchedAt,
	}
	if r.EnergyKcal > 0 {
		w.CaloriesKcal = &r.EnergyKcal
	}
	if r.AvgHeartRate > 0 {
		w.HeartRateAvg = &r.AvgHeartRate
	}
	if r.StepCount > 0 {
		w.Steps = &r.StepCount
	}
	if r.ElevationMeters > 0 {
		w.ElevationGainMeters = &r.ElevationMeters
	}

	workoutType := strings.TrimPrefix(r.WorkoutType, "HKWorkoutActivityType")
	w.Activity = resolveActivity(workoutType, w)
	return w, nil
}

func normalizeNostr(r RawNostrEvent, owner string, fetchedAt time.Time) (*WorkoutRecord, error) {
	if r.Kind != nostrWorkoutKind {
		return nil, fmt.Errorf("%w: event %s has kind %d, want %d", ErrMalformedRecord, r.ID, r.Kind, nostrWorkoutKind)
	}
	if owner == "" {
		owner = r.Pubkey
	}

	w := &WorkoutRecord{
		ID:        r.ID,
		Source:    SourceNostr,
		Owner:     owner,
		Notes:     r.Content,
		FetchedAt: fetchedAt,
	}

	var activity string
	for _, tag := range r.Tags {
		if len(tag) < 2 {
			continue
		}
		switch tag[0] {
		case "d":
			// replaceable event identifier wins over the event id
			w.ID = tag[1]
		case "exercise", "t":
			if activity == "" {
				activity = tag[1]
			}
		case "start":
			if unix, err := strconv.ParseInt(tag[1], 10, 64); err == nil {
				w.StartTime = time.Unix(unix, 0).UTC()
			}
		case "end":
			if unix, err := strconv.ParseInt(tag[1], 10, 64); err == nil {
				w.EndTime = time.Unix(unix, 0).UTC()
			}
		case "duration":
			if secs, err := parseClockDuration(tag[1]); err == nil {
				w.DurationSeconds = secs
			}
		case "distance":
			unit := "km"
			if len(tag) > 2 {
				unit = tag[2]
			}
			if meters, err := parseDistanceMeters(tag[1], unit); err == nil {
				w.DistanceMeters = meters
			}
		case "calories":
			if kcal, err := strconv.ParseFloat(tag[1], 64); err == nil && kcal > 0 {
				w.CaloriesKcal = &kcal
			}
		case "heart_rate", "heart_rate_avg":
			if hr, err := strconv.ParseFloat(tag[1], 64); err == nil && hr > 0 {
				w.HeartRateAvg = &hr
			}
		case "steps":
			if steps, err := strconv.Atoi(tag[1]); err == nil && steps > 0 {
				w.Steps = &steps
			}
		case "elevation_gain":
			if gain, err := strconv.ParseFloat(tag[1], 64); err == nil && gain > 0 {
				w.ElevationGainMeters = &gain
			}
		case "reps":
			if reps, err := strconv.Atoi(tag[1]); err == nil && reps > 0 {
				w.Reps = &reps
			}
		case "split":
			if len(tag) < 3 {
				continue
			}
			km, kmErr := strconv.ParseFloat(tag[1], 64)
			secs, secsErr := parseClockDuration(tag[2])
			if kmErr == nil && secsErr == nil {
				w.Splits = append(w.Splits, Split{Km: km, Seconds: float64(secs)})
			}
		}
	}

	if w.StartTime.IsZero() && r.CreatedAt > 0 {
		// relay events carry their publish time; use it as the best
		// available start approximation
		w.StartTime = time.Unix(r.CreatedAt, 0).UTC()
	}
	if w.DurationSeconds <= 0 && !w.StartTime.IsZero() && !w.EndTime.IsZero() {
		w.DurationSeconds = int(w.EndTime.Sub(w.StartTime).Seconds())
	}
	if w.StartTime.IsZero() && w.DurationSeconds <= 0 {
		return nil, fmt.Errorf("%w: event %s has no usable start time or duration", ErrMalformedRecord, r.ID)
	}
	if w.EndTime.IsZero() && !w.StartTime.IsZero() {
		w.EndTime = w.StartTime.Add(time.Duration(w.DurationSeconds) * time.Second)
	}

	w.Activity = resolveActivity(activity, w)
	return w, nil
}

// resolveActivity applies the explicit source type when present, otherwise
// infers the type from the available signals. Deterministic and pure.
func resolveActivity(explicit string, w *WorkoutRecord) ActivityType {
	if canonical := CanonicalActivityType(explicit); canonical != "" {
		return canonical
	}

	if w.HasDistance() {
		pace := w.PaceSecPerKm()
		if w.Steps != nil && pace >= runningPaceMinSecPerKm && pace <= runningPaceMaxSecPerKm {
			return ActivityRunning
		}
		return ActivityWalking
	}
	if w.Reps != nil {
		return ActivityStrength
	}
	return ActivityOther
}

// parseClockDuration parses "HH:MM:SS", "MM:SS" or plain seconds.
func parseClockDuration(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	switch len(parts) {
	case 1:
		secs, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return 0, fmt.Errorf("parse duration %q: %w", s, err)
		}
		return int(secs), nil
	case 2, 3:
		total := 0
		for _, p := range parts {
			v, err := strconv.Atoi(p)
			if err != nil {
				return 0, fmt.Errorf("parse duration %q: %w", s, err)
			}
			total = total*60 + v
		}
		return total, nil
	default:
		return 0, fmt.Errorf("parse duration %q: unexpected format", s)
	}
}

func parseDistanceMeters(value, unit string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("parse distance %q: %w", value, err)
	}
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "km", "":
		return v * 1000, nil
	case "mi", "mile", "miles":
		return v * 1609.344, nil
	case "m", "meters", "metres":
		return v, nil
	default:
		return 0, fmt.Errorf("parse distance: unknown unit %q", unit)
	}
}
