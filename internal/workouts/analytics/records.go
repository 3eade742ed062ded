package analytics

import (
	"github.com/runstr-app/runstr-server/internal/workouts"
)

// DefaultRecordTolerance is the relative band around a bucket's nominal
// distance within which a workout counts as an attempt at that distance.
const DefaultRecordTolerance = 0.05

type DistanceBucket string

const (
	Bucket1K       DistanceBucket = "1k"
	Bucket5K       DistanceBucket = "5k"
	Bucket10K      DistanceBucket = "10k"
	BucketHalf     DistanceBucket = "half_marathon"
	BucketMarathon DistanceBucket = "marathon"
)

var bucketMeters = map[DistanceBucket]float64{
	Bucket1K:       1000,
	Bucket5K:       5000,
	Bucket10K:      10000,
	BucketHalf:     21097.5,
	BucketMarathon: 42195,
}

// PersonalRecord is the best effort for one standard distance bucket,
// with the originating workout kept for provenance.
type PersonalRecord struct {
	Bucket          DistanceBucket         `json:"bucket"`
	DurationSeconds int                    `json:"durationSeconds"`
	PaceSecPerKm    float64                `json:"paceSecPerKm"`
	Workout         workouts.WorkoutRecord `json:"workout"`
}

// ComputePersonalRecords picks, per standard distance bucket, the
// minimum-duration run whose distance falls within the relative tolerance
// band of the bucket's nominal distance. Buckets with no candidate are
// absent from the result.
func ComputePersonalRecords(records []workouts.WorkoutRecord, tolerance float64) map[DistanceBucket]PersonalRecord {
	if tolerance <= 0 {
		tolerance = DefaultRecordTolerance
	}

	result := make(map[DistanceBucket]PersonalRecord)
	for _, rec := range records {
		if rec.Activity != workouts.ActivityRunning {
			continue
		}
		if !rec.HasDistance() || rec.DurationSeconds <= 0 {
			continue
		}

		for bucket, nominal := range bucketMeters {
			diff := rec.DistanceMeters - nominal
			if diff < 0 {
				diff = -diff
			}
			if diff/nominal > tolerance {
				continue
			}

			current, exists := result[bucket]
			if exists && !fasterThan(rec, current.Workout) {
				continue
			}
			result[bucket] = PersonalRecord{
				Bucket:          bucket,
				DurationSeconds: rec.DurationSeconds,
				PaceSecPerKm:    rec.PaceSecPerKm(),
				Workout:         rec,
			}
		}
	}
	return result
}

func fasterThan(a, b workouts.WorkoutRecord) bool {
	if a.DurationSeconds != b.DurationSeconds {
		return a.DurationSeconds < b.DurationSeconds
	}
	// same time on the clock, the earlier run holds the record
	return a.StartTime.Before(b.StartTime)
}
