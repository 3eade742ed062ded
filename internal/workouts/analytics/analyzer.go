package analytics

import (
	"context"
	"time"

	"github.com/runstr-app/runstr-server/internal/telemetry/tracing"
	"github.com/runstr-app/runstr-server/internal/workouts/merge"
)

type mergedWorkoutsProvider interface {
	MergedWorkouts(ctx context.Context, userID string) (*merge.MergedWorkoutSet, error)
}

// Analyzer computes personal records, streaks, volume and category scores
// on top of the merged, deduplicated workout set.
type Analyzer struct {
	provider        mergedWorkoutsProvider
	recordTolerance float64
	location        *time.Location
	now             func() time.Time
}

func NewAnalyzer(provider mergedWorkoutsProvider, recordTolerance float64, loc *time.Location) *Analyzer {
	if recordTolerance <= 0 {
		recordTolerance = DefaultRecordTolerance
	}
	if loc == nil {
		loc = time.Local
	}
	return &Analyzer{
		provider:        provider,
		recordTolerance: recordTolerance,
		location:        loc,
		now:             time.Now,
	}
}

func (a *Analyzer) PersonalRecords(ctx context.Context, userID string) (map[DistanceBucket]PersonalRecord, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "analytics.analyzer.personalRecords")
	defer span.End()

	set, err := a.provider.MergedWorkouts(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ComputePersonalRecords(set.Workouts, a.recordTolerance), nil
}

func (a *Analyzer) Streak(ctx context.Context, userID string) (Streak, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "analytics.analyzer.streak")
	defer span.End()

	set, err := a.provider.MergedWorkouts(ctx, userID)
	if err != nil {
		return Streak{}, err
	}
	return ComputeStreak(set.Workouts, a.now(), a.location), nil
}

func (a *Analyzer) Scores(ctx context.Context, userID string) (CategoryScores, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "analytics.analyzer.scores")
	defer span.End()

	set, err := a.provider.MergedWorkouts(ctx, userID)
	if err != nil {
		return CategoryScores{}, err
	}
	return ComputeScores(set.Workouts, a.now()), nil
}

func (a *Analyzer) Volume(ctx context.Context, userID string, period Period) ([]VolumeBucket, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "analytics.analyzer.volume")
	defer span.End()

	set, err := a.provider.MergedWorkouts(ctx, userID)
	if err != nil {
		return nil, err
	}
	return AggregateVolume(set.Workouts, period, a.location), nil
}
