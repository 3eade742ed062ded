package workouts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/runstr-app/runstr-server/internal/telemetry/tracing"
	"github.com/runstr-app/runstr-server/pkg"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var ErrWorkoutExists = errors.New("workout already exists")

// Repo is the local workout store. Records here are either authored by
// the user in the app or synced down from an external source.
type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Add(ctx context.Context, workout WorkoutRecord) (_ *WorkoutRecord, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if workout.ID == "" {
		workout.ID = uuid.NewString()
	}
	workout.Source = SourceLocal
	span.SetAttributes(attribute.String("workout.id", workout.ID))

	splitsJson, err := json.Marshal(workout.Splits)
	if err != nil {
		return nil, fmt.Errorf("marshal splits: %w", err)
	}

	_, err = r.db.Exec(
		ctx,
		`INSERT INTO workout
				(id, user_id, activity, start_time, end_time, duration_seconds,
				distance_meters, calories_kcal, heart_rate_avg, steps,
				elevation_gain_meters, reps, splits, notes, user_authored, synced, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17);`,
		workout.ID, workout.Owner, workout.Activity,
		workout.StartTime, workout.EndTime, workout.DurationSeconds,
		workout.DistanceMeters, workout.CaloriesKcal, workout.HeartRateAvg, workout.Steps,
		workout.ElevationGainMeters, workout.Reps, splitsJson, workout.Notes,
		workout.UserAuthored, workout.Synced, time.Now(),
	)
	if err != nil {
		if pkg.IsUniqueViolationError(err) {
			return nil, ErrWorkoutExists
		}
		return nil, err
	}

	return &workout, nil
}

func (r *Repo) List(ctx context.Context, userID string) (_ []WorkoutRecord, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", userID))

	rows, err := r.db.Query(
		ctx,
		`
			SELECT
				id, user_id, activity, start_time, end_time, duration_seconds,
				distance_meters, calories_kcal, heart_rate_avg, steps,
				elevation_gain_meters, reps, splits, notes, user_authored, synced
			FROM workout
			WHERE user_id = $1
			ORDER BY start_time DESC;`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	workouts, err := r.rows2workouts(rows)
	if err != nil {
		return nil, fmt.Errorf("rows2workouts: %w", err)
	}

	span.SetAttributes(attribute.Int("workouts.count", len(workouts)))
	return workouts, nil
}

func (r *Repo) Get(ctx context.Context, id string) (_ *WorkoutRecord, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("workout.id", id))

	rows, err := r.db.Query(
		ctx,
		`
			SELECT
				id, user_id, activity, start_time, end_time, duration_seconds,
				distance_meters, calories_kcal, heart_rate_avg, steps,
				elevation_gain_meters, reps, splits, notes, user_authored, synced
			FROM workout
			WHERE id = $1;`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	workouts, err := r.rows2workouts(rows)
	if err != nil {
		return nil, err
	}
	if len(workouts) != 1 {
		return nil, ErrWorkoutNotFound
	}
	return &workouts[0], nil
}

func (r *Repo) Delete(ctx context.Context, id string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("workout.id", id))

	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM workout WHERE id = $1;`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrWorkoutNotFound
	}
	return nil
}

func (r *Repo) MarkSynced(ctx context.Context, id string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.markSynced")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("workout.id", id))

	tag, err := r.db.Exec(
		ctx,
		`UPDATE workout SET synced = TRUE WHERE id = $1;`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrWorkoutNotFound
	}
	return nil
}

func (r *Repo) rows2workouts(rows pgx.Rows) ([]WorkoutRecord, error) {
	fetchedAt := time.Now()
	var workouts []WorkoutRecord
	for rows.Next() {
		var w WorkoutRecord
		var splitsJson []byte
		if err := rows.Scan(
			&w.ID, &w.Owner, &w.Activity, &w.StartTime, &w.EndTime, &w.DurationSeconds,
			&w.DistanceMeters, &w.CaloriesKcal, &w.HeartRateAvg, &w.Steps,
			&w.ElevationGainMeters, &w.Reps, &splitsJson, &w.Notes, &w.UserAuthored, &w.Synced,
		); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		if len(splitsJson) > 0 {
			if err := json.Unmarshal(splitsJson, &w.Splits); err != nil {
				return nil, fmt.Errorf("unmarshal splits: %w", err)
			}
		}
		w.Source = SourceLocal
		w.FetchedAt = fetchedAt
		workouts = append(workouts, w)
	}
	return workouts, nil
}
