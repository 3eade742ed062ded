package api

import (
	"context"
	"sync"
	"time"

	"github.com/runstr-app/runstr-server/internal/workouts"

	"github.com/google/uuid"
)

var _ workoutsRepo = (*repoMock)(nil)

type repoMock struct {
	// workout ID to record
	Workouts map[string]workouts.WorkoutRecord
	mutex    sync.Mutex
}

func NewRepoMock() *repoMock {
	repo := &repoMock{
		Workouts: map[string]workouts.WorkoutRecord{},
	}

	now := time.Now()
	run0 := workouts.WorkoutRecord{
		ID:              "test-run-0",
		Source:          workouts.SourceLocal,
		Owner:           "test-user",
		Activity:        workouts.ActivityRunning,
		StartTime:       now.Add(-48 * time.Hour),
		DurationSeconds: 1500,
		DistanceMeters:  5000,
		UserAuthored:    true,
	}
	run1 := workouts.WorkoutRecord{
		ID:              "test-run-1",
		Source:          workouts.SourceLocal,
		Owner:           "test-user",
		Activity:        workouts.ActivityRunning,
		StartTime:       now.Add(-24 * time.Hour),
		DurationSeconds: 2400,
		DistanceMeters:  8000,
		UserAuthored:    true,
	}
	repo.Workouts[run0.ID] = run0
	repo.Workouts[run1.ID] = run1

	return repo
}

func (r *repoMock) Add(_ context.Context, workout workouts.WorkoutRecord) (*workouts.WorkoutRecord, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if workout.ID == "" {
		workout.ID = uuid.NewString()
	}
	workout.Source = workouts.SourceLocal
	r.Workouts[workout.ID] = workout
	return &workout, nil
}

func (r *repoMock) Get(_ context.Context, id string) (*workouts.WorkoutRecord, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	workout, ok := r.Workouts[id]
	if !ok {
		return nil, workouts.ErrWorkoutNotFound
	}
	return &workout, nil
}

func (r *repoMock) List(_ context.Context, userID string) ([]workouts.WorkoutRecord, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var records []workouts.WorkoutRecord
	for _, w := range r.Workouts {
		if w.Owner == userID {
			records = append(records, w)
		}
	}
	return records, nil
}

func (r *repoMock) Delete(_ context.Context, id string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.Workouts[id]; !ok {
		return workouts.ErrWorkoutNotFound
	}
	delete(r.Workouts, id)
	return nil
}

func (r *repoMock) MarkSynced(_ context.Context, id string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	workout, ok := r.Workouts[id]
	if !ok {
		return workouts.ErrWorkoutNotFound
	}
	workout.Synced = true
	r.Workouts[id] = workout
	return nil
}
