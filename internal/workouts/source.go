package workouts

import (
	"context"
)

type lister interface {
	List(ctx context.Context, userID string) ([]WorkoutRecord, error)
}

// LocalSource adapts the local workout store to the merge orchestrator's
// source contract.
type LocalSource struct {
	repo lister
}

func NewLocalSource(repo lister) *LocalSource {
	return &LocalSource{repo: repo}
}

func (s *LocalSource) Name() SourceSystem {
	return SourceLocal
}

func (s *LocalSource) Fetch(ctx context.Context, userID string) ([]WorkoutRecord, error) {
	return s.repo.List(ctx, userID)
}
