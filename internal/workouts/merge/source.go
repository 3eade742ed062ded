package merge

import (
	"context"

	"github.com/runstr-app/runstr-server/internal/workouts"
)

// Source yields normalized workout records for one user. Implementations
// wrap the local store, the platform health gateway and the nostr relay
// gateway.
type Source interface {
	Name() workouts.SourceSystem
	Fetch(ctx context.Context, userID string) ([]workouts.WorkoutRecord, error)
}

type fetchResult struct {
	source  workouts.SourceSystem
	records []workouts.WorkoutRecord
	err     error
}
