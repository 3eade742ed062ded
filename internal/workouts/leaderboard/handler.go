package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/runstr-app/runstr-server/internal/telemetry/tracing"
	"github.com/runstr-app/runstr-server/internal/workouts"
	"github.com/runstr-app/runstr-server/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

type recordsProvider interface {
	LeaderboardRecords(ctx context.Context) ([]workouts.WorkoutRecord, error)
}

type Handler struct {
	provider recordsProvider
}

func NewHandler(provider recordsProvider) *Handler {
	return &Handler{
		provider: provider,
	}
}

// HandleRanking serves the ranked leaderboard for one race distance.
func (handler *Handler) HandleRanking(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.leaderboard.ranking")
	defer span.End()

	category, err := ParseCategory(mux.Vars(r)["category"])
	if err != nil {
		http.Error(w, "error, unknown leaderboard category", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("category", string(category)))

	records, err := handler.provider.LeaderboardRecords(ctx)
	if err != nil {
		log.Errorf("failed to get leaderboard records: %s", err)
		http.Error(w, "error, failed to get leaderboard", http.StatusInternalServerError)
		return
	}

	entries, err := RankForDistance(records, category)
	if err != nil {
		if errors.Is(err, ErrUnknownCategory) {
			http.Error(w, "error, unknown leaderboard category", http.StatusBadRequest)
			return
		}
		log.Errorf("failed to rank leaderboard records: %s", err)
		http.Error(w, "error, failed to get leaderboard", http.StatusInternalServerError)
		return
	}
	span.SetAttributes(attribute.Int("entries.count", len(entries)))

	entriesJson, err := json.Marshal(entries)
	if err != nil {
		log.Errorf("failed to marshal leaderboard entries: %s", err)
		http.Error(w, "error, failed to get leaderboard", http.StatusInternalServerError)
		return
	}
	pkg.WriteJSONResponseOK(w, string(entriesJson))
}
