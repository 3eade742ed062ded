package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/runstr-app/runstr-server/internal/telemetry/metrics"
	"github.com/runstr-app/runstr-server/internal/telemetry/tracing"
	"github.com/runstr-app/runstr-server/internal/workouts"
	"github.com/runstr-app/runstr-server/internal/workouts/analytics"
	"github.com/runstr-app/runstr-server/internal/workouts/merge"
	"github.com/runstr-app/runstr-server/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

type workoutsRepo interface {
	Add(ctx context.Context, workout workouts.WorkoutRecord) (*workouts.WorkoutRecord, error)
	Get(ctx context.Context, id string) (*workouts.WorkoutRecord, error)
	Delete(ctx context.Context, id string) error
	MarkSynced(ctx context.Context, id string) error
}

type merger interface {
	MergedWorkouts(ctx context.Context, userID string) (*merge.MergedWorkoutSet, error)
	InvalidateUser(ctx context.Context, userID string)
}

type workoutsAnalyzer interface {
	PersonalRecords(ctx context.Context, userID string) (map[analytics.DistanceBucket]analytics.PersonalRecord, error)
	Streak(ctx context.Context, userID string) (analytics.Streak, error)
	Scores(ctx context.Context, userID string) (analytics.CategoryScores, error)
	Volume(ctx context.Context, userID string, period analytics.Period) ([]analytics.VolumeBucket, error)
}

// AddWorkoutRequest is the payload for user-authored workout entries. It
// goes through the same normalization as records synced from external
// sources.
type AddWorkoutRequest struct {
	UserID              string           `json:"userId"`
	Activity            string           `json:"activity"`
	StartTime           time.Time        `json:"startTime"`
	EndTime             time.Time        `json:"endTime"`
	DurationSeconds     int              `json:"durationSeconds"`
	DistanceMeters      float64          `json:"distanceMeters"`
	CaloriesKcal        *float64         `json:"caloriesKcal,omitempty"`
	HeartRateAvg        *float64         `json:"heartRateAvg,omitempty"`
	Steps               *int             `json:"steps,omitempty"`
	ElevationGainMeters *float64         `json:"elevationGainMeters,omitempty"`
	Reps                *int             `json:"reps,omitempty"`
	Splits              []workouts.Split `json:"splits,omitempty"`
	Notes               string           `json:"notes,omitempty"`
}

type DeleteWorkoutResponse struct {
	DeletedID string `json:"deletedId"`
}

type StreakResponse struct {
	analytics.Streak
}

type Handler struct {
	repo     workoutsRepo
	merger   merger
	analyzer workoutsAnalyzer
	metrics  *metrics.Manager
}

func NewHandler(repo workoutsRepo, merger merger, analyzer workoutsAnalyzer, metrics *metrics.Manager) *Handler {
	return &Handler{
		repo:     repo,
		merger:   merger,
		analyzer: analyzer,
		metrics:  metrics,
	}
}

// HandleList serves the merged, deduplicated workout set for a user.
func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.list")
	defer span.End()

	userID := mux.Vars(r)["userId"]
	if userID == "" {
		http.Error(w, "error, user id empty", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("user.id", userID))

	set, err := handler.merger.MergedWorkouts(ctx, userID)
	if err != nil {
		log.Errorf("failed to get merged workouts for %s: %s", userID, err)
		http.Error(w, "error, failed to get workouts", http.StatusInternalServerError)
		return
	}

	setJson, err := json.Marshal(set)
	if err != nil {
		log.Errorf("failed to marshal merged workouts: %s", err)
		http.Error(w, "error, failed to get workouts", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, string(setJson))
}

// HandleAdd stores a user-authored workout entry.
func (handler *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.add")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var req AddWorkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("add workout, unmarshal json params: %s", err)
		http.Error(w, "add workout failed", http.StatusBadRequest)
		return
	}

	if req.UserID == "" {
		http.Error(w, "error, user id empty", http.StatusBadRequest)
		return
	}

	workout, err := workouts.Normalize(workouts.RawLocalRecord{
		UserID:          req.UserID,
		Activity:        req.Activity,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		DurationSeconds: req.DurationSeconds,
		DistanceMeters:  req.DistanceMeters,
		CaloriesKcal:    req.CaloriesKcal,
		HeartRateAvg:    req.HeartRateAvg,
		Steps:           req.Steps,
		ElevationGain:   req.ElevationGainMeters,
		Reps:            req.Reps,
		Splits:          req.Splits,
		Notes:           req.Notes,
		UserAuthored:    true,
	}, "", time.Now())
	if err != nil {
		log.Tracef("add workout, normalize: %s", err)
		http.Error(w, "error, workout needs a start time or duration", http.StatusBadRequest)
		return
	}

	added, err := handler.repo.Add(ctx, *workout)
	if err != nil {
		log.Errorf("failed to add workout for %s: %s", req.UserID, err)
		http.Error(w, "error, failed to add workout", http.StatusInternalServerError)
		return
	}

	if handler.metrics != nil {
		handler.metrics.CounterWorkoutsAdded.Inc()
	}
	handler.merger.InvalidateUser(ctx, added.Owner)

	addedJson, err := json.Marshal(added)
	if err != nil {
		log.Errorf("failed to marshal added workout: %s", err)
		http.Error(w, "error, failed to add workout", http.StatusInternalServerError)
		return
	}

	log.Debugf("new workout added: %s", added.ID)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, addedJson, http.StatusCreated)
}

// HandleDelete removes a local workout record.
func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.delete")
	defer span.End()

	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, "error, workout id empty", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("workout.id", id))

	workout, err := handler.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, workouts.ErrWorkoutNotFound) {
			http.Error(w, "workout not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get workout %s: %s", id, err)
		http.Error(w, "error, failed to delete workout", http.StatusInternalServerError)
		return
	}

	if err := handler.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, workouts.ErrWorkoutNotFound) {
			http.Error(w, "workout not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to delete workout %s: %s", id, err)
		http.Error(w, "error, failed to delete workout", http.StatusInternalServerError)
		return
	}

	handler.merger.InvalidateUser(ctx, workout.Owner)

	respJson, err := json.Marshal(DeleteWorkoutResponse{DeletedID: id})
	if err != nil {
		log.Errorf("failed to marshal delete response: %s", err)
		http.Error(w, "error, failed to delete workout", http.StatusInternalServerError)
		return
	}
	pkg.WriteJSONResponseOK(w, string(respJson))
}

// HandleInvalidateCache drops a user's cached merged set so the next
// list request runs a fresh merge cycle. Admin-only maintenance endpoint.
func (handler *Handler) HandleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.invalidateCache")
	defer span.End()

	userID := mux.Vars(r)["userId"]
	if userID == "" {
		http.Error(w, "error, user id empty", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("user.id", userID))

	handler.merger.InvalidateUser(ctx, userID)
	log.Debugf("merged workouts cache invalidated for: %s", userID)
	pkg.WriteTextResponseOK(w, "invalidated")
}

// HandleSync marks a local workout as synced to the relay network.
func (handler *Handler) HandleSync(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.sync")
	defer span.End()

	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, "error, workout id empty", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("workout.id", id))

	if err := handler.repo.MarkSynced(ctx, id); err != nil {
		if errors.Is(err, workouts.ErrWorkoutNotFound) {
			http.Error(w, "workout not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to mark workout %s synced: %s", id, err)
		http.Error(w, "error, failed to sync workout", http.StatusInternalServerError)
		return
	}

	pkg.WriteTextResponseOK(w, "synced")
}

// HandleRecords serves personal records per standard distance.
func (handler *Handler) HandleRecords(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.records")
	defer span.End()

	userID := mux.Vars(r)["userId"]
	if userID == "" {
		http.Error(w, "error, user id empty", http.StatusBadRequest)
		return
	}

	records, err := handler.analyzer.PersonalRecords(ctx, userID)
	if err != nil {
		log.Errorf("failed to get personal records for %s: %s", userID, err)
		http.Error(w, "error, failed to get records", http.StatusInternalServerError)
		return
	}

	recordsJson, err := json.Marshal(records)
	if err != nil {
		log.Errorf("failed to marshal personal records: %s", err)
		http.Error(w, "error, failed to get records", http.StatusInternalServerError)
		return
	}
	pkg.WriteJSONResponseOK(w, string(recordsJson))
}

// HandleStreak serves the current and longest consecutive-day streaks.
func (handler *Handler) HandleStreak(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.streak")
	defer span.End()

	userID := mux.Vars(r)["userId"]
	if userID == "" {
		http.Error(w, "error, user id empty", http.StatusBadRequest)
		return
	}

	streak, err := handler.analyzer.Streak(ctx, userID)
	if err != nil {
		log.Errorf("failed to get streak for %s: %s", userID, err)
		http.Error(w, "error, failed to get streak", http.StatusInternalServerError)
		return
	}

	streakJson, err := json.Marshal(StreakResponse{Streak: streak})
	if err != nil {
		log.Errorf("failed to marshal streak: %s", err)
		http.Error(w, "error, failed to get streak", http.StatusInternalServerError)
		return
	}
	pkg.WriteJSONResponseOK(w, string(streakJson))
}

// HandleScores serves the category and holistic performance scores.
func (handler *Handler) HandleScores(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.scores")
	defer span.End()

	userID := mux.Vars(r)["userId"]
	if userID == "" {
		http.Error(w, "error, user id empty", http.StatusBadRequest)
		return
	}

	scores, err := handler.analyzer.Scores(ctx, userID)
	if err != nil {
		log.Errorf("failed to get scores for %s: %s", userID, err)
		http.Error(w, "error, failed to get scores", http.StatusInternalServerError)
		return
	}

	scoresJson, err := json.Marshal(scores)
	if err != nil {
		log.Errorf("failed to marshal scores: %s", err)
		http.Error(w, "error, failed to get scores", http.StatusInternalServerError)
		return
	}
	pkg.WriteJSONResponseOK(w, string(scoresJson))
}

// HandleVolume serves per-period workout totals. The period comes from
// the "period" query param, defaulting to week.
func (handler *Handler) HandleVolume(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.volume")
	defer span.End()

	userID := mux.Vars(r)["userId"]
	if userID == "" {
		http.Error(w, "error, user id empty", http.StatusBadRequest)
		return
	}

	period := analytics.Period(r.URL.Query().Get("period"))
	switch period {
	case analytics.PeriodDay, analytics.PeriodWeek, analytics.PeriodMonth:
	case "":
		period = analytics.PeriodWeek
	default:
		http.Error(w, "error, invalid period", http.StatusBadRequest)
		return
	}

	buckets, err := handler.analyzer.Volume(ctx, userID, period)
	if err != nil {
		log.Errorf("failed to get volume for %s: %s", userID, err)
		http.Error(w, "error, failed to get volume", http.StatusInternalServerError)
		return
	}

	bucketsJson, err := json.Marshal(buckets)
	if err != nil {
		log.Errorf("failed to marshal volume: %s", err)
		http.Error(w, "error, failed to get volume", http.StatusInternalServerError)
		return
	}
	pkg.WriteJSONResponseOK(w, string(bucketsJson))
}
