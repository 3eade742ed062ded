package health_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/runstr-app/runstr-server/internal/health"
	"github.com/runstr-app/runstr-server/internal/telemetry/metrics"
	"github.com/runstr-app/runstr-server/internal/workouts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGatewayServer(t *testing.T, workoutsHits *int32, records []workouts.RawHealthRecord) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		respJson, err := json.Marshal(health.Status{Available: true, Authorized: true, Platform: "ios"})
		require.NoError(t, err)
		_, _ = w.Write(respJson)
	})
	mux.HandleFunc("/authorize", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("/workouts", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(workoutsHits, 1)
		assert.Equal(t, "user-1", r.URL.Query().Get("userId"))
		respJson, err := json.Marshal(map[string][]workouts.RawHealthRecord{"workouts": records})
		require.NoError(t, err)
		_, _ = w.Write(respJson)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestClient_Status(t *testing.T) {
	var hits int32
	server := newGatewayServer(t, &hits, nil)
	client := health.NewClient(server.URL, "test-key", 30, server.Client(), nil)

	status, err := client.Status(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, status.Available)
	assert.True(t, status.Authorized)
	assert.Equal(t, "ios", status.Platform)
}

func TestClient_RequestAuthorization(t *testing.T) {
	var hits int32
	server := newGatewayServer(t, &hits, nil)
	client := health.NewClient(server.URL, "test-key", 30, server.Client(), nil)

	require.NoError(t, client.RequestAuthorization(context.Background(), "user-1"))
}

func TestClient_Fetch_NormalizesAndDropsMalformed(t *testing.T) {
	start := time.Date(2024, 3, 10, 7, 0, 0, 0, time.UTC)
	var hits int32
	server := newGatewayServer(t, &hits, []workouts.RawHealthRecord{
		{
			UUID:            "hk-1",
			WorkoutType:     "HKWorkoutActivityTypeRunning",
			StartDate:       start,
			DurationSeconds: 1500,
			DistanceMeters:  5000,
		},
		{
			// no start date, no duration: dropped by the normalizer
			UUID: "hk-broken",
		},
	})
	client := health.NewClient(server.URL, "test-key", 30, server.Client(), metrics.NewTestManager())

	records, err := client.Fetch(context.Background(), "user-1")
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, "hk-1", records[0].ID)
	assert.Equal(t, workouts.SourcePlatformHealth, records[0].Source)
	assert.Equal(t, "user-1", records[0].Owner)
	assert.Equal(t, workouts.ActivityRunning, records[0].Activity)
}

func TestClient_FetchRecent_Cached(t *testing.T) {
	var hits int32
	server := newGatewayServer(t, &hits, []workouts.RawHealthRecord{
		{UUID: "hk-1", StartDate: time.Now(), DurationSeconds: 900},
	})
	client := health.NewClient(server.URL, "test-key", 30, server.Client(), nil)

	first, err := client.FetchRecent(context.Background(), "user-1", 30)
	require.NoError(t, err)
	second, err := client.FetchRecent(context.Background(), "user-1", 30)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "second fetch must come from cache")
}

func TestClient_GatewayDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)
	client := health.NewClient(server.URL, "test-key", 30, server.Client(), nil)

	_, err := client.Status(context.Background(), "user-1")
	assert.Error(t, err)

	_, err = client.Fetch(context.Background(), "user-1")
	assert.Error(t, err)
}
