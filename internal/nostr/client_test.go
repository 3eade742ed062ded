package nostr_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/runstr-app/runstr-server/internal/nostr"
	"github.com/runstr-app/runstr-server/internal/telemetry/metrics"
	"github.com/runstr-app/runstr-server/internal/workouts"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func workoutEvent(id, pubkey string, start time.Time) workouts.RawNostrEvent {
	return workouts.RawNostrEvent{
		ID:        id,
		Pubkey:    pubkey,
		CreatedAt: start.Unix(),
		Kind:      1301,
		Tags: [][]string{
			{"exercise", "run"},
			{"distance", "5.00", "km"},
			{"duration", "00:25:00"},
		},
	}
}

func newRelayServer(t *testing.T, hits *int32, events []workouts.RawNostrEvent) (*httptest.Server, []byte) {
	t.Helper()
	eventsJson, err := json.Marshal(events)
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		assert.Equal(t, "1301", r.URL.Query().Get("kinds"))
		_, _ = w.Write(eventsJson)
	}))
	t.Cleanup(server.Close)
	return server, eventsJson
}

func TestClient_Fetch(t *testing.T) {
	start := time.Date(2024, 3, 10, 7, 0, 0, 0, time.UTC)
	var hits int32
	server, eventsJson := newRelayServer(t, &hits, []workouts.RawNostrEvent{
		workoutEvent("ev-1", "npub123", start),
	})

	db, mock := redismock.NewClientMock()
	mock.ExpectGet("nostr-events::npub123").RedisNil()
	mock.ExpectSet("nostr-events::npub123", eventsJson, 2*time.Minute).SetVal("OK")

	client := nostr.NewClient(server.URL, server.Client(), db, nil)
	records, err := client.Fetch(context.Background(), "npub123")
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, workouts.SourceNostr, records[0].Source)
	assert.Equal(t, "npub123", records[0].Owner)
	assert.Equal(t, workouts.ActivityRunning, records[0].Activity)
	assert.Equal(t, 5000.0, records[0].DistanceMeters)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClient_EventsByAuthor_FromCache(t *testing.T) {
	start := time.Date(2024, 3, 10, 7, 0, 0, 0, time.UTC)
	events := []workouts.RawNostrEvent{workoutEvent("ev-1", "npub123", start)}
	eventsJson, err := json.Marshal(events)
	require.NoError(t, err)

	var hits int32
	server, _ := newRelayServer(t, &hits, nil)

	db, mock := redismock.NewClientMock()
	mock.ExpectGet("nostr-events::npub123").SetVal(string(eventsJson))

	client := nostr.NewClient(server.URL, server.Client(), db, nil)
	got, err := client.EventsByAuthor(context.Background(), "npub123")
	require.NoError(t, err)

	assert.Equal(t, events, got)
	assert.Zero(t, atomic.LoadInt32(&hits), "cached page must not hit the gateway")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClient_Fetch_DropsMalformedEvents(t *testing.T) {
	start := time.Date(2024, 3, 10, 7, 0, 0, 0, time.UTC)
	var hits int32
	server, eventsJson := newRelayServer(t, &hits, []workouts.RawNostrEvent{
		workoutEvent("ev-1", "npub123", start),
		{ID: "ev-wrong-kind", Pubkey: "npub123", Kind: 1, CreatedAt: start.Unix()},
	})

	db, mock := redismock.NewClientMock()
	mock.ExpectGet("nostr-events::npub123").RedisNil()
	mock.ExpectSet("nostr-events::npub123", eventsJson, 2*time.Minute).SetVal("OK")

	client := nostr.NewClient(server.URL, server.Client(), db, metrics.NewTestManager())
	records, err := client.Fetch(context.Background(), "npub123")
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, "ev-1", records[0].ID)
}

func TestClient_GatewayDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	db, mock := redismock.NewClientMock()
	mock.ExpectGet("nostr-events::npub123").RedisNil()

	client := nostr.NewClient(server.URL, server.Client(), db, nil)
	_, err := client.Fetch(context.Background(), "npub123")
	assert.Error(t, err)
}
