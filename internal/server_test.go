package internal

import (
	"net/http"
	"testing"

	"github.com/runstr-app/runstr-server/internal/auth"
	"github.com/runstr-app/runstr-server/internal/config"
	"github.com/runstr-app/runstr-server/internal/telemetry/metrics"

	"github.com/go-redis/redismock/v8"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_routerSetup(t *testing.T) {
	rdb, _ := redismock.NewClientMock()
	defer func() {
		assert.NoError(t, rdb.Close())
	}()

	server := &Server{
		config:         &config.Config{LoginRateLimitAllowedPerMin: 5},
		redisClient:    rdb,
		authService:    &auth.Service{},
		metricsManager: metrics.NewTestManager(),
	}

	r := server.routerSetup()
	require.NotNil(t, r)

	for caseName, route := range map[string]struct {
		name   string
		path   string
		method string
	}{
		"new-workout": {
			name:   "new-workout",
			path:   "/workouts",
			method: "POST",
		},
		"remove-workout": {
			name:   "remove-workout",
			path:   "/workouts/w-123",
			method: "DELETE",
		},
		"sync-workout": {
			name:   "sync-workout",
			path:   "/workouts/w-123/sync",
			method: "POST",
		},
		"list-workouts": {
			name:   "list-workouts",
			path:   "/workouts/user-1",
			method: "GET",
		},
		"workout-records": {
			name:   "workout-records",
			path:   "/workouts/user-1/records",
			method: "GET",
		},
		"workout-streak": {
			name:   "workout-streak",
			path:   "/workouts/user-1/streak",
			method: "GET",
		},
		"workout-scores": {
			name:   "workout-scores",
			path:   "/workouts/user-1/scores",
			method: "GET",
		},
		"workout-volume": {
			name:   "workout-volume",
			path:   "/workouts/user-1/volume",
			method: "GET",
		},
		"health-status": {
			name:   "health-status",
			path:   "/health/status",
			method: "GET",
		},
		"health-authorize": {
			name:   "health-authorize",
			path:   "/health/authorize",
			method: "POST",
		},
		"leaderboard": {
			name:   "leaderboard",
			path:   "/leaderboard/5k",
			method: "GET",
		},
		"admin-invalidate-cache": {
			name:   "admin-invalidate-cache",
			path:   "/admin/cache/invalidate/user-1",
			method: "POST",
		},
		"root": {
			name:   "root",
			path:   "/",
			method: "GET",
		},
		"version": {
			name:   "version",
			path:   "/version",
			method: "GET",
		},
		"login": {
			name:   "login",
			path:   "/a/login",
			method: "POST",
		},
	} {
		t.Run(caseName, func(t *testing.T) {
			req, err := http.NewRequest(route.method, route.path, nil)
			require.NoError(t, err)

			routeMatch := &mux.RouteMatch{}
			foundRoute := r.Get(route.name)
			require.NotNil(t, foundRoute)
			isMatch := foundRoute.Match(req, routeMatch)
			assert.True(t, isMatch, caseName)
		})
	}
}
