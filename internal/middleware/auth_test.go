package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/runstr-app/runstr-server/internal/auth"
	"github.com/runstr-app/runstr-server/internal/middleware"

	"github.com/stretchr/testify/assert"
)

func TestAuthMiddlewareHandler_AuthCheck(t *testing.T) {
	loginChecker := auth.NewLoginTestChecker()
	loginChecker.LoggedSessions["valid-token"] = true

	authMiddleware := middleware.NewAuthMiddlewareHandler(
		"appRequestsSecret",
		loginChecker,
	)

	testCases := []struct {
		name               string
		path               string
		method             string
		token              string
		expectedStatusCode int
	}{
		{
			name:               "AllowedPathWithoutToken",
			path:               "/health/status",
			method:             "GET",
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "LeaderboardWithoutToken",
			path:               "/leaderboard/5k",
			method:             "GET",
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "AppRequestValidSecret",
			path:               "/workouts",
			method:             "POST",
			token:              "appRequestsSecret",
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "AppRequestInvalidSecret",
			path:               "/workouts",
			method:             "POST",
			token:              "invalid-token",
			expectedStatusCode: http.StatusUnauthorized,
		},
		{
			name:               "AppRequestMissingSecret",
			path:               "/workouts/user-1",
			method:             "GET",
			expectedStatusCode: http.StatusUnauthorized,
		},
		{
			name:               "AdminPathValidSession",
			path:               "/admin/sessions/clean",
			method:             "POST",
			token:              "valid-token",
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "AdminPathInvalidSession",
			path:               "/admin/sessions/clean",
			method:             "POST",
			token:              "some-other-token",
			expectedStatusCode: http.StatusUnauthorized,
		},
		{
			name:               "AdminPathMissingToken",
			path:               "/admin/sessions/clean",
			method:             "POST",
			expectedStatusCode: http.StatusUnauthorized,
		},
		{
			name:               "OptionsPreflight",
			path:               "/workouts",
			method:             "OPTIONS",
			expectedStatusCode: http.StatusOK,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := http.NewRequest(tc.method, tc.path, nil)
			assert.NoError(t, err)
			if tc.token != "" {
				req.Header.Add("X-RUNSTR-TOKEN", tc.token)
			}

			rr := httptest.NewRecorder()
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
			authMiddleware.AuthCheck()(handler).ServeHTTP(rr, req)

			assert.Equal(t, tc.expectedStatusCode, rr.Code)
		})
	}
}
