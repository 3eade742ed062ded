package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/runstr-app/runstr-server/internal/telemetry/tracing"
	"github.com/runstr-app/runstr-server/pkg"

	log "github.com/sirupsen/logrus"
)

type healthClient interface {
	Status(ctx context.Context, userID string) (*Status, error)
	RequestAuthorization(ctx context.Context, userID string) error
}

type Handler struct {
	client healthClient
}

func NewHandler(client healthClient) *Handler {
	return &Handler{
		client: client,
	}
}

// HandleStatus reports platform health source availability. An
// unreachable gateway is not an error here, the source is simply
// unavailable and the client shows a dismissible banner.
func (handler *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.health.status")
	defer span.End()

	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "error, user id empty", http.StatusBadRequest)
		return
	}

	status, err := handler.client.Status(ctx, userID)
	if err != nil {
		log.Warnf("health gateway status for %s: %s", userID, err)
		status = &Status{Available: false}
	}

	statusJson, err := json.Marshal(status)
	if err != nil {
		log.Errorf("failed to marshal health status: %s", err)
		http.Error(w, "error, failed to get health status", http.StatusInternalServerError)
		return
	}
	pkg.WriteJSONResponseOK(w, string(statusJson))
}

// HandleAuthorize kicks off the platform permission flow.
func (handler *Handler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.health.authorize")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var req authorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("authorize, unmarshal json params: %s", err)
		http.Error(w, "authorize failed", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "error, user id empty", http.StatusBadRequest)
		return
	}

	if err := handler.client.RequestAuthorization(ctx, req.UserID); err != nil {
		log.Errorf("failed to request health authorization for %s: %s", req.UserID, err)
		http.Error(w, "error, failed to request authorization", http.StatusBadGateway)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.Text, []byte("authorization requested"), http.StatusAccepted)
}
