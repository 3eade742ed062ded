package health

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/runstr-app/runstr-server/internal/telemetry/metrics"
	"github.com/runstr-app/runstr-server/internal/telemetry/tracing"
	"github.com/runstr-app/runstr-server/internal/workouts"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	oneMinute           = 60
	workoutsCacheExpire = oneMinute * 5 // gateway responses change slowly

	DefaultWindowDays = 30
)

// Status is the platform health source's availability for one user.
type Status struct {
	Available  bool   `json:"available"`
	Authorized bool   `json:"authorized"`
	Platform   string `json:"platform"`
}

type authorizeRequest struct {
	UserID string `json:"userId"`
}

type workoutsResponse struct {
	Workouts []workouts.RawHealthRecord `json:"workouts"`
}

// Client talks to the platform health gateway, the bridge in front of
// HealthKit / Health Connect exports. Responses are cached briefly since
// the gateway serves full-window snapshots, not deltas.
type Client struct {
	cache      *freecache.Cache
	baseURL    string
	apiKey     string
	windowDays int
	httpClient *http.Client
	metrics    *metrics.Manager
}

func NewClient(baseURL, apiKey string, windowDays int, httpClient *http.Client, metrics *metrics.Manager) *Client {
	megabyte := 1024 * 1024
	cacheSize := 20 * megabyte

	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		cache:      freecache.NewCache(cacheSize),
		baseURL:    baseURL,
		apiKey:     apiKey,
		windowDays: windowDays,
		httpClient: httpClient,
		metrics:    metrics,
	}
}

// Name and Fetch make the client a workout source for the merge
// orchestrator.
func (c *Client) Name() workouts.SourceSystem {
	return workouts.SourcePlatformHealth
}

func (c *Client) Fetch(ctx context.Context, userID string) ([]workouts.WorkoutRecord, error) {
	rawRecords, err := c.FetchRecent(ctx, userID, c.windowDays)
	if err != nil {
		return nil, err
	}

	fetchedAt := time.Now()
	records := make([]workouts.WorkoutRecord, 0, len(rawRecords))
	for _, raw := range rawRecords {
		record, err := workouts.Normalize(raw, userID, fetchedAt)
		if err != nil {
			log.Warnf("health gateway: dropping malformed record %s: %s", raw.UUID, err)
			if c.metrics != nil {
				c.metrics.CounterMalformedRecords.WithLabelValues(string(workouts.SourcePlatformHealth)).Inc()
			}
			continue
		}
		records = append(records, *record)
	}
	return records, nil
}

// Status reports whether the platform health source is present and
// authorized for the user.
func (c *Client) Status(ctx context.Context, userID string) (_ *Status, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "healthClient.status")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", userID))

	respBytes, err := c.get(ctx, fmt.Sprintf("%s/status?userId=%s", c.baseURL, userID))
	if err != nil {
		return nil, err
	}

	status := &Status{}
	if err := json.Unmarshal(respBytes, status); err != nil {
		return nil, fmt.Errorf("unmarshal status response: %w", err)
	}
	return status, nil
}

// RequestAuthorization asks the gateway to start the platform permission
// flow for the user.
func (c *Client) RequestAuthorization(ctx context.Context, userID string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "healthClient.requestAuthorization")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", userID))

	reqJson, err := json.Marshal(authorizeRequest{UserID: userID})
	if err != nil {
		return fmt.Errorf("marshal authorize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/authorize", bytes.NewReader(reqJson))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("authorize request failed with status %d", resp.StatusCode)
	}
	return nil
}

// FetchRecent returns the raw workouts of the last windowDays days. The
// gateway has no delta semantics, repeated calls return overlapping
// windows; downstream dedup absorbs that.
func (c *Client) FetchRecent(ctx context.Context, userID string, windowDays int) (_ []workouts.RawHealthRecord, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "healthClient.fetchRecent")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.Int("window.days", windowDays),
	)

	cacheKey := fmt.Sprintf("workouts::%s::%d", userID, windowDays)
	if cachedBytes, err := c.cache.Get([]byte(cacheKey)); err == nil {
		log.Tracef("found health workouts for %s in cache", userID)
		var cached workoutsResponse
		if err := json.Unmarshal(cachedBytes, &cached); err == nil {
			span.SetAttributes(attribute.Bool("from-cache", true))
			return cached.Workouts, nil
		}
		log.Errorf("failed to unmarshal cached health workouts for %s: %s", userID, err)
	}

	respBytes, err := c.get(ctx, fmt.Sprintf("%s/workouts?userId=%s&days=%d", c.baseURL, userID, windowDays))
	if err != nil {
		return nil, err
	}

	var workoutsResp workoutsResponse
	if err := json.Unmarshal(respBytes, &workoutsResp); err != nil {
		return nil, fmt.Errorf("unmarshal workouts response: %w", err)
	}

	if err := c.cache.Set([]byte(cacheKey), respBytes, workoutsCacheExpire); err != nil {
		log.Errorf("failed to cache health workouts for %s: %s", userID, err)
	}

	return workoutsResp.Workouts, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("health gateway returned status %d", resp.StatusCode)
	}

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response bytes: %w", err)
	}
	return respBytes, nil
}
