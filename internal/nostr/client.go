package nostr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/runstr-app/runstr-server/internal/telemetry/metrics"
	"github.com/runstr-app/runstr-server/internal/telemetry/tracing"
	"github.com/runstr-app/runstr-server/internal/workouts"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	workoutEventKind = 1301

	eventsCacheTTL       = 2 * time.Minute
	globalEventsCacheTTL = 5 * time.Minute

	authorEventsLimit = 500
	globalEventsLimit = 1000

	leaderboardWindowDays = 30
)

// Client fetches kind 1301 workout notes from a relay gateway, a plain
// HTTP facade over the relay pool. Event pages are cached in redis since
// relays replay the same events on every request.
type Client struct {
	gatewayURL  string
	httpClient  *http.Client
	redisClient *redis.Client
	metrics     *metrics.Manager
}

func NewClient(
	gatewayURL string,
	httpClient *http.Client,
	redisClient *redis.Client,
	metrics *metrics.Manager,
) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		gatewayURL:  gatewayURL,
		httpClient:  httpClient,
		redisClient: redisClient,
		metrics:     metrics,
	}
}

// Name and Fetch make the client a workout source for the merge
// orchestrator. The user id doubles as the nostr pubkey.
func (c *Client) Name() workouts.SourceSystem {
	return workouts.SourceNostr
}

func (c *Client) Fetch(ctx context.Context, userID string) ([]workouts.WorkoutRecord, error) {
	events, err := c.EventsByAuthor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return c.normalizeEvents(events), nil
}

// EventsByAuthor returns the recent workout events published by one
// pubkey. Relays are eventually consistent, events can arrive out of
// order or duplicated across pages; the dedup engine absorbs both.
func (c *Client) EventsByAuthor(ctx context.Context, pubkey string) (_ []workouts.RawNostrEvent, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "nostrClient.eventsByAuthor")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("pubkey", pubkey))

	cacheKey := fmt.Sprintf("nostr-events::%s", pubkey)
	if events, ok := c.cachedEvents(ctx, cacheKey); ok {
		span.SetAttributes(attribute.Bool("from-cache", true))
		return events, nil
	}

	url := fmt.Sprintf(
		"%s/events?kinds=%d&authors=%s&limit=%d",
		c.gatewayURL, workoutEventKind, pubkey, authorEventsLimit,
	)
	events, raw, err := c.getEvents(ctx, url)
	if err != nil {
		return nil, err
	}

	c.cacheEvents(ctx, cacheKey, raw, eventsCacheTTL)
	return events, nil
}

// LeaderboardRecords returns normalized workout records from all pubkeys
// seen on the relays in the last month, the input for distance
// leaderboards.
func (c *Client) LeaderboardRecords(ctx context.Context) (_ []workouts.WorkoutRecord, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "nostrClient.leaderboardRecords")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	cacheKey := "nostr-events::global"
	if events, ok := c.cachedEvents(ctx, cacheKey); ok {
		span.SetAttributes(attribute.Bool("from-cache", true))
		return c.normalizeEvents(events), nil
	}

	since := time.Now().AddDate(0, 0, -leaderboardWindowDays).Unix()
	url := fmt.Sprintf(
		"%s/events?kinds=%d&since=%d&limit=%d",
		c.gatewayURL, workoutEventKind, since, globalEventsLimit,
	)
	events, raw, err := c.getEvents(ctx, url)
	if err != nil {
		return nil, err
	}

	c.cacheEvents(ctx, cacheKey, raw, globalEventsCacheTTL)
	return c.normalizeEvents(events), nil
}

func (c *Client) normalizeEvents(events []workouts.RawNostrEvent) []workouts.WorkoutRecord {
	fetchedAt := time.Now()
	records := make([]workouts.WorkoutRecord, 0, len(events))
	for _, ev := range events {
		record, err := workouts.Normalize(ev, "", fetchedAt)
		if err != nil {
			log.Warnf("nostr: dropping malformed event %s: %s", ev.ID, err)
			if c.metrics != nil {
				c.metrics.CounterMalformedRecords.WithLabelValues(string(workouts.SourceNostr)).Inc()
			}
			continue
		}
		records = append(records, *record)
	}
	return records
}

func (c *Client) cachedEvents(ctx context.Context, key string) ([]workouts.RawNostrEvent, bool) {
	cmd := c.redisClient.Get(ctx, key)
	if err := cmd.Err(); err != nil {
		if err != redis.Nil {
			log.Errorf("failed to get cached nostr events for [%s]: %s", key, err)
		}
		return nil, false
	}

	var events []workouts.RawNostrEvent
	if err := json.Unmarshal([]byte(cmd.Val()), &events); err != nil {
		log.Errorf("failed to unmarshal cached nostr events for [%s]: %s", key, err)
		return nil, false
	}

	log.Tracef("found nostr events for [%s] in redis cache", key)
	return events, true
}

func (c *Client) cacheEvents(ctx context.Context, key string, raw []byte, ttl time.Duration) {
	if err := c.redisClient.Set(ctx, key, raw, ttl).Err(); err != nil {
		log.Errorf("failed to cache nostr events for [%s]: %s", key, err)
	}
}

func (c *Client) getEvents(ctx context.Context, url string) ([]workouts.RawNostrEvent, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("relay gateway returned status %d", resp.StatusCode)
	}

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response bytes: %w", err)
	}

	var events []workouts.RawNostrEvent
	if err := json.Unmarshal(respBytes, &events); err != nil {
		return nil, nil, fmt.Errorf("unmarshal events: %w", err)
	}

	return events, respBytes, nil
}
