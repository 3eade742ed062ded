package merge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/runstr-app/runstr-server/internal/cache"
	"github.com/runstr-app/runstr-server/internal/telemetry/metrics"
	"github.com/runstr-app/runstr-server/internal/telemetry/tracing"
	"github.com/runstr-app/runstr-server/internal/workouts"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/multierr"
)

const (
	DefaultFetchTimeout   = 30 * time.Second
	DefaultMergedCacheTTL = 15 * time.Minute

	mergedCacheKeyPrefix = "workouts::merged::"
)

// MergedWorkoutSet is the published output of one fetch-and-merge cycle.
// Readers must treat it as an immutable snapshot.
type MergedWorkoutSet struct {
	Workouts          []workouts.WorkoutRecord      `json:"workouts"`
	PerSourceCounts   map[workouts.SourceSystem]int `json:"perSourceCounts"`
	DuplicatesRemoved int                           `json:"duplicatesRemoved"`
	RefreshedAt       time.Time                     `json:"refreshedAt"`
}

// Orchestrator coordinates fetching from every workout source, runs the
// dedup engine over the combined records and publishes a stable merged set.
// Cached sets are served immediately while a refresh runs in the
// background; concurrent refreshes for the same user coalesce into one.
type Orchestrator struct {
	sources      []Source
	engine       *Engine
	cache        cache.Cache
	metrics      *metrics.Manager
	fetchTimeout time.Duration
	cacheTTL     time.Duration

	mu        sync.Mutex
	inflight  map[string]*refreshCall
	cycleSeq  map[string]uint64
	published map[string]uint64
	subs      map[string]map[int]chan *MergedWorkoutSet
	subSeq    int
}

type refreshCall struct {
	done chan struct{}
	set  *MergedWorkoutSet
}

type NewOrchestratorParams struct {
	Sources      []Source
	Engine       *Engine
	Cache        cache.Cache
	Metrics      *metrics.Manager
	FetchTimeout time.Duration
	CacheTTL     time.Duration
}

func NewOrchestrator(params NewOrchestratorParams) *Orchestrator {
	if params.FetchTimeout <= 0 {
		params.FetchTimeout = DefaultFetchTimeout
	}
	if params.CacheTTL <= 0 {
		params.CacheTTL = DefaultMergedCacheTTL
	}
	return &Orchestrator{
		sources:      params.Sources,
		engine:       params.Engine,
		cache:        params.Cache,
		metrics:      params.Metrics,
		fetchTimeout: params.FetchTimeout,
		cacheTTL:     params.CacheTTL,
		inflight:     map[string]*refreshCall{},
		cycleSeq:     map[string]uint64{},
		published:    map[string]uint64{},
		subs:         map[string]map[int]chan *MergedWorkoutSet{},
	}
}

// MergedWorkouts returns the merged, deduplicated workout set for a user.
// When a cached set exists it is returned immediately and a background
// refresh is kicked off; updated sets reach interested callers through
// Subscribe. Without a cached set, the call awaits one full merge cycle
// (bounded by the per-source fetch timeout).
func (o *Orchestrator) MergedWorkouts(ctx context.Context, userID string) (_ *MergedWorkoutSet, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "merge.orchestrator.mergedWorkouts")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", userID))

	if cached, ok := o.cachedSet(ctx, userID); ok {
		span.SetAttributes(attribute.Bool("merged.from-cache", true))
		go func() {
			// detached from the request: the caller already got its
			// snapshot, the refresh outcome arrives via subscriptions
			refreshCtx, cancel := context.WithTimeout(context.Background(), o.fetchTimeout+time.Second)
			defer cancel()
			o.refresh(refreshCtx, userID)
		}()
		return cached, nil
	}

	span.SetAttributes(attribute.Bool("merged.from-cache", false))
	return o.refresh(ctx, userID), nil
}

// Refresh forces a fetch-and-merge cycle, bypassing the serve-stale path.
func (o *Orchestrator) Refresh(ctx context.Context, userID string) *MergedWorkoutSet {
	return o.refresh(ctx, userID)
}

// Subscribe returns a channel receiving every newly published merged set
// for the user, plus a cancel func. Slow subscribers miss intermediate
// sets, they never block publishing.
func (o *Orchestrator) Subscribe(userID string) (<-chan *MergedWorkoutSet, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.subSeq++
	id := o.subSeq
	ch := make(chan *MergedWorkoutSet, 1)
	if o.subs[userID] == nil {
		o.subs[userID] = map[int]chan *MergedWorkoutSet{}
	}
	o.subs[userID][id] = ch

	cancel := func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.subs[userID], id)
	}
	return ch, cancel
}

// InvalidateUser drops the cached merged set, e.g. after the user added or
// deleted a workout.
func (o *Orchestrator) InvalidateUser(ctx context.Context, userID string) {
	if err := o.cache.Invalidate(ctx, mergedCacheKeyPrefix+userID); err != nil {
		log.Errorf("invalidate merged set cache for %s: %s", userID, err)
	}
}

func (o *Orchestrator) cachedSet(ctx context.Context, userID string) (*MergedWorkoutSet, bool) {
	setBytes, found := o.cache.Get(ctx, mergedCacheKeyPrefix+userID)
	if !found {
		return nil, false
	}

	var set MergedWorkoutSet
	if err := json.Unmarshal(setBytes, &set); err != nil {
		log.Errorf("unmarshal cached merged set for %s: %s", userID, err)
		return nil, false
	}
	return &set, true
}

// refresh runs one coalesced fetch-and-merge cycle. At most one cycle per
// user is in flight; concurrent callers await the in-flight result.
func (o *Orchestrator) refresh(ctx context.Context, userID string) *MergedWorkoutSet {
	o.mu.Lock()
	if call, running := o.inflight[userID]; running {
		o.mu.Unlock()
		<-call.done
		return call.set
	}

	call := &refreshCall{done: make(chan struct{})}
	o.inflight[userID] = call
	o.cycleSeq[userID]++
	cycle := o.cycleSeq[userID]
	o.mu.Unlock()

	set := o.fetchAndMerge(ctx, userID)

	o.mu.Lock()
	delete(o.inflight, userID)
	// last-fetch-wins: never let a superseded cycle overwrite fresher data
	if cycle > o.published[userID] {
		o.published[userID] = cycle
		o.publishLocked(ctx, userID, set)
	}
	o.mu.Unlock()

	call.set = set
	close(call.done)
	return set
}

func (o *Orchestrator) publishLocked(ctx context.Context, userID string, set *MergedWorkoutSet) {
	setBytes, err := json.Marshal(set)
	if err != nil {
		log.Errorf("marshal merged set for %s: %s", userID, err)
	} else {
		o.cache.Set(ctx, mergedCacheKeyPrefix+userID, setBytes, o.cacheTTL)
	}

	for _, ch := range o.subs[userID] {
		select {
		case ch <- set:
		default:
		}
	}
}

// fetchAndMerge queries every source concurrently, each bounded by the
// fetch timeout. Source failures are isolated: a timed-out or unavailable
// source contributes zero records and the merge still succeeds with
// whatever subset responded.
func (o *Orchestrator) fetchAndMerge(ctx context.Context, userID string) *MergedWorkoutSet {
	ctx, span := tracing.GlobalTracer.Start(ctx, "merge.orchestrator.fetchAndMerge")
	defer span.End()

	results := make(chan fetchResult, len(o.sources))
	for _, src := range o.sources {
		go func(s Source) {
			fetchCtx, cancel := context.WithTimeout(ctx, o.fetchTimeout)
			defer cancel()

			started := time.Now()
			records, err := s.Fetch(fetchCtx, userID)
			if o.metrics != nil {
				o.metrics.HistSourceFetchDuration.
					WithLabelValues(string(s.Name())).
					Observe(time.Since(started).Seconds())
			}
			results <- fetchResult{source: s.Name(), records: records, err: err}
		}(src)
	}

	var all []workouts.WorkoutRecord
	var fetchErrs error
	perSourceCounts := make(map[workouts.SourceSystem]int, len(o.sources))
	for range o.sources {
		res := <-results
		if res.err != nil {
			perSourceCounts[res.source] = 0
			fetchErrs = multierr.Append(fetchErrs, res.err)
			if errors.Is(res.err, context.DeadlineExceeded) {
				log.Warnf("source %s timed out for user %s, contributing zero records", res.source, userID)
				if o.metrics != nil {
					o.metrics.CounterSourceTimeouts.WithLabelValues(string(res.source)).Inc()
				}
			} else {
				log.Errorf("source %s failed for user %s: %s", res.source, userID, res.err)
				if o.metrics != nil {
					o.metrics.CounterSourceErrors.WithLabelValues(string(res.source)).Inc()
				}
			}
			continue
		}
		perSourceCounts[res.source] = len(res.records)
		all = append(all, res.records...)
	}

	if fetchErrs != nil {
		log.Debugf("merge cycle for %s finished with source errors: %s", userID, fetchErrs)
	}

	dedupRes := o.engine.Deduplicate(all)
	span.SetAttributes(
		attribute.Int("merged.count", len(dedupRes.Merged)),
		attribute.Int("merged.duplicates-removed", dedupRes.DuplicatesRemoved),
	)

	if o.metrics != nil {
		o.metrics.CounterMergeCycles.Inc()
		o.metrics.CounterDuplicatesRemoved.Add(float64(dedupRes.DuplicatesRemoved))
	}

	return &MergedWorkoutSet{
		Workouts:          dedupRes.Merged,
		PerSourceCounts:   perSourceCounts,
		DuplicatesRemoved: dedupRes.DuplicatesRemoved,
		RefreshedAt:       time.Now(),
	}
}
