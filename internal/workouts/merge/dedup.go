package merge

import (
	"sort"
	"time"

	"github.com/runstr-app/runstr-server/internal/workouts"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultStartTimeTolerance = 5 * time.Minute
	DefaultDistanceTolerance  = 0.1
)

// EngineConfig carries the similarity tolerances. Zero values fall back to
// the defaults above.
type EngineConfig struct {
	StartTimeTolerance time.Duration
	// DistanceTolerance is relative, e.g. 0.1 == 10%
	DistanceTolerance float64
}

// Engine collapses near-duplicate workout records arriving from different
// sources into one record per real-world activity.
type Engine struct {
	cfg EngineConfig
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.StartTimeTolerance <= 0 {
		cfg.StartTimeTolerance = DefaultStartTimeTolerance
	}
	if cfg.DistanceTolerance <= 0 {
		cfg.DistanceTolerance = DefaultDistanceTolerance
	}
	return &Engine{cfg: cfg}
}

// DedupResult is the output of one dedup pass.
type DedupResult struct {
	Merged            []workouts.WorkoutRecord
	DuplicatesRemoved int
}

// Deduplicate groups records describing the same real event and keeps one
// winner per group. Matching is transitive: A~B and B~C puts A, B and C in
// one cluster even when A and C alone would not match; chained small clock
// and GPS discrepancies between sources collapse into one record that way.
// Output is sorted by start time, most recent first.
func (e *Engine) Deduplicate(records []workouts.WorkoutRecord) DedupResult {
	if len(records) == 0 {
		return DedupResult{Merged: []workouts.WorkoutRecord{}}
	}

	inputCount := len(records)

	// collapse byte-identical copies (same source, same id) before any
	// similarity comparison
	records = collapseIdentical(records)

	uf := newUnionFind(len(records))

	// dedup only ever compares records belonging to the same person
	byOwner := make(map[string][]int)
	for i, r := range records {
		byOwner[r.Owner] = append(byOwner[r.Owner], i)
	}

	for _, indexes := range byOwner {
		for i := 0; i < len(indexes); i++ {
			for j := i + 1; j < len(indexes); j++ {
				a, b := &records[indexes[i]], &records[indexes[j]]
				if e.sameRealEvent(a, b) {
					uf.union(indexes[i], indexes[j])
				}
			}
		}
	}

	clusters := make(map[int][]int)
	for i := range records {
		root := uf.find(i)
		clusters[root] = append(clusters[root], i)
	}

	merged := make([]workouts.WorkoutRecord, 0, len(clusters))
	for _, members := range clusters {
		winner := members[0]
		for _, m := range members[1:] {
			if beats(&records[m], &records[winner]) {
				winner = m
			}
		}
		merged = append(merged, records[winner])
	}

	sort.Slice(merged, func(i, j int) bool {
		if !merged[i].StartTime.Equal(merged[j].StartTime) {
			return merged[i].StartTime.After(merged[j].StartTime)
		}
		return merged[i].ID < merged[j].ID
	})

	return DedupResult{
		Merged:            merged,
		DuplicatesRemoved: inputCount - len(merged),
	}
}

// sameRealEvent decides whether two records describe one real activity:
// start times within the tolerance window, compatible activity types, and
// distances within the relative tolerance (or both absent).
func (e *Engine) sameRealEvent(a, b *workouts.WorkoutRecord) bool {
	if a.StartTime.IsZero() || b.StartTime.IsZero() {
		// no start time -> never merged, kept as low-confidence unique
		log.Tracef("dedup: record without start time treated as unique: %s / %s", a.ID, b.ID)
		return false
	}

	diff := a.StartTime.Sub(b.StartTime)
	if diff < 0 {
		diff = -diff
	}
	if diff > e.cfg.StartTimeTolerance {
		return false
	}

	if !activityCompatible(a.Activity, b.Activity) {
		return false
	}

	return e.distanceCompatible(a.DistanceMeters, b.DistanceMeters)
}

func activityCompatible(a, b workouts.ActivityType) bool {
	if a == b {
		return true
	}
	// an unknown type never contradicts a known one
	return a == workouts.ActivityOther || b == workouts.ActivityOther || a == "" || b == ""
}

func (e *Engine) distanceCompatible(a, b float64) bool {
	if a <= 0 && b <= 0 {
		return true
	}
	if a <= 0 || b <= 0 {
		// one source measured a distance, the other did not; sources
		// with differing capabilities still report the same event
		return true
	}
	larger := a
	if b > larger {
		larger = b
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff/larger <= e.cfg.DistanceTolerance
}

// beats reports whether candidate should win the cluster over current:
// user-authored local entries first, then the most complete metric set,
// then the most recently fetched copy, with the id as the final tie-break.
func beats(candidate, current *workouts.WorkoutRecord) bool {
	candAuthored := candidate.Source == workouts.SourceLocal && candidate.UserAuthored
	currAuthored := current.Source == workouts.SourceLocal && current.UserAuthored
	if candAuthored != currAuthored {
		return candAuthored
	}

	candComplete := candidate.MetricCompleteness()
	currComplete := current.MetricCompleteness()
	if candComplete != currComplete {
		return candComplete > currComplete
	}

	if !candidate.FetchedAt.Equal(current.FetchedAt) {
		return candidate.FetchedAt.After(current.FetchedAt)
	}

	return candidate.ID < current.ID
}

func collapseIdentical(records []workouts.WorkoutRecord) []workouts.WorkoutRecord {
	type sourceKey struct {
		source workouts.SourceSystem
		id     string
	}
	seen := make(map[sourceKey]bool, len(records))
	out := records[:0:0]
	for _, r := range records {
		key := sourceKey{source: r.Source, id: r.ID}
		if r.ID != "" && seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

// unionFind is a disjoint-set over record indexes, with path compression
// and union by rank.
type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{
		parent: make([]int, n),
		rank:   make([]int, n),
	}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	rootA, rootB := uf.find(a), uf.find(b)
	if rootA == rootB {
		return
	}
	if uf.rank[rootA] < uf.rank[rootB] {
		rootA, rootB = rootB, rootA
	}
	uf.parent[rootB] = rootA
	if uf.rank[rootA] == uf.rank[rootB] {
		uf.rank[rootA]++
	}
}
