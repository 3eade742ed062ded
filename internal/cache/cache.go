package cache

import (
	"context"
	"time"
)

// Cache is the serve-stale snapshot store used by the merge orchestrator.
// Values are opaque byte payloads; callers own (de)serialization.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Invalidate(ctx context.Context, pattern string) error
}
