package redis

import (
	"time"

	"github.com/uber-go/tally/v4"
)

// Metrics tracks row cache operations
type Metrics struct {
	CacheHit   tally.Counter
	CacheMiss  tally.Counter
	CacheError tally.Counter

	Get tally.Timer
	Set tally.Timer

	Invalidation tally.Counter
	KeysEvicted  tally.Counter
}

// NewMetrics returns a new Metrics struct rooted at the given scope
func NewMetrics(scope tally.Scope) *Metrics {
	if scope == nil {
		scope = tally.NoopScope
	}
	cacheScope := scope.SubScope("row_cache")
	lookupScope := cacheScope.SubScope("lookup")

	return &Metrics{
		CacheHit:     lookupScope.Tagged(map[string]string{"result": "hit"}).Counter("count"),
		CacheMiss:    lookupScope.Tagged(map[string]string{"result": "miss"}).Counter("count"),
		CacheError:   lookupScope.Tagged(map[string]string{"result": "error"}).Counter("count"),
		Get:          cacheScope.Timer("get"),
		Set:          cacheScope.Timer("set"),
		Invalidation: cacheScope.Counter("invalidation"),
		KeysEvicted:  cacheScope.Counter("keys_evicted"),
	}
}

// since records the time elapsed from start on timer
func since(timer tally.Timer, start time.Time) {
	timer.Record(time.Since(start))
}
