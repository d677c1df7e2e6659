package classify

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// DecisionCache is a TTL cache of decisions keyed by artist id. It keeps
// repeat plays of the same artist from hammering the knowledge sources.
type DecisionCache struct {
	cache *cache.Cache
}

// NewDecisionCache creates a cache whose entries expire after ttl.
// Expired entries are purged in the background every ttl/10, floored at
// one minute.
func NewDecisionCache(ttl time.Duration) *DecisionCache {
	cleanup := ttl / 10
	if cleanup < time.Minute {
		cleanup = time.Minute
	}
	return &DecisionCache{
		cache: cache.New(ttl, cleanup),
	}
}

// Get returns the cached decision for an artist, or nil when absent or
// expired. The returned decision is marked as cache served.
func (dc *DecisionCache) Get(artistID string) *Decision {
	if artistID == "" {
		return nil
	}
	entry, found := dc.cache.Get(artistID)
	if !found {
		return nil
	}
	cached, ok := entry.(Decision)
	if !ok {
		return nil
	}
	cached.FromCache = true
	return &cached
}

// Set stores a decision under its artist id using the cache default TTL.
// Decisions are stored by value so later mutation of the original cannot
// leak into cache hits.
func (dc *DecisionCache) Set(decision *Decision) {
	if decision == nil || decision.Artist.ID == "" {
		return
	}
	dc.cache.SetDefault(decision.Artist.ID, *decision)
}

// Invalidate drops the cached decision for one artist, e.g. after an
// override change or an explicit reclassification.
func (dc *DecisionCache) Invalidate(artistID string) {
	dc.cache.Delete(artistID)
}

// Flush drops every cached decision.
func (dc *DecisionCache) Flush() {
	dc.cache.Flush()
}

// Len returns the number of cached decisions, including not yet purged
// expired entries.
func (dc *DecisionCache) Len() int {
	return dc.cache.ItemCount()
}
