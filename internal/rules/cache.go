package rules

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type cacheEntry struct {
	rules    []Rule
	loadedAt time.Time
}

// Cache holds the rule set of one scope for a fixed TTL. Readers always see either the
// previous or the next complete rule set.
type Cache struct {
	source Source
	scope  Scope
	limit  int
	ttl    time.Duration
	now    func() time.Time

	entry  atomic.Pointer[cacheEntry]
	loadMu sync.Mutex
}

func NewCache(source Source, scope Scope, limit int, ttl time.Duration) *Cache {
	return &Cache{
		source: source,
		scope:  scope,
		limit:  limit,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Rules returns the cached rule set, loading it when absent or expired. hit reports whether
// the source was skipped.
func (c *Cache) Rules(ctx context.Context) (rules []Rule, hit bool, err error) {
	if e := c.fresh(); e != nil {
		return e.rules, true, nil
	}

	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	if e := c.fresh(); e != nil {
		return e.rules, true, nil
	}

	loaded, err := c.source.ListEnabled(ctx, c.scope, c.limit)
	if err != nil {
		return nil, false, err
	}

	c.entry.Store(&cacheEntry{rules: loaded, loadedAt: c.now()})
	return loaded, false, nil
}

func (c *Cache) fresh() *cacheEntry {
	e := c.entry.Load()
	if e == nil || c.ttl <= 0 {
		return nil
	}
	if c.now().Sub(e.loadedAt) >= c.ttl {
		return nil
	}
	return e
}

// Clear drops the cached set. Evaluations already holding it keep using it.
func (c *Cache) Clear() {
	c.entry.Store(nil)
}

func (c *Cache) Scope() Scope {
	return c.scope
}
