package condition

import (
	"sync"

	"alertflow/pkg/metrics"
)

// SetCache memoizes membership sets for large "in" lists, keyed by the canonical form of
// the list so the same denylist shared across events is converted once.
type SetCache struct {
	mu   sync.RWMutex
	sets map[string]map[string]struct{}
}

func NewSetCache() *SetCache {
	return &SetCache{sets: make(map[string]map[string]struct{})}
}

func (c *SetCache) Contains(list, candidate Value) bool {
	set := c.get(list)
	_, ok := set[candidate.Key()]
	return ok
}

func (c *SetCache) get(list Value) map[string]struct{} {
	key := list.Key()

	c.mu.RLock()
	set, ok := c.sets[key]
	c.mu.RUnlock()
	if ok {
		return set
	}

	set = make(map[string]struct{}, len(list.Items()))
	for _, item := range list.Items() {
		set[item.Key()] = struct{}{}
	}

	c.mu.Lock()
	if existing, ok := c.sets[key]; ok {
		set = existing
	} else {
		c.sets[key] = set
	}
	size := len(c.sets)
	c.mu.Unlock()

	metrics.SetInSetCacheSize(size)
	return set
}

func (c *SetCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sets)
}

// Clear swaps in an empty map.
func (c *SetCache) Clear() {
	c.mu.Lock()
	c.sets = make(map[string]map[string]struct{})
	c.mu.Unlock()
	metrics.SetInSetCacheSize(0)
}
