package background

import (
	"strings"
	"sync"
)

// ConditionCache is an in-process mapping from weather-condition keyword to
// resolved photo URL, used to avoid repeat searches within a session. It is
// owned and injected by the pipeline, never ambient state.
//
// Concurrent lookups for the same new key are not deduplicated: both callers
// may issue a search and both will write the mapping, last write wins. This
// is a documented non-guarantee.
type ConditionCache struct {
	mu sync.Mutex
	m  map[string]string
}

// NewConditionCache creates an empty condition cache.
func NewConditionCache() *ConditionCache {
	return &ConditionCache{m: make(map[string]string)}
}

// Get returns the cached URL for condition, if any.
func (c *ConditionCache) Get(condition string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	url, ok := c.m[key(condition)]
	return url, ok
}

// Put stores the resolved URL for condition.
func (c *ConditionCache) Put(condition, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key(condition)] = url
}

// Len returns the number of cached conditions.
func (c *ConditionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}

func key(condition string) string {
	return "weather_" + strings.ToLower(condition)
}
