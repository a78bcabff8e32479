// pkg/limiter/memory.go
package limiter

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	n       int64
	expires time.Time
}

type memCounter struct {
	mu  sync.Mutex
	m   map[string]*memEntry
	now func() time.Time
}

// NewMemoryCounter returns an in-process Counter for dev and tests. Not
// shared across instances; production uses the redis counter.
func NewMemoryCounter() Counter {
	return &memCounter{m: map[string]*memEntry{}, now: time.Now}
}

func (c *memCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	e, ok := c.m[key]
	if !ok || now.After(e.expires) {
		e = &memEntry{expires: now.Add(ttl)}
		c.m[key] = e
		// opportunistic sweep of expired buckets
		for k, v := range c.m {
			if now.After(v.expires) {
				delete(c.m, k)
			}
		}
	}
	e.n++
	return e.n, nil
}
