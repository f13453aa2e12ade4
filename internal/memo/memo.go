package memo

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Key identifies one cached dataset within a request.
type Key struct {
	OrgID  string
	Scope  string // scenario, state category or dataset name
	Tag    string // classification tag, empty when not normalised
	Digest string // filter fingerprint
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s|%s", k.OrgID, k.Scope, k.Tag, k.Digest)
}

// Cache is a get-or-create cache for one kind of dataset. Concurrent callers asking for the same key
// share a single in-flight computation; once it succeeds the value is kept for the life of the cache.
// Failures are shared with the callers that were waiting but are not stored.
type Cache[V any] struct {
	name  string
	group singleflight.Group

	mu       sync.RWMutex
	resolved map[string]V
}

// New creates an empty cache. name only appears in logs.
func New[V any](name string) *Cache[V] {
	return &Cache[V]{name: name, resolved: make(map[string]V)}
}

// Get returns the resolved value for key, computing it with load when absent.
func (c *Cache[V]) Get(ctx context.Context, key Key, load func(ctx context.Context) (V, error)) (V, error) {
	k := key.String()

	c.mu.RLock()
	v, ok := c.resolved[k]
	c.mu.RUnlock()
	if ok {
		log.Debug().Str("cache", c.name).Str("key", k).Msg("Cache hit")
		return v, nil
	}

	ch := c.group.DoChan(k, func() (any, error) {
		// Re-check under the flight: a previous flight may have resolved between our read and DoChan.
		c.mu.RLock()
		v, ok := c.resolved[k]
		c.mu.RUnlock()
		if ok {
			return v, nil
		}

		// The loader must outlive a single waiter's cancellation since other waiters share it.
		v, err := load(context.WithoutCancel(ctx))
		if err != nil {
			return v, err
		}
		c.mu.Lock()
		c.resolved[k] = v
		c.mu.Unlock()
		return v, nil
	})

	select {
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			var zero V
			return zero, res.Err
		}
		if res.Shared {
			log.Debug().Str("cache", c.name).Str("key", k).Msg("Joined in-flight load")
		}
		return res.Val.(V), nil
	}
}

// Len reports how many keys have resolved.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.resolved)
}
