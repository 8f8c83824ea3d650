package promoter

import (
	"context"
	"sync"

	"github.com/extpin/extpin/core/infra/logging"
	"github.com/extpin/extpin/core/store"
)

// CacheStore persists the promoted set as it stood at the end of the
// previous process lifetime. It reads the backend once per process, lazily,
// and writes back at most once, at commit time, and only when the set
// changed.
type CacheStore struct {
	backend store.Store
	key     string

	mu     sync.Mutex
	read   bool
	cached []string
}

// NewCacheStore wraps a KV backend. An empty key uses the default cache key.
func NewCacheStore(backend store.Store, key string) *CacheStore {
	if key == "" {
		key = store.KeyPromotedCache
	}
	return &CacheStore{backend: backend, key: key}
}

// Get returns the cached set, reading it from the backend on first access.
// Read failures degrade to an empty cache: the process continues and the
// next commit repairs the stored value.
func (c *CacheStore) Get(ctx context.Context) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.read {
		vals, err := c.backend.GetList(ctx, c.key)
		if err != nil {
			logging.Error("cache", "read cached set", "key", c.key, "error", err)
			vals = nil
		}
		c.cached = vals
		c.read = true
	}
	return append([]string(nil), c.cached...)
}

// Commit writes the final promoted set, skipping the write when it equals
// the set read at process start (order-sensitive comparison). The returned
// result is "written", "skipped", or "failed".
func (c *CacheStore) Commit(ctx context.Context, promoted []string) string {
	current := c.Get(ctx)
	if equalSets(current, promoted) {
		return "skipped"
	}
	if err := c.backend.PutList(ctx, c.key, promoted); err != nil {
		// Non-fatal: the next process re-attempts with in-memory state.
		logging.Error("cache", "commit promoted set", "key", c.key, "error", err)
		return "failed"
	}
	c.mu.Lock()
	c.cached = append([]string(nil), promoted...)
	c.mu.Unlock()
	return "written"
}

func equalSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
