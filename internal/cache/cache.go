// Package cache provides a small, injectable TTL cache for slow-changing
// external lookups such as the team and project directories. Entries are
// bounded by TTL and expiry is checked on every read, so there is no hidden
// module-level state and behavior is testable in isolation.
package cache

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// TTL is a TTL-bounded key/value cache. Keys combine a caller scope and the
// lookup parameters so independent callers never share entries.
type TTL struct {
	entries *gocache.Cache
}

// New creates a cache whose entries live for ttl. Expired entries are
// purged in the background every ttl as well.
func New(ttl time.Duration) *TTL {
	return &TTL{entries: gocache.New(ttl, ttl)}
}

// Key builds a cache key from a caller scope and lookup parameters.
func Key(scope string, params ...string) string {
	return scope + ":" + strings.Join(params, "|")
}

// Get returns the cached value for key, checking expiry on read.
func (t *TTL) Get(key string) (any, bool) {
	return t.entries.Get(key)
}

// Set stores a value under key with the cache's default TTL.
func (t *TTL) Set(key string, value any) {
	t.entries.SetDefault(key, value)
}

// GetOrFill returns the cached value for key, calling fill on a miss and
// caching its result. A fill error is returned without caching anything, so
// transient lookup failures do not poison the cache.
func (t *TTL) GetOrFill(key string, fill func() (any, error)) (any, error) {
	if v, ok := t.entries.Get(key); ok {
		return v, nil
	}
	v, err := fill()
	if err != nil {
		return nil, err
	}
	t.entries.SetDefault(key, v)
	return v, nil
}
