package entityclient

import (
	"sync"

	"github.com/leapstack-labs/leapconn/pkg/connstr"
)

// defaultCacheSize bounds the number of parsed strings kept per cache.
const defaultCacheSize = 256

type cacheKey struct {
	table string
	raw   string
}

// ParseCache memoizes parsed connection strings. Options are immutable, so
// a cached value is shared by every caller. Safe for concurrent use.
type ParseCache struct {
	mu      sync.RWMutex
	entries map[cacheKey]*connstr.Options
	limit   int
}

// NewParseCache returns a cache holding at most limit entries. A limit of
// zero or less uses the default.
func NewParseCache(limit int) *ParseCache {
	if limit <= 0 {
		limit = defaultCacheSize
	}
	return &ParseCache{
		entries: make(map[cacheKey]*connstr.Options),
		limit:   limit,
	}
}

// Parse returns the cached Options for raw under the named keyword table,
// parsing on a miss. Failed parses are not cached.
func (c *ParseCache) Parse(table, raw string, synonyms connstr.Synonyms) (*connstr.Options, error) {
	key := cacheKey{table: table, raw: raw}

	c.mu.RLock()
	opts, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return opts, nil
	}

	opts, err := connstr.Parse(raw, synonyms)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.limit {
		clear(c.entries)
	}
	c.entries[key] = opts
	return opts, nil
}

// Len returns the number of cached entries.
func (c *ParseCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
