package quote

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/marstr/collection/v2"
	"github.com/rs/zerolog"

	"github.com/guttosm/stockpulse/internal/domain/models"
	"github.com/guttosm/stockpulse/internal/logger"
)

// Options are the request flags that change the shape of a quote.
// Every field must take part in Key.
type Options struct {
	Sparkline bool
}

// NormalizeSymbol trims and upper-cases a ticker.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Key builds the cache key for a symbol and its shape options, so a quote
// with a sparkline never answers a request without one, and vice versa.
func Key(symbol string, opts Options) string {
	return NormalizeSymbol(symbol) + "|sparkline=" + strconv.FormatBool(opts.Sparkline)
}

type cacheEntry struct {
	quote    models.Quote
	storedAt time.Time
}

// Cache memoizes quotes for a freshness window.
//
// Expiry is lazy: a stale entry reads as absent but stays in place until a Put
// for the same key replaces it or the capacity bound pushes it out. The bound
// evicts the least recently used key once MaxEntries distinct keys are held.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	// mu also guards reads: an LRU lookup reorders the recency list.
	mu      sync.Mutex
	entries *collection.LRUCache[string, cacheEntry]

	log zerolog.Logger
}

// NewCache returns a cache with the given freshness window and capacity.
// A non-positive capacity falls back to 1.
func NewCache(ttl time.Duration, maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: collection.NewLRUCache[string, cacheEntry](uint(maxEntries)),
		log:     logger.Component("quote.cache"),
	}
}

// Get returns the quote stored under key if it is younger than the freshness window.
func (c *Cache) Get(key string) (models.Quote, bool) {
	c.mu.Lock()
	e, ok := c.entries.Get(key)
	c.mu.Unlock()

	if !ok {
		c.log.Debug().Str("key", key).Msg("cache miss")
		return models.Quote{}, false
	}
	if age := c.now().Sub(e.storedAt); age >= c.ttl {
		c.log.Debug().Str("key", key).Dur("age", age).Msg("cache stale")
		return models.Quote{}, false
	}
	c.log.Debug().Str("key", key).Msg("cache hit")
	return e.quote.Clone(), true
}

// Put stores a new entry for key, replacing whatever was there.
func (c *Cache) Put(key string, q models.Quote) {
	e := cacheEntry{quote: q.Clone(), storedAt: c.now()}

	c.mu.Lock()
	c.entries.Put(key, e)
	c.mu.Unlock()
}
