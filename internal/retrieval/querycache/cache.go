package querycache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/avoronov/compliance-kb/internal/core/domain"
)

// entry holds one cached retrieval outcome. createdAt orders eviction;
// reads never refresh it.
type entry struct {
	passages  []domain.Passage
	createdAt time.Time
}

// Cache memoizes full retrieval results keyed by normalized query and
// filter. Eviction is oldest-creation-first, not LRU: an entry ages out
// on schedule regardless of how often it is read.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	maxSize int

	hits   int64
	misses int64
	total  int64

	now func() time.Time
}

func New(ttl time.Duration, maxSize int) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Key derives a stable cache key: query case and surrounding whitespace
// do not split entries, nor does filter iteration order.
func Key(query string, filter domain.SearchFilter) string {
	norm := strings.ToLower(strings.TrimSpace(query))
	pairs := make([]string, 0, len(filter))
	for k, v := range filter {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	sum := sha256.Sum256([]byte(norm + "|" + strings.Join(pairs, ",")))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached passages for the query, if present and fresh.
// An entry older than the TTL is deleted on access and counts as a miss.
func (c *Cache) Get(query string, filter domain.SearchFilter) ([]domain.Passage, bool) {
	key := Key(query, filter)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.total++
	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if c.now().Sub(e.createdAt) > c.ttl {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}
	c.hits++
	return e.passages, true
}

// Set stores passages under the query key with a fresh creation time.
// At capacity the oldest-created entry is evicted first, even when the
// write overwrites an existing key.
func (c *Cache) Set(query string, filter domain.SearchFilter, passages []domain.Passage) {
	key := Key(query, filter)

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	c.entries[key] = entry{passages: passages, createdAt: c.now()}
}

func (c *Cache) evictOldest() {
	var victim string
	var oldest time.Time
	first := true
	for k, e := range c.entries {
		if first || e.createdAt.Before(oldest) {
			victim, oldest, first = k, e.createdAt, false
		}
	}
	if !first {
		delete(c.entries, victim)
	}
}

// Clear drops every entry. The hit/miss counters survive so the rate
// keeps reflecting the whole process lifetime.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

func (c *Cache) Stats() domain.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	rate := 0.0
	if c.total > 0 {
		rate = float64(c.hits) / float64(c.total) * 100
	}
	return domain.CacheStats{
		Entries: len(c.entries),
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: rate,
	}
}
