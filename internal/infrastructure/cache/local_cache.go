// Package cache provides the in-process TTL cache used for the catalog index.
package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"

	"github.com/alchemorsel/dietgen/internal/ports/outbound"
)

// Clock returns the current time. Tests swap it to control expiry.
type Clock func() time.Time

// LocalCache is a thread-safe LRU cache with per-entry TTL.
type LocalCache struct {
	items   map[string]*list.Element
	lru     *list.List
	maxSize int
	now     Clock
	mu      sync.Mutex

	hits, misses int64
}

type entry struct {
	key       string
	data      interface{}
	expiresAt time.Time
}

var _ outbound.CatalogCache = (*LocalCache)(nil)

// NewLocalCache creates a cache holding at most maxSize entries. A nil
// clock uses time.Now.
func NewLocalCache(maxSize int, clock Clock) *LocalCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if clock == nil {
		clock = time.Now
	}
	return &LocalCache{
		items:   make(map[string]*list.Element),
		lru:     list.New(),
		maxSize: maxSize,
		now:     clock,
	}
}

// Get returns a live entry and marks it recently used.
func (lc *LocalCache) Get(key string) (interface{}, bool) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	el, ok := lc.items[key]
	if !ok {
		lc.misses++
		return nil, false
	}
	e := el.Value.(*entry)
	if !lc.now().Before(e.expiresAt) {
		lc.remove(el)
		lc.misses++
		return nil, false
	}
	lc.lru.MoveToFront(el)
	lc.hits++
	return e.data, true
}

// Set stores data for ttl, evicting the least recently used entry when full.
func (lc *LocalCache) Set(key string, data interface{}, ttl time.Duration) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	expiresAt := lc.now().Add(ttl)
	if el, ok := lc.items[key]; ok {
		e := el.Value.(*entry)
		e.data, e.expiresAt = data, expiresAt
		lc.lru.MoveToFront(el)
		return
	}

	lc.items[key] = lc.lru.PushFront(&entry{key: key, data: data, expiresAt: expiresAt})
	for lc.lru.Len() > lc.maxSize {
		lc.remove(lc.lru.Back())
	}
}

// Delete removes key.
func (lc *LocalCache) Delete(key string) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if el, ok := lc.items[key]; ok {
		lc.remove(el)
	}
}

// InvalidatePrefix removes every key starting with prefix.
func (lc *LocalCache) InvalidatePrefix(prefix string) int {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	n := 0
	for key, el := range lc.items {
		if strings.HasPrefix(key, prefix) {
			lc.remove(el)
			n++
		}
	}
	return n
}

// CleanupExpired drops expired entries and returns how many were removed.
func (lc *LocalCache) CleanupExpired() int {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	now := lc.now()
	n := 0
	for _, el := range lc.items {
		if !now.Before(el.Value.(*entry).expiresAt) {
			lc.remove(el)
			n++
		}
	}
	return n
}

// Stats is a point-in-time view of the cache.
type Stats struct {
	Size    int   `json:"size"`
	MaxSize int   `json:"max_size"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// GetStats returns cache statistics.
func (lc *LocalCache) GetStats() Stats {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return Stats{Size: lc.lru.Len(), MaxSize: lc.maxSize, Hits: lc.hits, Misses: lc.misses}
}

func (lc *LocalCache) remove(el *list.Element) {
	delete(lc.items, el.Value.(*entry).key)
	lc.lru.Remove(el)
}
