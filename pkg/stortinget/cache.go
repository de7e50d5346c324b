package stortinget

import (
	"sync"
	"time"
)

type cacheEntry struct {
	body      []byte
	expiresAt time.Time
}

// responseCache is an in-memory TTL cache of response bodies keyed by URL.
// Expired entries are dropped on access.
type responseCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

func newResponseCache(ttl time.Duration) *responseCache {
	return &responseCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

func (rc *responseCache) Get(key string) ([]byte, bool) {
	rc.mu.RLock()
	entry, ok := rc.entries[key]
	rc.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if time.Now().After(entry.expiresAt) {
		rc.mu.Lock()
		if current, still := rc.entries[key]; still && time.Now().After(current.expiresAt) {
			delete(rc.entries, key)
		}
		rc.mu.Unlock()
		return nil, false
	}

	return entry.body, true
}

func (rc *responseCache) Set(key string, body []byte) {
	rc.mu.Lock()
	rc.entries[key] = cacheEntry{body: body, expiresAt: time.Now().Add(rc.ttl)}
	rc.mu.Unlock()
}

func (rc *responseCache) Len() int {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return len(rc.entries)
}
