package storage

import (
	"sync"
	"time"
)

type fallbackEntry struct {
	payload   []byte
	expiresAt time.Time // zero means no expiry
}

func (e fallbackEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// FallbackStore is the volatile in-process map used while the backend is
// unavailable. Entries carry the same serialized payloads a backend entry
// would and expire at an instant computed from the TTL at insertion time.
// Expired entries are pruned lazily on read and by periodic Sweep calls.
type FallbackStore struct {
	mu      sync.RWMutex
	entries map[string]fallbackEntry
}

// NewFallbackStore creates an empty fallback store.
func NewFallbackStore() *FallbackStore {
	return &FallbackStore{
		entries: make(map[string]fallbackEntry),
	}
}

// Get returns the payload for key, deleting and reporting absent any entry
// whose TTL has elapsed.
func (f *FallbackStore) Get(key string) ([]byte, bool) {
	f.mu.RLock()
	entry, ok := f.entries[key]
	f.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if entry.expired(time.Now()) {
		f.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have
		// refreshed the entry.
		if cur, ok := f.entries[key]; ok && cur.expired(time.Now()) {
			delete(f.entries, key)
		}
		f.mu.Unlock()
		return nil, false
	}
	return entry.payload, true
}

// Set stores the payload with an expiry derived from ttl. A non-positive
// ttl stores the entry without expiry.
func (f *FallbackStore) Set(key string, value []byte, ttl time.Duration) {
	entry := fallbackEntry{payload: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	f.mu.Lock()
	f.entries[key] = entry
	f.mu.Unlock()
}

// Delete removes the key if present.
func (f *FallbackStore) Delete(key string) {
	f.mu.Lock()
	delete(f.entries, key)
	f.mu.Unlock()
}

// Sweep removes all expired entries and returns how many were dropped.
// It bounds memory growth from keys that are never read again.
func (f *FallbackStore) Sweep() int {
	now := time.Now()
	removed := 0

	f.mu.Lock()
	for key, entry := range f.entries {
		if entry.expired(now) {
			delete(f.entries, key)
			removed++
		}
	}
	f.mu.Unlock()

	return removed
}

// Len returns the current entry count, expired entries included.
func (f *FallbackStore) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}
