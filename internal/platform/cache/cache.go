// Package cache provides a small TTL memoization store used to avoid
// re-querying the remote disease-cost store and re-rendering charts when a
// consultant re-renders the same view. Entries are immutable once computed
// and are never invalidated except by expiry.
package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     interface{}
	expiresAt time.Time
}

// TTLStore is a thread-safe in-memory cache with lazy expiration.
type TTLStore struct {
	entries map[string]*entry
	ttl     time.Duration
	mu      sync.RWMutex
}

// New creates a TTLStore whose entries expire after ttl.
func New(ttl time.Duration) *TTLStore {
	return &TTLStore{
		entries: make(map[string]*entry),
		ttl:     ttl,
	}
}

// Get retrieves a value from the cache. Performs lazy expiration: deletes the
// entry and returns a miss if it has expired.
func (s *TTLStore) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores a value in the cache with the store's TTL.
func (s *TTLStore) Set(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &entry{
		value:     value,
		expiresAt: time.Now().Add(s.ttl),
	}
}

// Len returns the number of entries currently held, expired or not.
func (s *TTLStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear removes all entries from the cache.
func (s *TTLStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*entry)
}

// StartCleanup runs a background goroutine that periodically removes expired
// entries. It stops when the context is cancelled.
func (s *TTLStore) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.mu.Lock()
				now := time.Now()
				for k, e := range s.entries {
					if now.After(e.expiresAt) {
						delete(s.entries, k)
					}
				}
				s.mu.Unlock()
			}
		}
	}()
}
