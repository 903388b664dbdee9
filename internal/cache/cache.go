package cache

import (
	"sync"
	"time"
)

// TTLStore is a keyed store with per-entry expiry, used for transient
// secrets such as PIN-reset OTPs. Expiry is evaluated at read time, so a
// stale entry is invisible even before any cleanup runs. Implementations
// must be safe for concurrent use.
type TTLStore interface {
	Put(key, value string, ttl time.Duration)
	Get(key string) (string, bool)
	Invalidate(key string)
}

type entry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is the in-process TTLStore. A multi-instance deployment
// would swap in a distributed cache behind the same interface.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]entry)}
}

func (s *MemoryStore) Put(key, value string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
}

func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return "", false
	}
	if time.Now().After(e.expiresAt) {
		delete(s.entries, key)
		return "", false
	}
	return e.value, true
}

func (s *MemoryStore) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}
