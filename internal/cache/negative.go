package cache

import (
	"sync"
	"time"
)

// NegativeLookupCache remembers recent fetch failures per family so a
// rejected lookup is not repeated for every render. It is process-local and
// never persisted.
type NegativeLookupCache struct {
	mu    sync.RWMutex
	store map[string]map[string]negativeEntry
	now   func() time.Time
}

type negativeEntry struct {
	err       error
	expiresAt time.Time
}

func NewNegativeLookupCache() *NegativeLookupCache {
	return &NegativeLookupCache{
		store: make(map[string]map[string]negativeEntry),
		now:   time.Now,
	}
}

// Get reports whether a failure is cached and returns it.
func (s *NegativeLookupCache) Get(namespace, key string) (bool, error) {
	now := s.now().UTC()
	s.mu.RLock()
	ns, ok := s.store[namespace]
	if !ok {
		s.mu.RUnlock()
		return false, nil
	}
	entry, ok := ns[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if now.After(entry.expiresAt) {
		s.mu.Lock()
		if ns2, ok2 := s.store[namespace]; ok2 {
			delete(ns2, key)
			if len(ns2) == 0 {
				delete(s.store, namespace)
			}
		}
		s.mu.Unlock()
		return false, nil
	}
	return true, entry.err
}

func (s *NegativeLookupCache) Set(namespace, key string, err error, ttl time.Duration) {
	if ttl <= 0 || err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.store[namespace]
	if !ok {
		ns = make(map[string]negativeEntry)
		s.store[namespace] = ns
	}
	ns[key] = negativeEntry{err: err, expiresAt: s.now().UTC().Add(ttl)}
}

func (s *NegativeLookupCache) InvalidateNamespace(namespace string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.store, namespace)
}

func (s *NegativeLookupCache) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = make(map[string]map[string]negativeEntry)
}
