package repository

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

var ErrStoreClosed = errors.New("kv store closed")

// KVStore is the durable key-value layer the console persists its session and
// selected cache families into. SetMany and Delete apply all keys atomically.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	SetMany(ctx context.Context, entries map[string][]byte) error
	Delete(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

type InMemoryKVStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

func NewInMemoryKVStore() *InMemoryKVStore {
	return &InMemoryKVStore{data: make(map[string][]byte)}
}

func (s *InMemoryKVStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, ErrStoreClosed
	}
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *InMemoryKVStore) Set(ctx context.Context, key string, value []byte) error {
	return s.SetMany(ctx, map[string][]byte{key: value})
}

func (s *InMemoryKVStore) SetMany(_ context.Context, entries map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	for k, v := range entries {
		s.data[k] = append([]byte(nil), v...)
	}
	return nil
}

func (s *InMemoryKVStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

func (s *InMemoryKVStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	out := make([]string, 0)
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *InMemoryKVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// namespaced prefixes every key so several console profiles can share one
// backend.
type namespaced struct {
	prefix string
}

func newNamespaced(namespace string) namespaced {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		return namespaced{}
	}
	return namespaced{prefix: namespace + ":"}
}

func (n namespaced) key(k string) string { return n.prefix + k }

func (n namespaced) strip(k string) string { return strings.TrimPrefix(k, n.prefix) }
