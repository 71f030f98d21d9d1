package repository

import (
	"context"
	"errors"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/groceryplus/admin-console/internal/observability"
)

type RedisKVStore struct {
	client redis.UniversalClient
	ns     namespaced
}

func NewRedisKVStore(client redis.UniversalClient, namespace string) *RedisKVStore {
	if namespace == "" {
		namespace = "admin_console"
	}
	return &RedisKVStore{client: client, ns: newNamespaced(namespace)}
}

func (s *RedisKVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.client == nil {
		return nil, false, ErrStoreClosed
	}
	raw, err := s.client.Get(ctx, s.ns.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.RecordRepositoryOperation(ctx, "kv_redis", "get", "not_found")
		return nil, false, nil
	}
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "kv_redis", "get", "error")
		return nil, false, err
	}
	observability.RecordRepositoryOperation(ctx, "kv_redis", "get", "success")
	return raw, true, nil
}

func (s *RedisKVStore) Set(ctx context.Context, key string, value []byte) error {
	return s.SetMany(ctx, map[string][]byte{key: value})
}

func (s *RedisKVStore) SetMany(ctx context.Context, entries map[string][]byte) error {
	if s.client == nil {
		return ErrStoreClosed
	}
	if len(entries) == 0 {
		return nil
	}
	pipe := s.client.TxPipeline()
	for k, v := range entries {
		pipe.Set(ctx, s.ns.key(k), v, 0)
	}
	_, err := pipe.Exec(ctx)
	observability.RecordRepositoryOperation(ctx, "kv_redis", "set", outcome(err))
	return err
}

func (s *RedisKVStore) Delete(ctx context.Context, keys ...string) error {
	if s.client == nil {
		return ErrStoreClosed
	}
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, s.ns.key(k))
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, full...)
	_, err := pipe.Exec(ctx)
	observability.RecordRepositoryOperation(ctx, "kv_redis", "delete", outcome(err))
	return err
}

func (s *RedisKVStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	if s.client == nil {
		return nil, ErrStoreClosed
	}
	out := make([]string, 0)
	iter := s.client.Scan(ctx, 0, s.ns.key(prefix)+"*", 100).Iterator()
	for iter.Next(ctx) {
		out = append(out, s.ns.strip(iter.Val()))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// Close is a no-op; the client is owned by whoever created it.
func (s *RedisKVStore) Close() error { return nil }
