package repository

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/groceryplus/admin-console/internal/observability"
)

// BoltKVStore keeps console state in a single bbolt file so it survives
// process restarts.
type BoltKVStore struct {
	db     *bolt.DB
	bucket []byte
	ns     namespaced
}

func OpenBoltKVStore(path, namespace string) (*BoltKVStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	bucket := []byte("console_state")
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltKVStore{db: db, bucket: bucket, ns: newNamespaced(namespace)}, nil
}

func (s *BoltKVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, bolt.ErrDatabaseNotOpen
	}
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(s.bucket).Get([]byte(s.ns.key(key))); v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "kv_bolt", "get", "error")
		return nil, false, err
	}
	if out == nil {
		observability.RecordRepositoryOperation(ctx, "kv_bolt", "get", "not_found")
		return nil, false, nil
	}
	observability.RecordRepositoryOperation(ctx, "kv_bolt", "get", "success")
	return out, true, nil
}

func (s *BoltKVStore) Set(ctx context.Context, key string, value []byte) error {
	return s.SetMany(ctx, map[string][]byte{key: value})
}

func (s *BoltKVStore) SetMany(ctx context.Context, entries map[string][]byte) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		for k, v := range entries {
			if err := b.Put([]byte(s.ns.key(k)), v); err != nil {
				return err
			}
		}
		return nil
	})
	observability.RecordRepositoryOperation(ctx, "kv_bolt", "set", outcome(err))
	return err
}

func (s *BoltKVStore) Delete(ctx context.Context, keys ...string) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		for _, k := range keys {
			if err := b.Delete([]byte(s.ns.key(k))); err != nil {
				return err
			}
		}
		return nil
	})
	observability.RecordRepositoryOperation(ctx, "kv_bolt", "delete", outcome(err))
	return err
}

func (s *BoltKVStore) Keys(_ context.Context, prefix string) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}
	full := []byte(s.ns.key(prefix))
	out := make([]string, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		for k, _ := c.Seek(full); k != nil && bytes.HasPrefix(k, full); k, _ = c.Next() {
			out = append(out, s.ns.strip(string(k)))
		}
		return nil
	})
	return out, err
}

func (s *BoltKVStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
