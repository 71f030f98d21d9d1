package repository

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/groceryplus/admin-console/internal/config"
)

// OpenStore builds the durable store selected by STORAGE_BACKEND.
func OpenStore(cfg *config.Config) (KVStore, error) {
	switch cfg.StorageBackend {
	case "memory":
		return NewInMemoryKVStore(), nil
	case "bolt":
		s, err := OpenBoltKVStore(cfg.StoragePath, cfg.StorageNamespace)
		if err != nil {
			return nil, fmt.Errorf("open bolt store: %w", err)
		}
		return s, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return &ownedRedisKVStore{RedisKVStore: NewRedisKVStore(client, cfg.StorageNamespace), client: client}, nil
	case "sqlite", "postgres":
		return OpenGormKVStore(cfg.StorageBackend, cfg.DatabaseURL, cfg.StorageNamespace)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.StorageBackend)
	}
}

type ownedRedisKVStore struct {
	*RedisKVStore
	client *redis.Client
}

func (s *ownedRedisKVStore) Close() error { return s.client.Close() }
