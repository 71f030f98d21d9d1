package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/groceryplus/admin-console/internal/observability"
)

type KVEntry struct {
	Key       string    `gorm:"primaryKey;size:255"`
	Value     []byte    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"index"`
}

func (KVEntry) TableName() string { return "kv_entries" }

// GormKVStore persists console state in a SQL table, either a local sqlite
// file or a shared postgres database.
type GormKVStore struct {
	db *gorm.DB
	ns namespaced
}

func OpenGormKVStore(driver, dsn, namespace string) (*GormKVStore, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		if dsn == "" {
			dsn = "file:admin-console.db?_busy_timeout=5000"
		}
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported gorm driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	return NewGormKVStore(db, namespace)
}

func NewGormKVStore(db *gorm.DB, namespace string) (*GormKVStore, error) {
	if err := db.AutoMigrate(&KVEntry{}); err != nil {
		return nil, fmt.Errorf("migrate kv_entries: %w", err)
	}
	return &GormKVStore{db: db, ns: newNamespaced(namespace)}, nil
}

func (s *GormKVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var e KVEntry
	err := s.db.WithContext(ctx).Where("key = ?", s.ns.key(key)).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		observability.RecordRepositoryOperation(ctx, "kv_gorm", "get", "not_found")
		return nil, false, nil
	}
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "kv_gorm", "get", "error")
		return nil, false, err
	}
	observability.RecordRepositoryOperation(ctx, "kv_gorm", "get", "success")
	return e.Value, true, nil
}

func (s *GormKVStore) Set(ctx context.Context, key string, value []byte) error {
	return s.SetMany(ctx, map[string][]byte{key: value})
}

func (s *GormKVStore) SetMany(ctx context.Context, entries map[string][]byte) error {
	if len(entries) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]KVEntry, 0, len(entries))
	for k, v := range entries {
		rows = append(rows, KVEntry{Key: s.ns.key(k), Value: v, UpdatedAt: now})
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&rows).Error
	})
	observability.RecordRepositoryOperation(ctx, "kv_gorm", "set", outcome(err))
	return err
}

func (s *GormKVStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, s.ns.key(k))
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Where("key IN ?", full).Delete(&KVEntry{}).Error
	})
	observability.RecordRepositoryOperation(ctx, "kv_gorm", "delete", outcome(err))
	return err
}

func (s *GormKVStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.db.WithContext(ctx).Model(&KVEntry{}).
		Where("key LIKE ? ESCAPE '\\'", escapeLike(s.ns.key(prefix))+"%").
		Order("key").
		Pluck("key", &keys).Error
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.ns.strip(k))
	}
	return out, nil
}

func (s *GormKVStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func escapeLike(v string) string {
	out := make([]rune, 0, len(v))
	for _, r := range v {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
