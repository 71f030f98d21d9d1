package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/groceryplus/admin-console/internal/http/client"
	"github.com/groceryplus/admin-console/internal/observability"
	"github.com/groceryplus/admin-console/internal/repository"
)

const persistPrefix = "query-cache:"

// Fetcher produces the payload for a key. It must return valid bytes or an
// error.
type Fetcher func(ctx context.Context) ([]byte, error)

type Options struct {
	StaleTime         time.Duration
	FamilyStaleTimes  map[string]time.Duration
	GCTime            time.Duration
	NegativeTTL       time.Duration
	Retry             int
	FamilyRetry       map[string]RetryPolicy
	RetryDelay        time.Duration
	PersistedFamilies []string
	SweepInterval     time.Duration
	Now               func() time.Time
}

// RetryPolicy overrides Retry for one family. List and Detail count the
// extra attempts after the first failure.
type RetryPolicy struct {
	List   int
	Detail int
}

type entry struct {
	key       Key
	data      []byte
	fetchedAt time.Time
	lastUsed  time.Time
}

type readOptions struct {
	force bool
}

type ReadOption func(*readOptions)

// ForceRefresh skips any cached value and waits for a fresh fetch.
func ForceRefresh() ReadOption {
	return func(o *readOptions) { o.force = true }
}

// Coordinator is the read-through cache shared by all resource services.
// Concurrent reads of one key share a single fetch; mutations invalidate a
// family by bumping its epoch so fetches started earlier are never stored.
type Coordinator struct {
	mu        sync.Mutex
	entries   map[string]*entry
	epochs    map[string]uint64
	gen       uint64
	group     singleflight.Group
	negative  *NegativeLookupCache
	kv        repository.KVStore
	persisted map[string]bool
	persistMu sync.Mutex
	opts      Options
	logger    *slog.Logger
}

func NewCoordinator(kv repository.KVStore, logger *slog.Logger, opts Options) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.StaleTime <= 0 {
		opts.StaleTime = 5 * time.Minute
	}
	if opts.GCTime <= 0 {
		opts.GCTime = 5 * time.Minute
	}
	persisted := make(map[string]bool, len(opts.PersistedFamilies))
	for _, f := range opts.PersistedFamilies {
		persisted[f] = true
	}
	return &Coordinator{
		entries:   make(map[string]*entry),
		epochs:    make(map[string]uint64),
		negative:  NewNegativeLookupCache(),
		kv:        kv,
		persisted: persisted,
		opts:      opts,
		logger:    logger.With("component", "cache"),
	}
}

func (c *Coordinator) staleTime(family string) time.Duration {
	if d, ok := c.opts.FamilyStaleTimes[family]; ok {
		return d
	}
	return c.opts.StaleTime
}

// Read returns the cached payload for key, fetching it on a miss. A stale
// hit is served immediately while a background refresh runs.
func (c *Coordinator) Read(ctx context.Context, key Key, fetch Fetcher, opts ...ReadOption) ([]byte, error) {
	var ro readOptions
	for _, opt := range opts {
		opt(&ro)
	}
	k := key.String()
	now := c.opts.Now()

	if !ro.force {
		c.mu.Lock()
		if e, ok := c.entries[k]; ok {
			e.lastUsed = now
			data := e.data
			stale := now.Sub(e.fetchedAt) >= c.staleTime(key.Family)
			c.mu.Unlock()
			if !stale {
				observability.RecordCacheRead(ctx, key.Family, "hit")
				return data, nil
			}
			observability.RecordCacheRead(ctx, key.Family, "stale")
			go c.refresh(key, fetch)
			return data, nil
		}
		c.mu.Unlock()

		if ok, err := c.negative.Get(key.Family, k); ok {
			observability.RecordCacheRead(ctx, key.Family, "negative")
			return nil, err
		}
	}

	observability.RecordCacheRead(ctx, key.Family, "miss")
	return c.fetch(ctx, key, fetch)
}

func (c *Coordinator) refresh(key Key, fetch Fetcher) {
	if _, err := c.fetch(context.Background(), key, fetch); err != nil {
		c.logger.Debug("background refresh failed", "key", key.String(), "error", err)
	}
}

func (c *Coordinator) fetch(ctx context.Context, key Key, fetch Fetcher) ([]byte, error) {
	c.mu.Lock()
	epoch, gen := c.epochs[key.Family], c.gen
	c.mu.Unlock()

	// the epoch is part of the flight key: a read issued after an
	// invalidation never joins a fetch that started before it
	flight := key.String() + "#" + strconv.FormatUint(gen, 10) + "." + strconv.FormatUint(epoch, 10)
	ch := c.group.DoChan(flight, func() (any, error) {
		fctx := context.WithoutCancel(ctx)
		data, err := c.runFetcher(fctx, c.retriesFor(key), fetch)
		if err != nil {
			c.rememberFailure(key, err)
			return nil, err
		}
		c.store(fctx, key, data, epoch, gen)
		return data, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Coordinator) retriesFor(key Key) int {
	p, ok := c.opts.FamilyRetry[key.Family]
	switch {
	case !ok:
		return c.opts.Retry
	case key.IsDetail():
		return p.Detail
	default:
		return p.List
	}
}

func (c *Coordinator) runFetcher(ctx context.Context, retries int, fetch Fetcher) ([]byte, error) {
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 && c.opts.RetryDelay > 0 {
			time.Sleep(c.opts.RetryDelay * time.Duration(attempt))
		}
		var data []byte
		data, err = fetch(ctx)
		if err == nil {
			return data, nil
		}
		if !retryable(err) {
			return nil, err
		}
	}
	return nil, err
}

// retryable excludes auth failures and client rejections, which a second
// attempt cannot fix.
func retryable(err error) bool {
	if client.IsAuthFailure(err) || client.IsClientFailure(err) {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

func (c *Coordinator) rememberFailure(key Key, err error) {
	if client.IsClientFailure(err) {
		c.negative.Set(key.Family, key.String(), err, c.opts.NegativeTTL)
	}
}

func (c *Coordinator) store(ctx context.Context, key Key, data []byte, epoch, gen uint64) {
	now := c.opts.Now()
	c.mu.Lock()
	if c.epochs[key.Family] != epoch || c.gen != gen {
		c.mu.Unlock()
		c.logger.Debug("discarding result fetched across invalidation", "key", key.String())
		return
	}
	c.entries[key.String()] = &entry{key: key, data: data, fetchedAt: now, lastUsed: now}
	c.mu.Unlock()

	if c.persisted[key.Family] {
		c.persistFamily(ctx, key.Family)
	}
}

// Invalidate drops every cached entry of family, in memory and on disk.
func (c *Coordinator) Invalidate(ctx context.Context, family string) {
	c.invalidate(ctx, family, "family")
}

// InvalidateID drops every entry of family after a mutation of id, other
// ids' details included.
func (c *Coordinator) InvalidateID(ctx context.Context, family, id string) {
	c.invalidate(ctx, family, "mutation")
	c.logger.DebugContext(ctx, "invalidated cache family after mutation", "family", family, "id", id)
}

func (c *Coordinator) invalidate(ctx context.Context, family, scope string) {
	c.mu.Lock()
	c.epochs[family]++
	for k, e := range c.entries {
		if e.key.Family == family {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
	c.negative.InvalidateNamespace(family)
	if c.persisted[family] {
		c.persistMu.Lock()
		if err := c.kv.Delete(ctx, persistPrefix+family); err != nil {
			c.logger.WarnContext(ctx, "drop persisted cache family failed", "family", family, "error", err)
		}
		c.persistMu.Unlock()
	}
	observability.RecordCacheInvalidation(ctx, family, scope)
}

// PurgeVolatile drops every family that is not persisted.
func (c *Coordinator) PurgeVolatile(ctx context.Context) {
	c.mu.Lock()
	c.gen++
	for k, e := range c.entries {
		if !c.persisted[e.key.Family] {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
	c.logger.DebugContext(ctx, "purged volatile cache families")
}

// Reset drops all in-memory state. Persisted families remain on disk and
// come back with the next Hydrate.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	c.gen++
	c.entries = make(map[string]*entry)
	c.mu.Unlock()
	c.negative.Reset()
}

// Sweep evicts entries unused for longer than the retention window.
func (c *Coordinator) Sweep(ctx context.Context) int {
	now := c.opts.Now()
	touched := make(map[string]bool)
	evicted := 0
	c.mu.Lock()
	for k, e := range c.entries {
		if now.Sub(e.lastUsed) > c.opts.GCTime {
			delete(c.entries, k)
			touched[e.key.Family] = true
			evicted++
		}
	}
	c.mu.Unlock()
	for family := range touched {
		if c.persisted[family] {
			c.persistFamily(ctx, family)
		}
	}
	return evicted
}

// Run sweeps on an interval until ctx is done.
func (c *Coordinator) Run(ctx context.Context) {
	interval := c.opts.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep(ctx)
		}
	}
}

// Len returns the number of cached entries.
func (c *Coordinator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

type persistedEntry struct {
	Key       Key       `json:"key"`
	Data      []byte    `json:"data"`
	FetchedAt time.Time `json:"fetchedAt"`
}

func (c *Coordinator) persistFamily(ctx context.Context, family string) {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	c.mu.Lock()
	items := make([]persistedEntry, 0)
	for _, e := range c.entries {
		if e.key.Family == family {
			items = append(items, persistedEntry{Key: e.key, Data: e.data, FetchedAt: e.fetchedAt})
		}
	}
	c.mu.Unlock()

	var err error
	if len(items) == 0 {
		err = c.kv.Delete(ctx, persistPrefix+family)
	} else {
		var raw []byte
		raw, err = json.Marshal(items)
		if err == nil {
			err = c.kv.Set(ctx, persistPrefix+family, raw)
		}
	}
	if err != nil {
		c.logger.WarnContext(ctx, "persist cache family failed", "family", family, "error", err)
	}
}

// Hydrate loads persisted families. Entries past the retention window and
// corrupt blobs are dropped.
func (c *Coordinator) Hydrate(ctx context.Context) error {
	now := c.opts.Now()
	var errs []error
	for family := range c.persisted {
		raw, found, err := c.kv.Get(ctx, persistPrefix+family)
		if err != nil {
			errs = append(errs, fmt.Errorf("load cache family %s: %w", family, err))
			continue
		}
		if !found {
			continue
		}
		var items []persistedEntry
		if err := json.Unmarshal(raw, &items); err != nil {
			c.logger.WarnContext(ctx, "dropping corrupt persisted cache family", "family", family, "error", err)
			_ = c.kv.Delete(ctx, persistPrefix+family)
			continue
		}
		c.mu.Lock()
		for _, it := range items {
			if it.Key.Family != family || now.Sub(it.FetchedAt) > c.opts.GCTime {
				continue
			}
			k := it.Key.String()
			if _, exists := c.entries[k]; exists {
				continue
			}
			c.entries[k] = &entry{key: it.Key, data: it.Data, fetchedAt: it.FetchedAt, lastUsed: now}
		}
		c.mu.Unlock()
	}
	return errors.Join(errs...)
}

// ReadJSON is Read for typed payloads.
func ReadJSON[T any](ctx context.Context, c *Coordinator, key Key, fetch func(ctx context.Context) (T, error), opts ...ReadOption) (T, error) {
	var zero T
	raw, err := c.Read(ctx, key, func(ctx context.Context) ([]byte, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	}, opts...)
	if err != nil {
		return zero, err
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, fmt.Errorf("decode cached %s: %w", key.Family, err)
	}
	return out, nil
}
