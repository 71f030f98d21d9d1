package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/groceryplus/admin-console/internal/http/client"
	"github.com/groceryplus/admin-console/internal/repository"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newCoordinatorForTest(t *testing.T, kv repository.KVStore, mutate func(*Options)) (*Coordinator, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	opts := Options{
		StaleTime:         5 * time.Minute,
		GCTime:            5 * time.Minute,
		NegativeTTL:       5 * time.Second,
		Retry:             1,
		PersistedFamilies: []string{"categories", "products", "banners"},
		Now:               clock.Now,
	}
	if mutate != nil {
		mutate(&opts)
	}
	if kv == nil {
		kv = repository.NewInMemoryKVStore()
	}
	return NewCoordinator(kv, nil, opts), clock
}

func countingFetcher(calls *atomic.Int32, payload string) Fetcher {
	return func(context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte(payload), nil
	}
}

func TestReadCachesFreshResults(t *testing.T) {
	c, clock := newCoordinatorForTest(t, nil, nil)
	var calls atomic.Int32
	key := ListKey("products", map[string]any{"page": 1})

	for i := 0; i < 3; i++ {
		got, err := c.Read(context.Background(), key, countingFetcher(&calls, `[1]`))
		if err != nil || string(got) != `[1]` {
			t.Fatalf("read %d: %q %v", i, got, err)
		}
		clock.Advance(time.Minute)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one fetch, got %d", calls.Load())
	}
}

func TestConcurrentReadsShareOneFetch(t *testing.T) {
	c, _ := newCoordinatorForTest(t, nil, nil)
	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(context.Context) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte(`{"ok":true}`), nil
	}

	const n = 16
	var wg sync.WaitGroup
	results := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := c.Read(context.Background(), DetailKey("products", "42"), fetch)
			if err != nil {
				t.Errorf("read: %v", err)
			}
			results[i] = string(got)
		}(i)
	}
	time.Sleep(30 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected exactly one fetch, got %d", calls.Load())
	}
	for i, r := range results {
		if r != `{"ok":true}` {
			t.Fatalf("caller %d got %q", i, r)
		}
	}
}

func TestMutationInvalidatesWholeFamily(t *testing.T) {
	kv := repository.NewInMemoryKVStore()
	c, _ := newCoordinatorForTest(t, kv, nil)
	ctx := context.Background()
	var listCalls, detailCalls, otherCalls, bannerCalls atomic.Int32
	list := ListKey("products", map[string]any{"page": 1})

	items := make([]int, 10)
	payload, _ := json.Marshal(items)
	read := func() {
		_, _ = c.Read(ctx, list, countingFetcher(&listCalls, string(payload)))
		_, _ = c.Read(ctx, DetailKey("products", "7"), countingFetcher(&detailCalls, `{"id":7}`))
		_, _ = c.Read(ctx, DetailKey("products", "8"), countingFetcher(&otherCalls, `{"id":8}`))
		_, _ = c.Read(ctx, DetailKey("banners", "8"), countingFetcher(&bannerCalls, `{"id":8}`))
	}
	read()

	c.InvalidateID(ctx, "products", "7")
	if raw, found, _ := kv.Get(ctx, "query-cache:products"); found {
		t.Fatalf("mutation must drop the persisted family, found %s", raw)
	}

	read()
	for name, calls := range map[string]*atomic.Int32{
		"list":         &listCalls,
		"mutated id":   &detailCalls,
		"id 8 of same": &otherCalls,
	} {
		if calls.Load() != 2 {
			t.Fatalf("%s must refetch after a mutation on products, got %d fetches", name, calls.Load())
		}
	}
	if bannerCalls.Load() != 1 {
		t.Fatalf("other families stay cached, got %d fetches", bannerCalls.Load())
	}
}

func TestRetryPerFamilyAndKind(t *testing.T) {
	c, _ := newCoordinatorForTest(t, nil, func(o *Options) {
		o.FamilyRetry = map[string]RetryPolicy{"products": {List: 3, Detail: 2}}
	})
	ctx := context.Background()

	cases := []struct {
		name string
		key  Key
		want int32
	}{
		{name: "products list", key: ListKey("products", nil), want: 4},
		{name: "products detail", key: DetailKey("products", "3"), want: 3},
		{name: "default family", key: ListKey("orders", nil), want: 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int32
			fetch := func(context.Context) ([]byte, error) {
				calls.Add(1)
				return nil, &client.APIError{Kind: client.KindServer, Status: 503}
			}
			if _, err := c.Read(ctx, tc.key, fetch); client.StatusCode(err) != 503 {
				t.Fatalf("expected 503, got %v", err)
			}
			if calls.Load() != tc.want {
				t.Fatalf("expected %d attempts, got %d", tc.want, calls.Load())
			}
		})
	}

	var calls atomic.Int32
	_, err := c.Read(ctx, DetailKey("products", "4"), func(context.Context) ([]byte, error) {
		calls.Add(1)
		return nil, &client.APIError{Kind: client.KindAuth, Status: 401}
	})
	if !client.IsAuthFailure(err) || calls.Load() != 1 {
		t.Fatalf("auth failures are never retried, got %d attempts: %v", calls.Load(), err)
	}
}

func TestFetchAcrossInvalidationIsNotStored(t *testing.T) {
	c, _ := newCoordinatorForTest(t, nil, nil)
	ctx := context.Background()
	key := ListKey("categories", nil)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan []byte)
	go func() {
		got, _ := c.Read(ctx, key, func(context.Context) ([]byte, error) {
			close(started)
			<-release
			return []byte(`"old"`), nil
		})
		done <- got
	}()
	<-started
	c.Invalidate(ctx, "categories")

	var fresh atomic.Int32
	got, err := c.Read(ctx, key, countingFetcher(&fresh, `"new"`))
	if err != nil || string(got) != `"new"` {
		t.Fatalf("read after invalidation must not join the old fetch: %q %v", got, err)
	}
	close(release)
	if old := <-done; string(old) != `"old"` {
		t.Fatalf("original waiter should still get its result, got %q", old)
	}

	got, _ = c.Read(ctx, key, countingFetcher(&fresh, `"newer"`))
	if string(got) != `"new"` {
		t.Fatalf("stale in-flight result overwrote cache: %q", got)
	}
}

func TestStaleEntryServedWhileRefreshing(t *testing.T) {
	c, clock := newCoordinatorForTest(t, nil, nil)
	ctx := context.Background()
	key := DetailKey("banners", "1")
	_, _ = c.Read(ctx, key, func(context.Context) ([]byte, error) { return []byte(`"v1"`), nil })

	clock.Advance(6 * time.Minute)
	refreshed := make(chan struct{})
	got, err := c.Read(ctx, key, func(context.Context) ([]byte, error) {
		defer close(refreshed)
		return []byte(`"v2"`), nil
	})
	if err != nil || string(got) != `"v1"` {
		t.Fatalf("stale read must return cached value: %q %v", got, err)
	}
	<-refreshed

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		got, _ = c.Read(ctx, key, func(context.Context) ([]byte, error) { return []byte(`"v3"`), nil })
		if string(got) == `"v2"` {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("background refresh not stored, got %q", got)
}

func TestForceRefreshFetchesSynchronously(t *testing.T) {
	c, _ := newCoordinatorForTest(t, nil, nil)
	ctx := context.Background()
	var calls atomic.Int32
	key := ListKey("orders", map[string]int{"page": 1})
	_, _ = c.Read(ctx, key, countingFetcher(&calls, `1`))
	got, _ := c.Read(ctx, key, countingFetcher(&calls, `2`), ForceRefresh())
	if string(got) != `2` || calls.Load() != 2 {
		t.Fatalf("force refresh must refetch: %q after %d calls", got, calls.Load())
	}
}

func TestFailuresAreNotCachedAsData(t *testing.T) {
	c, _ := newCoordinatorForTest(t, nil, nil)
	ctx := context.Background()

	t.Run("client errors are remembered briefly", func(t *testing.T) {
		var calls atomic.Int32
		notFound := &client.APIError{Kind: client.KindClient, Status: 404, Message: "not found"}
		fetch := func(context.Context) ([]byte, error) {
			calls.Add(1)
			return nil, notFound
		}
		for i := 0; i < 3; i++ {
			if _, err := c.Read(ctx, DetailKey("categories", "99"), fetch); client.StatusCode(err) != 404 {
				t.Fatalf("expected 404, got %v", err)
			}
		}
		if calls.Load() != 1 {
			t.Fatalf("expected negative cache to absorb repeats, got %d fetches", calls.Load())
		}
	})

	t.Run("auth errors propagate and are never cached", func(t *testing.T) {
		var calls atomic.Int32
		fetch := func(context.Context) ([]byte, error) {
			calls.Add(1)
			return nil, &client.APIError{Kind: client.KindAuth, Status: 401}
		}
		for i := 0; i < 2; i++ {
			if _, err := c.Read(ctx, DetailKey("orders", "1"), fetch); !client.IsAuthFailure(err) {
				t.Fatalf("expected auth failure, got %v", err)
			}
		}
		if calls.Load() != 2 {
			t.Fatalf("auth failures must not be cached or retried, got %d fetches", calls.Load())
		}
	})

	t.Run("server errors are retried", func(t *testing.T) {
		var calls atomic.Int32
		fetch := func(context.Context) ([]byte, error) {
			if calls.Add(1) == 1 {
				return nil, &client.APIError{Kind: client.KindServer, Status: 502}
			}
			return []byte(`"ok"`), nil
		}
		got, err := c.Read(ctx, DetailKey("dashboard", "summary"), fetch)
		if err != nil || string(got) != `"ok"` || calls.Load() != 2 {
			t.Fatalf("expected retry to succeed: %q %v after %d", got, err, calls.Load())
		}
	})
}

func TestPersistedFamiliesSurviveRestart(t *testing.T) {
	kv := repository.NewInMemoryKVStore()
	ctx := context.Background()
	first, _ := newCoordinatorForTest(t, kv, nil)
	var calls atomic.Int32
	key := ListKey("categories", map[string]any{"page": 1, "sortBy": "displayOrder"})
	_, _ = first.Read(ctx, key, countingFetcher(&calls, `["fruit"]`))
	_, _ = first.Read(ctx, DetailKey("orders", "5"), countingFetcher(&calls, `{"id":5}`))

	if _, found, _ := kv.Get(ctx, "query-cache:categories"); !found {
		t.Fatal("expected categories blob persisted")
	}
	if _, found, _ := kv.Get(ctx, "query-cache:orders"); found {
		t.Fatal("orders are memory-only")
	}

	second, _ := newCoordinatorForTest(t, kv, nil)
	if err := second.Hydrate(ctx); err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	got, err := second.Read(ctx, ListKey("categories", map[string]any{"sortBy": "displayOrder", "page": 1}), countingFetcher(&calls, `[]`))
	if err != nil || string(got) != `["fruit"]` {
		t.Fatalf("expected hydrated entry, got %q %v", got, err)
	}
	if calls.Load() != 2 {
		t.Fatalf("hydrated read must not fetch, got %d", calls.Load())
	}

	second.Invalidate(ctx, "categories")
	if _, found, _ := kv.Get(ctx, "query-cache:categories"); found {
		t.Fatal("invalidation must drop the persisted blob")
	}
}

func TestHydrateDropsCorruptAndExpired(t *testing.T) {
	kv := repository.NewInMemoryKVStore()
	ctx := context.Background()
	_ = kv.Set(ctx, "query-cache:products", []byte(`{broken`))
	c, clock := newCoordinatorForTest(t, kv, nil)

	old, _ := json.Marshal([]persistedEntry{{Key: DetailKey("banners", "1"), Data: []byte(`1`), FetchedAt: clock.Now().Add(-time.Hour)}})
	_ = kv.Set(ctx, "query-cache:banners", old)

	if err := c.Hydrate(ctx); err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("expected nothing hydrated, got %d", c.Len())
	}
	if _, found, _ := kv.Get(ctx, "query-cache:products"); found {
		t.Fatal("corrupt blob should be removed")
	}
}

func TestSweepEvictsUnusedEntries(t *testing.T) {
	c, clock := newCoordinatorForTest(t, nil, nil)
	ctx := context.Background()
	var calls atomic.Int32
	_, _ = c.Read(ctx, DetailKey("orders", "1"), countingFetcher(&calls, `1`))
	_, _ = c.Read(ctx, DetailKey("orders", "2"), countingFetcher(&calls, `2`))

	clock.Advance(4 * time.Minute)
	_, _ = c.Read(ctx, DetailKey("orders", "2"), countingFetcher(&calls, `2`))
	clock.Advance(2 * time.Minute)

	if n := c.Sweep(ctx); n != 1 {
		t.Fatalf("expected one eviction, got %d", n)
	}
	if c.Len() != 1 {
		t.Fatalf("expected recently used entry kept, got %d", c.Len())
	}
}

func TestResetAndPurgeVolatile(t *testing.T) {
	c, _ := newCoordinatorForTest(t, nil, nil)
	ctx := context.Background()
	var calls atomic.Int32
	_, _ = c.Read(ctx, DetailKey("orders", "1"), countingFetcher(&calls, `1`))
	_, _ = c.Read(ctx, DetailKey("products", "1"), countingFetcher(&calls, `1`))

	c.PurgeVolatile(ctx)
	if c.Len() != 1 {
		t.Fatalf("expected only persisted family left, got %d", c.Len())
	}
	c.Reset()
	if c.Len() != 0 {
		t.Fatalf("reset must drop everything, got %d", c.Len())
	}
}

func TestReadJSON(t *testing.T) {
	c, _ := newCoordinatorForTest(t, nil, nil)
	type item struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	got, err := ReadJSON(context.Background(), c, DetailKey("products", "3"), func(context.Context) (item, error) {
		return item{ID: 3, Name: "Mango"}, nil
	})
	if err != nil || got.Name != "Mango" {
		t.Fatalf("unexpected %+v %v", got, err)
	}
	_, err = ReadJSON(context.Background(), c, DetailKey("products", "4"), func(context.Context) (item, error) {
		return item{}, errors.New("boom")
	})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected fetch error, got %v", err)
	}
}

func TestCallerCancellationDoesNotAbortSharedFetch(t *testing.T) {
	c, _ := newCoordinatorForTest(t, nil, nil)
	release := make(chan struct{})
	var calls atomic.Int32
	fetch := func(ctx context.Context) ([]byte, error) {
		calls.Add(1)
		<-release
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return []byte(`"v"`), nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.Read(ctx, DetailKey("products", "9"), fetch)
		errCh <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled caller, got %v", err)
	}

	resCh := make(chan []byte, 1)
	go func() {
		got, _ := c.Read(context.Background(), DetailKey("products", "9"), fetch)
		resCh <- got
	}()
	time.Sleep(10 * time.Millisecond)
	close(release)
	if got := <-resCh; string(got) != `"v"` {
		t.Fatalf("second caller should share the surviving fetch, got %q", got)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one fetch, got %d", calls.Load())
	}
}
