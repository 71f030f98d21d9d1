package cache

import (
	"errors"
	"testing"
	"time"
)

func TestNegativeLookupCacheGetSetInvalidate(t *testing.T) {
	store := NewNegativeLookupCache()
	notFound := errors.New("product not found")

	store.Set("products", "detail:42", notFound, time.Minute)
	ok, err := store.Get("products", "detail:42")
	if !ok || !errors.Is(err, notFound) {
		t.Fatalf("expected negative cache hit, got %v %v", err, ok)
	}

	store.InvalidateNamespace("products")
	if ok, _ := store.Get("products", "detail:42"); ok {
		t.Fatal("expected negative cache miss after invalidate")
	}
}

func TestNegativeLookupCacheExpiry(t *testing.T) {
	store := NewNegativeLookupCache()
	store.Set("categories", "detail:7", errors.New("gone"), 25*time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	if ok, _ := store.Get("categories", "detail:7"); ok {
		t.Fatal("expected negative cache entry to expire")
	}
}

func TestNegativeLookupCacheIgnoresNonPositiveTTL(t *testing.T) {
	store := NewNegativeLookupCache()
	store.Set("banners", "list", errors.New("x"), 0)
	store.Set("banners", "list2", nil, time.Minute)
	if ok, _ := store.Get("banners", "list"); ok {
		t.Fatal("zero ttl must not cache")
	}
	if ok, _ := store.Get("banners", "list2"); ok {
		t.Fatal("nil error must not cache")
	}
}
