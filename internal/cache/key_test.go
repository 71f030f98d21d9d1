package cache

import (
	"strings"
	"testing"
)

func TestListKeyIsOrderIndependent(t *testing.T) {
	a := ListKey("products", map[string]any{"page": 1, "sortBy": "updatedAt"})
	b := ListKey("products", struct {
		SortBy string `json:"sortBy"`
		Page   int    `json:"page"`
	}{SortBy: "updatedAt", Page: 1})
	if a.String() != b.String() {
		t.Fatalf("equal filters must share a key: %s vs %s", a, b)
	}
	if ListKey("products", map[string]any{"page": 2}).String() == a.String() {
		t.Fatal("different filters must not collide")
	}
	if ListKey("categories", map[string]any{"page": 1, "sortBy": "updatedAt"}).String() == a.String() {
		t.Fatal("families must not collide")
	}
}

func TestDetailKey(t *testing.T) {
	k := DetailKey("banners", " 12 ")
	if !k.IsDetail() || k.String() != "banners:detail:12" {
		t.Fatalf("unexpected detail key %q", k.String())
	}
	if ListKey("banners", nil).IsDetail() {
		t.Fatal("list key must not be a detail key")
	}
}

func FuzzListKeyDeterministic(f *testing.F) {
	f.Add("products", "updatedAt", 1)
	f.Add("", "", 0)
	f.Add("categories", strings.Repeat("x", 2048), -5)
	f.Fuzz(func(t *testing.T, family, sortBy string, page int) {
		filters := map[string]any{"sortBy": sortBy, "page": page}
		a := ListKey(family, filters).String()
		b := ListKey(family, filters).String()
		if a != b {
			t.Fatalf("ListKey must be deterministic: %q vs %q", a, b)
		}
		if !strings.HasPrefix(a, family+":list:") {
			t.Fatalf("unexpected key shape %q", a)
		}
	})
}
