package navigation

import (
	"context"
	"testing"
)

func TestHardNavigateResetsAndNotifies(t *testing.T) {
	n := NewNavigator(nil)
	resets := 0
	n.Register(ResetFunc(func() { resets++ }))
	var seen string
	n.OnNavigate(func(route string) { seen = route })

	n.HardNavigate(context.Background(), "/login")

	if resets != 1 {
		t.Fatalf("expected one reset, got %d", resets)
	}
	if seen != "/login" {
		t.Fatalf("listener saw %q", seen)
	}
	if route, ok := n.Pending(); !ok || route != "/login" {
		t.Fatalf("unexpected pending %q %v", route, ok)
	}
	if route, ok := n.Consume(); !ok || route != "/login" {
		t.Fatalf("unexpected consume %q %v", route, ok)
	}
	if _, ok := n.Pending(); ok {
		t.Fatal("consume must clear pending route")
	}
	if n.Count() != 1 {
		t.Fatalf("expected count 1, got %d", n.Count())
	}
}
