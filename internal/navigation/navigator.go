package navigation

import (
	"context"
	"log/slog"
	"sync"
)

// Resetter drops in-memory state that must not outlive a hard navigation.
type Resetter interface {
	Reset()
}

type ResetFunc func()

func (f ResetFunc) Reset() { f() }

// Navigator records forced route changes. A hard navigation discards every
// registered in-memory store, the way a full page load would.
type Navigator struct {
	mu        sync.Mutex
	logger    *slog.Logger
	pending   string
	count     int
	resetters []Resetter
	listeners []func(route string)
}

func NewNavigator(logger *slog.Logger) *Navigator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Navigator{logger: logger}
}

func (n *Navigator) Register(r Resetter) {
	n.mu.Lock()
	n.resetters = append(n.resetters, r)
	n.mu.Unlock()
}

func (n *Navigator) OnNavigate(fn func(route string)) {
	n.mu.Lock()
	n.listeners = append(n.listeners, fn)
	n.mu.Unlock()
}

func (n *Navigator) HardNavigate(ctx context.Context, route string) {
	n.mu.Lock()
	n.pending = route
	n.count++
	resetters := append([]Resetter(nil), n.resetters...)
	listeners := append([]func(string){}, n.listeners...)
	n.mu.Unlock()

	for _, r := range resetters {
		r.Reset()
	}
	n.logger.InfoContext(ctx, "hard navigation", "route", route)
	for _, fn := range listeners {
		fn(route)
	}
}

// Pending returns the last forced route, if any.
func (n *Navigator) Pending() (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pending, n.pending != ""
}

// Consume returns and clears the pending route.
func (n *Navigator) Consume() (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	route := n.pending
	n.pending = ""
	return route, route != ""
}

func (n *Navigator) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.count
}
