package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/groceryplus/admin-console/internal/cache"
	"github.com/groceryplus/admin-console/internal/config"
	"github.com/groceryplus/admin-console/internal/repository"
	"github.com/groceryplus/admin-console/internal/session"
)

type nopAuth struct{ session.Authenticator }

func newConsoleForTest(t *testing.T) *Console {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	kv := repository.NewInMemoryKVStore()
	store := session.NewStore(kv, logger)
	coord := cache.NewCoordinator(kv, logger, cache.Options{})
	return &Console{
		Config:  &config.Config{},
		Logger:  logger,
		Store:   kv,
		Session: session.NewManager(store, nopAuth{}, nil, nil, nil, nil, coord, logger, session.Options{}),
		Cache:   coord,
	}
}

func TestNewAssignsDependencies(t *testing.T) {
	c := newConsoleForTest(t)
	server := &http.Server{Addr: "127.0.0.1:0", ReadHeaderTimeout: time.Second}
	a := New(c, server)
	if a.Console != c || a.Server != server {
		t.Fatal("expected app dependencies to be assigned")
	}
	if a.ShutdownTimeout <= 0 {
		t.Fatal("expected a positive shutdown timeout")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	c := newConsoleForTest(t)
	a := New(c, &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler(), ReadHeaderTimeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
	if _, _, err := c.Store.Get(context.Background(), "token"); err != nil {
		t.Fatalf("run must leave the store to its owner: %v", err)
	}
}
