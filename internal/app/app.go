package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/groceryplus/admin-console/internal/cache"
	"github.com/groceryplus/admin-console/internal/config"
	"github.com/groceryplus/admin-console/internal/http/client"
	"github.com/groceryplus/admin-console/internal/http/cms"
	"github.com/groceryplus/admin-console/internal/navigation"
	"github.com/groceryplus/admin-console/internal/notify"
	"github.com/groceryplus/admin-console/internal/observability"
	"github.com/groceryplus/admin-console/internal/repository"
	"github.com/groceryplus/admin-console/internal/service"
	"github.com/groceryplus/admin-console/internal/session"
)

// Console is the assembled admin runtime shared by the gateway and the CLI.
type Console struct {
	Config        *config.Config
	Logger        *slog.Logger
	Store         repository.KVStore
	Session       *session.Manager
	Cache         *cache.Coordinator
	Alerts        *notify.Center
	Navigator     *navigation.Navigator
	Interceptor   *client.Interceptor
	Node          *client.Client
	CMSReporter   *cms.AuthReporter
	Products      *service.ProductService
	Categories    *service.CategoryService
	Banners       *service.BannerService
	Orders        *service.OrderService
	Dashboard     *service.DashboardService
	Profile       *service.ProfileService
	Gallery       *service.GalleryService
	Observability *observability.Runtime
}

// Start restores the persisted session and cache and begins the retention
// sweep. The sweep stops when ctx is done.
func (c *Console) Start(ctx context.Context) error {
	if err := c.Session.Restore(ctx); err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if err := c.Cache.Hydrate(ctx); err != nil {
		c.Logger.Warn("cache hydrate incomplete", "error", err)
	}
	go c.Cache.Run(ctx)
	return nil
}

// Close flushes telemetry. The durable store belongs to whoever built the
// console and is released by the injector's cleanup.
func (c *Console) Close(ctx context.Context) error {
	if c.Observability.Exporting() {
		c.Logger.Info("flushing telemetry")
	}
	if err := c.Observability.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown observability: %w", err)
	}
	return nil
}

// App is the gateway process: a Console served over HTTP.
type App struct {
	Console         *Console
	Server          *http.Server
	ShutdownTimeout time.Duration
}

func New(console *Console, server *http.Server) *App {
	return &App{Console: console, Server: server, ShutdownTimeout: 10 * time.Second}
}

// Run serves until ctx is canceled, then drains the server and releases the
// console.
func (a *App) Run(ctx context.Context) error {
	logger := a.Console.Logger
	if err := a.Console.Start(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok {
			runErr = fmt.Errorf("serve: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.ShutdownTimeout)
	defer cancel()
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		logger.Error("gateway shutdown failed", "error", err)
	}
	if err := a.Console.Close(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, err)
	}
	logger.Info("gateway stopped")
	return runErr
}
