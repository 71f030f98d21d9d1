package di

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/groceryplus/admin-console/internal/app"
	"github.com/groceryplus/admin-console/internal/cache"
	"github.com/groceryplus/admin-console/internal/config"
	"github.com/groceryplus/admin-console/internal/http/client"
	"github.com/groceryplus/admin-console/internal/http/cms"
	"github.com/groceryplus/admin-console/internal/http/handler"
	"github.com/groceryplus/admin-console/internal/http/router"
	"github.com/groceryplus/admin-console/internal/navigation"
	"github.com/groceryplus/admin-console/internal/notify"
	"github.com/groceryplus/admin-console/internal/observability"
	"github.com/groceryplus/admin-console/internal/repository"
	"github.com/groceryplus/admin-console/internal/service"
	"github.com/groceryplus/admin-console/internal/session"
)

type loggingBundle struct {
	Logger   *slog.Logger
	Provider *sdklog.LoggerProvider
}

// provideLogging's cleanup flushes the OTLP log provider. It is a no-op once
// the observability runtime has shut the provider down.
func provideLogging(ctx context.Context, cfg *config.Config) (loggingBundle, func(), error) {
	logger, lp, err := observability.NewLogger(ctx, cfg, os.Stderr)
	if err != nil {
		return loggingBundle{}, nil, err
	}
	slog.SetDefault(logger)
	cleanup := func() {
		if lp == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = lp.Shutdown(ctx)
	}
	return loggingBundle{Logger: logger, Provider: lp}, cleanup, nil
}

func provideLogger(b loggingBundle) *slog.Logger { return b.Logger }

func provideObservability(ctx context.Context, cfg *config.Config, b loggingBundle) (*observability.Runtime, error) {
	return observability.InitRuntime(ctx, cfg, b.Logger, b.Provider)
}

// provideStore owns the durable store. Its cleanup closes the bolt file,
// redis client or SQL pool.
func provideStore(cfg *config.Config, logger *slog.Logger) (repository.KVStore, func(), error) {
	kv, err := repository.OpenStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := kv.Close(); err != nil {
			logger.Error("close store failed", "backend", cfg.StorageBackend, "error", err)
		}
	}
	return kv, cleanup, nil
}

func provideSessionStore(kv repository.KVStore, logger *slog.Logger) *session.Store {
	return session.NewStore(kv, logger.With("component", "session"))
}

// provideNodeClient builds the session-authenticated backend client. The
// session store supplies its credentials.
func provideNodeClient(cfg *config.Config, logger *slog.Logger, icpt *client.Interceptor, store *session.Store) (*client.Client, error) {
	c, err := client.New(client.Options{
		Name:        "node",
		BaseURL:     client.NormalizeBaseURL(cfg.NodeURL, "/api"),
		Timeout:     cfg.NodeTimeout,
		Credentials: store,
		Interceptor: icpt,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("node client: %w", err)
	}
	return c, nil
}

type cmsBundle struct {
	Client   *client.Client
	Reporter *cms.AuthReporter
}

func provideCMS(cfg *config.Config, logger *slog.Logger) (cmsBundle, error) {
	c, reporter, err := cms.New(cfg, logger)
	if err != nil {
		return cmsBundle{}, fmt.Errorf("cms client: %w", err)
	}
	return cmsBundle{Client: c, Reporter: reporter}, nil
}

func provideCMSReporter(b cmsBundle) *cms.AuthReporter { return b.Reporter }

func provideBannerService(b cmsBundle, c *cache.Coordinator) *service.BannerService {
	return service.NewBannerService(b.Client, c)
}

// CMS catalogue reads retry harder than the node backend's default.
var familyRetry = map[string]cache.RetryPolicy{
	service.FamilyProducts:   {List: 3, Detail: 2},
	service.FamilyCategories: {List: 3, Detail: 3},
}

func provideCoordinator(cfg *config.Config, kv repository.KVStore, logger *slog.Logger) *cache.Coordinator {
	return cache.NewCoordinator(kv, logger, cache.Options{
		StaleTime:         cfg.CacheStaleTime,
		FamilyStaleTimes:  cfg.CacheFamilyStaleTimes,
		GCTime:            cfg.CacheGCTime,
		NegativeTTL:       cfg.CacheNegativeTTL,
		Retry:             cfg.CacheRetry,
		FamilyRetry:       familyRetry,
		RetryDelay:        time.Second,
		PersistedFamilies: cfg.CachePersistedFamilies,
		SweepInterval:     cfg.CacheSweepInterval,
	})
}

// provideNavigator registers the cache so a hard navigation drops in-memory
// entries the way a page reload would.
func provideNavigator(logger *slog.Logger, c *cache.Coordinator) *navigation.Navigator {
	nav := navigation.NewNavigator(logger)
	nav.Register(c)
	return nav
}

// provideManager closes the loop between the interceptor and the session:
// the interceptor recovers through the manager, the manager re-arms the
// interceptor after a login.
func provideManager(cfg *config.Config, store *session.Store, auth *service.AuthAPI, icpt *client.Interceptor, node *client.Client, alerts *notify.Center, nav *navigation.Navigator, c *cache.Coordinator, logger *slog.Logger) *session.Manager {
	m := session.NewManager(store, auth, icpt, node, alerts, nav, c, logger.With("component", "session"), session.Options{
		LoginRoute:        cfg.LoginRoute,
		ProfileClearDelay: cfg.ProfileClearDelay,
		CountryOpco:       cfg.AppOpco,
	})
	icpt.SetRecoverer(m)
	return m
}

func provideHandler(cfg *config.Config, console *app.Console) http.Handler {
	services := handler.Services{
		Products:   console.Products,
		Categories: console.Categories,
		Banners:    console.Banners,
		Orders:     console.Orders,
		Dashboard:  console.Dashboard,
		Profile:    console.Profile,
		Gallery:    console.Gallery,
	}
	kv := console.Store
	return router.NewRouter(router.Dependencies{
		SessionHandler:    handler.NewSessionHandler(console.Session, console.Navigator),
		ResourceHandler:   handler.NewResourceHandler(services, cfg.LoginRoute, console.Navigator),
		Sessions:          console.Session.Store(),
		LoginRoute:        cfg.LoginRoute,
		LoginRateLimitRPM: cfg.GatewayLoginRateLimitRPM,
		Readiness: func(ctx context.Context) error {
			_, _, err := kv.Get(ctx, "health")
			return err
		},
		EnableOTelHTTP: cfg.OTELTracingEnabled,
	})
}

func provideServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GatewayAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * cfg.NodeTimeout,
		IdleTimeout:       60 * time.Second,
	}
}
