//go:build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"github.com/groceryplus/admin-console/internal/app"
	"github.com/groceryplus/admin-console/internal/config"
	"github.com/groceryplus/admin-console/internal/http/client"
	"github.com/groceryplus/admin-console/internal/notify"
	"github.com/groceryplus/admin-console/internal/service"
)

var consoleSet = wire.NewSet(
	provideLogging,
	provideLogger,
	provideObservability,
	provideStore,
	provideSessionStore,
	client.NewInterceptor,
	provideNodeClient,
	wire.Bind(new(service.API), new(*client.Client)),
	provideCMS,
	provideCMSReporter,
	provideCoordinator,
	notify.NewCenter,
	provideNavigator,
	service.NewAuthAPI,
	provideManager,
	service.NewProductService,
	service.NewCategoryService,
	provideBannerService,
	service.NewOrderService,
	service.NewDashboardService,
	service.NewProfileService,
	service.NewGalleryService,
	wire.Struct(new(app.Console), "*"),
)

func InitializeConsole(ctx context.Context, cfg *config.Config) (*app.Console, func(), error) {
	wire.Build(consoleSet)
	return nil, nil, nil
}

func InitializeApp(ctx context.Context, cfg *config.Config) (*app.App, func(), error) {
	wire.Build(consoleSet, provideHandler, provideServer, app.New)
	return nil, nil, nil
}
