package main

import (
	"context"
	"log/slog"
	"os"

	"shopradar/config"
	"shopradar/internal/delivery"
	"shopradar/internal/delivery/http"
	"shopradar/internal/delivery/http/middleware"
	"shopradar/internal/delivery/http/router/handler"
	"shopradar/internal/domain/service"
	"shopradar/internal/infra/geofeed"
	logs "shopradar/internal/infra/log"
	"shopradar/internal/infra/osrm"
	"shopradar/internal/infra/render"
	"shopradar/internal/infra/shopapi"
	"shopradar/internal/timeutil"
	"shopradar/internal/usecase/impl"

	"go.uber.org/fx"
)

type startServerParams struct {
	fx.In
	fx.Lifecycle

	Deliveries []delivery.Delivery `group:"deliveries"`
}

func main() {
	fx.New(
		injectInfra(),
		injectUsecase(),
		injectDelivery(),
		injectMiddleware(),
		injectHandler(),
		fx.Invoke(
			startServer,
		),
	).Run()
}

func injectInfra() fx.Option {
	return fx.Provide(
		config.New,
		logs.New,
		context.Background,
		timeutil.System,
		newShopSource,
		newRouteProvider,
		newPositionFeedFactory,
		newRenderSinkFactory,
	)
}

// newShopSource creates the marketplace directory client with dependency injection
func newShopSource(cfg *config.Config, logger *slog.Logger) service.ShopSource {
	return shopapi.NewClient(cfg.ShopAPI, logger)
}

// newRouteProvider creates the routing engine client with dependency injection
func newRouteProvider(cfg *config.Config, logger *slog.Logger) service.RouteProvider {
	return osrm.NewClient(cfg.Routing, logger)
}

// newPositionFeedFactory builds one position feed per session
func newPositionFeedFactory(cfg *config.Config, logger *slog.Logger, clock timeutil.Clock) service.PositionFeedFactory {
	return func() service.PositionFeed {
		return geofeed.New(cfg.Location, logger, clock)
	}
}

// newRenderSinkFactory builds one rendering instruction queue per session
func newRenderSinkFactory(cfg *config.Config, logger *slog.Logger) service.RenderSinkFactory {
	return func() service.RenderSink {
		return render.NewStream(cfg.Markers, logger)
	}
}

func injectUsecase() fx.Option {
	return fx.Options(
		fx.Provide(
			impl.NewSessionService,
		),
	)
}

func injectMiddleware() fx.Option {
	return fx.Options(
		fx.Provide(
			middleware.NewErrorMiddleware,
		),
	)
}

func injectHandler() fx.Option {
	return fx.Options(
		fx.Provide(
			handler.NewSessionHandler,
			handler.NewShopHandler,
			handler.NewPositionHandler,
			handler.NewSelectionHandler,
			handler.NewInstructionHandler,
		),
	)
}

func injectDelivery() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				http.NewServer,
				fx.ResultTags(`group:"deliveries"`),
			),
		),
	)
}

func startServer(ctx context.Context, params startServerParams) {
	for _, delivery := range params.Deliveries {
		go func() {
			if err := delivery.Serve(ctx); err != nil {
				slog.Error("Failed to start server", slog.Any("error", err))
				os.Exit(1)
			}
		}()
	}
}
