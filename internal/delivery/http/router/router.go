// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"shopradar/internal/delivery/http/router/handler"
	"shopradar/internal/metrics"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	SessionHandler     *handler.SessionHandler
	ShopHandler        *handler.ShopHandler
	PositionHandler    *handler.PositionHandler
	SelectionHandler   *handler.SelectionHandler
	InstructionHandler *handler.InstructionHandler
}

// router holds all the handlers that need to be registered.
type router struct {
	sessionHandler     *handler.SessionHandler
	shopHandler        *handler.ShopHandler
	positionHandler    *handler.PositionHandler
	selectionHandler   *handler.SelectionHandler
	instructionHandler *handler.InstructionHandler
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		sessionHandler:     params.SessionHandler,
		shopHandler:        params.ShopHandler,
		positionHandler:    params.PositionHandler,
		selectionHandler:   params.SelectionHandler,
		instructionHandler: params.InstructionHandler,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	// Health check endpoint
	e.GET("/health", handler.HealthCheck)

	// Prometheus scrape endpoint
	e.GET("/metrics", metrics.Handler())

	// Session lifecycle
	e.POST("/sessions", r.sessionHandler.OpenSession)

	sessionGroup := e.Group("/sessions/:id")
	{
		sessionGroup.DELETE("", r.sessionHandler.CloseSession)

		// Shop directory view
		sessionGroup.GET("/shops", r.shopHandler.ListShops)
		sessionGroup.POST("/shops/reload", r.shopHandler.ReloadShops)

		// Geolocation
		sessionGroup.POST("/position/locate", r.positionHandler.Locate)
		sessionGroup.POST("/position/watch", r.positionHandler.StartWatch)
		sessionGroup.DELETE("/position/watch", r.positionHandler.StopWatch)
		sessionGroup.POST("/position/readings", r.positionHandler.PushReading)
		sessionGroup.POST("/position/failures", r.positionHandler.PushFailure)

		// Selection and route tracking
		sessionGroup.POST("/selection/:shopID", r.selectionHandler.SelectShop)
		sessionGroup.DELETE("/selection", r.selectionHandler.ClearSelection)
		sessionGroup.POST("/tracking/:shopID/toggle", r.selectionHandler.ToggleTracking)
		sessionGroup.GET("/tracking", r.selectionHandler.GetTracking)
		sessionGroup.POST("/routes/:shopID", r.selectionHandler.RequestRoute)

		// Rendering instruction stream
		sessionGroup.GET("/instructions", r.instructionHandler.DrainInstructions)
	}
}
