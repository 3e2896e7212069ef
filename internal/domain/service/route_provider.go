package service

import (
	"context"

	"shopradar/internal/domain/entity"
)

// RouteProvider defines the interface for the external routing engine
type RouteProvider interface {
	// Route computes a driving route between two points. It returns
	// domain ErrRouteNotFound when the engine reports no route, and wraps
	// transport or protocol failures in ErrRouteTransport.
	Route(ctx context.Context, from, to entity.Coordinate) (*entity.Route, error)
}
