package service

import (
	"github.com/paulmach/orb"

	"shopradar/internal/domain/entity"
)

// MarkerHandle is an opaque reference to one rendered map marker. Only the
// renderer that issued a handle can interpret it; the reconciler just
// stores handles and passes them back.
type MarkerHandle any

// MarkerRenderer defines the interface for the map layer that owns marker
// lifecycles. Exactly one handle may exist per shop at any time; the
// reconciler destroys a handle before requesting a replacement.
type MarkerRenderer interface {
	// CreateMarker materializes a marker for the shop in the given style.
	CreateMarker(shop entity.Shop, style entity.MarkerStyle) MarkerHandle

	// MoveMarker repositions an existing marker.
	MoveMarker(handle MarkerHandle, to entity.Coordinate)

	// SetSelected toggles the selected flourish on a marker.
	SetSelected(handle MarkerHandle, selected bool)

	// DestroyMarker removes the marker from the map and releases the handle.
	DestroyMarker(handle MarkerHandle)
}

// RoutePresenter defines the interface for the map layer that draws the
// active route.
type RoutePresenter interface {
	// ShowRoute draws or replaces the route polyline. When fit is true the
	// viewport is adjusted to the given bound.
	ShowRoute(route *entity.Route, fit bool, bound orb.Bound)

	// ClearRoute removes the polyline, if any.
	ClearRoute()
}
