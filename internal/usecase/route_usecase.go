package usecase

import (
	"context"

	"shopradar/internal/domain/entity"
)

// RouteOptions modulates one route computation.
type RouteOptions struct {
	// Silent suppresses loud error surfacing; failures are recorded on the
	// tracking snapshot instead of interrupting the user.
	Silent bool `json:"silent"`
	// KeepViewport leaves the viewport alone after a successful
	// computation instead of fitting it to the route.
	KeepViewport bool `json:"keep_viewport"`
}

// TrackingSnapshot is the externally visible state of the route
// coordinator.
type TrackingSnapshot struct {
	Tracking   bool          `json:"tracking"`
	TargetID   string        `json:"target_id,omitempty"`
	Paused     bool          `json:"paused"`
	Route      *entity.Route `json:"route,omitempty"`
	Generation uint64        `json:"generation"`
	LastError  string        `json:"last_error,omitempty"`

	// StaleDrops counts responses discarded because a newer request had
	// superseded them.
	StaleDrops uint64 `json:"stale_drops"`
}

// RouteUsecase defines the interface for route coordination use cases
type RouteUsecase interface {
	// RequestRoute computes a route from the current position to the
	// target shop. It returns the held route without a provider call when
	// the target is unchanged and movement since the last computation is
	// under the configured threshold. A newer request always wins over an
	// older in-flight one.
	RequestRoute(ctx context.Context, target *entity.Shop, opts RouteOptions) (*entity.Route, error)

	// StartTracking begins following the target: an immediate loud
	// computation, then periodic silent refreshes until StopTracking.
	StartTracking(ctx context.Context, target *entity.Shop) (*entity.Route, error)

	// StopTracking ends the session: ticker stopped, in-flight work
	// cancelled, route discarded. Safe to call when not tracking.
	StopTracking()

	// HandlePosition feeds a position update; while tracking and not
	// paused it triggers a silent refresh subject to the movement gate.
	HandlePosition(pos entity.UserPosition)

	// Pause suppresses periodic and position-driven refreshes without
	// discarding the computed route. Resume lifts the suppression.
	Pause()
	Resume()

	// Snapshot reports the current coordinator state.
	Snapshot() TrackingSnapshot
}
