// Package usecase contains the application-specific business rules.
package usecase

import (
	"context"
	"time"

	"shopradar/internal/domain/entity"
	"shopradar/internal/domain/service"
)

// SessionInfo describes one open map session.
type SessionInfo struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ShopCount int       `json:"shop_count"`
}

// SessionUsecase defines the interface for map session lifecycle and the
// per-session operations the delivery layer exposes. Each session owns its
// own component set; closing the session tears all of it down.
type SessionUsecase interface {
	// Open creates a session and primes its shop index. A directory that
	// cannot be reached does not fail the open; the index starts empty.
	Open(ctx context.Context) (*SessionInfo, error)

	// Close tears the session down: watch stopped, tracking stopped,
	// markers destroyed, feed and instruction queue closed. Closing an
	// unknown or already closed session is a no-op.
	Close(id string) error

	// Locate runs the one-shot acquisition flow for the session.
	Locate(ctx context.Context, id string) (*entity.UserPosition, error)

	// StartWatch and StopWatch control the session's continuous
	// acquisition.
	StartWatch(ctx context.Context, id string) error
	StopWatch(id string) error

	// PushReading ingests a device position report into the session feed.
	PushReading(id string, reading entity.UserPosition) error

	// PushFailure ingests a categorized device geolocation failure.
	PushFailure(id string, category service.PositionErrorCategory, reason string) error

	// Shops returns the session's filtered, sorted view.
	Shops(id string, query string) ([]entity.Shop, error)

	// Reload refreshes the session's entity set from the directory.
	Reload(ctx context.Context, id string) ([]entity.Shop, error)

	// Select, ClearSelection and ToggleTracking drive the selection
	// orchestration.
	Select(ctx context.Context, id, shopID string) (*entity.Shop, error)
	ClearSelection(id string) error
	ToggleTracking(ctx context.Context, id, shopID string) (*TrackingSnapshot, error)

	// RequestRoute computes a one-shot route to the shop.
	RequestRoute(ctx context.Context, id, shopID string, opts RouteOptions) (*entity.Route, error)

	// Tracking reports the session's route coordinator state.
	Tracking(id string) (*TrackingSnapshot, error)

	// Instructions drains pending rendering commands for the client.
	Instructions(id string, max int) ([]service.Instruction, error)
}
