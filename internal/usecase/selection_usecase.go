package usecase

import (
	"context"

	"shopradar/internal/domain/entity"
)

// SelectionUsecase defines the interface for selection and tracking
// orchestration. It is the only component that knows the index, the
// markers, and the route coordinator at the same time.
type SelectionUsecase interface {
	// Select resolves the shop, highlights its marker, and returns it so
	// the client can center on it. Selecting while tracking another shop
	// stops that tracking first.
	Select(ctx context.Context, shopID string) (*entity.Shop, error)

	// ClearSelection removes the highlight. If the cleared shop was being
	// tracked, tracking stops. Safe to call with nothing selected.
	ClearSelection()

	// Selected reports the currently selected shop id.
	Selected() (string, bool)

	// ToggleTracking flips tracking for the shop: tracking it stops,
	// tracking another switches, tracking nothing selects and starts.
	// Returns whether tracking is active afterwards.
	ToggleTracking(ctx context.Context, shopID string) (bool, error)

	// SetQuery updates the view filter, re-reconciles markers against the
	// filtered set, and returns that set.
	SetQuery(query string) []entity.Shop

	// RefreshView re-reconciles markers against the current filter. Called
	// after a reload replaced the entity set.
	RefreshView() []entity.Shop

	// HandlePosition drives the per-fix data flow: distance recompute,
	// marker refresh, then the route coordinator's movement gate.
	HandlePosition(pos entity.UserPosition)

	// HandleFailure reacts to categorized acquisition failures. Permission
	// denial pauses route refreshing; transient failures are only counted.
	HandleFailure(err error)
}
