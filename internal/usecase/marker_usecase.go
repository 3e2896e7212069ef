package usecase

import (
	"shopradar/internal/domain/entity"
)

// MarkerUsecase defines the interface for the marker reconciler
type MarkerUsecase interface {
	// Reconcile diffs the desired set against live markers: new shops get
	// a marker, moved shops get repositioned, vanished shops get their
	// marker destroyed. Crossing the size threshold rebuilds every marker
	// in the other style.
	Reconcile(shops []entity.Shop)

	// Highlight marks exactly one shop's marker as selected. An empty or
	// unknown id clears the highlight.
	Highlight(shopID string)

	// Style reports the style markers are currently rendered in.
	Style() entity.MarkerStyle

	// Count reports how many marker handles are alive.
	Count() int

	// Close destroys every marker. Safe to call twice.
	Close()
}
