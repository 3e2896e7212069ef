package service

import (
	"github.com/paulmach/orb"

	"shopradar/internal/domain/entity"
)

// InstructionKind identifies one kind of rendering command.
type InstructionKind string

const (
	// InstructionMarkerCreate materializes a marker.
	InstructionMarkerCreate InstructionKind = "marker_create"
	// InstructionMarkerMove repositions a marker.
	InstructionMarkerMove InstructionKind = "marker_move"
	// InstructionMarkerSelect toggles the selected flourish.
	InstructionMarkerSelect InstructionKind = "marker_select"
	// InstructionMarkerDestroy removes a marker.
	InstructionMarkerDestroy InstructionKind = "marker_destroy"
	// InstructionRouteShow draws or replaces the route polyline.
	InstructionRouteShow InstructionKind = "route_show"
	// InstructionRouteClear removes the route polyline.
	InstructionRouteClear InstructionKind = "route_clear"
	// InstructionViewportFit adjusts the viewport to a bound.
	InstructionViewportFit InstructionKind = "viewport_fit"
)

// Instruction is one rendering command for the storefront map client.
// Commands are keyed by shop id; the client owns the mapping from id to
// its own marker objects.
type Instruction struct {
	Kind     InstructionKind    `json:"kind"`
	Seq      uint64             `json:"seq"`
	ShopID   string             `json:"shop_id,omitempty"`
	Name     string             `json:"name,omitempty"`
	Style    entity.MarkerStyle `json:"style,omitempty"`
	Featured bool               `json:"featured,omitempty"`
	Selected bool               `json:"selected,omitempty"`
	Coord    *entity.Coordinate `json:"coord,omitempty"`
	Route    *entity.Route      `json:"route,omitempty"`
	Bound    *orb.Bound         `json:"bound,omitempty"`
}

// InstructionSource drains pending rendering commands in emission order.
type InstructionSource interface {
	// Drain removes and returns up to max pending instructions. A max of
	// zero or less drains everything.
	Drain(max int) []Instruction
}

// RenderSink is the full per-session rendering surface: marker lifecycle,
// route presentation, and the drainable instruction queue behind both.
type RenderSink interface {
	MarkerRenderer
	RoutePresenter
	InstructionSource

	// Close discards pending instructions and rejects further emission.
	Close()
}

// RenderSinkFactory builds one rendering surface per session.
type RenderSinkFactory func() RenderSink
