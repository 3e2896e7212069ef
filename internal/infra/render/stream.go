// Package render turns marker and route commands into a drainable
// instruction stream for the storefront map client.
package render

import (
	"log/slog"
	"sync"

	"github.com/paulmach/orb"

	"shopradar/config"
	"shopradar/internal/domain/entity"
	"shopradar/internal/domain/service"
	"shopradar/internal/metrics"
)

const defaultQueueSize = 512

// streamMarker is the handle the stream issues for one marker. The client
// keys markers by shop id; the handle just remembers which id it stands
// for.
type streamMarker struct {
	shopID string
}

// stream implements the RenderSink interface
type stream struct {
	logger *slog.Logger
	limit  int

	mu     sync.Mutex
	seq    uint64
	queue  []service.Instruction
	closed bool
}

// NewStream creates a new bounded instruction stream
func NewStream(cfg *config.MarkersConfig, logger *slog.Logger) service.RenderSink {
	limit := cfg.InstructionQueueSize
	if limit <= 0 {
		limit = defaultQueueSize
	}

	return &stream{logger: logger, limit: limit}
}

// CreateMarker materializes a marker for the shop in the given style.
func (s *stream) CreateMarker(shop entity.Shop, style entity.MarkerStyle) service.MarkerHandle {
	instr := service.Instruction{
		Kind:     service.InstructionMarkerCreate,
		ShopID:   shop.ID,
		Name:     shop.Name,
		Style:    style,
		Featured: shop.Featured,
	}
	if shop.Location != nil {
		coord := *shop.Location
		instr.Coord = &coord
	}
	s.emit(instr)

	return &streamMarker{shopID: shop.ID}
}

// MoveMarker repositions an existing marker.
func (s *stream) MoveMarker(handle service.MarkerHandle, to entity.Coordinate) {
	marker, ok := handle.(*streamMarker)
	if !ok {
		return
	}
	coord := to
	s.emit(service.Instruction{
		Kind:   service.InstructionMarkerMove,
		ShopID: marker.shopID,
		Coord:  &coord,
	})
}

// SetSelected toggles the selected flourish on a marker.
func (s *stream) SetSelected(handle service.MarkerHandle, selected bool) {
	marker, ok := handle.(*streamMarker)
	if !ok {
		return
	}
	s.emit(service.Instruction{
		Kind:     service.InstructionMarkerSelect,
		ShopID:   marker.shopID,
		Selected: selected,
	})
}

// DestroyMarker removes the marker from the map.
func (s *stream) DestroyMarker(handle service.MarkerHandle) {
	marker, ok := handle.(*streamMarker)
	if !ok {
		return
	}
	s.emit(service.Instruction{
		Kind:   service.InstructionMarkerDestroy,
		ShopID: marker.shopID,
	})
}

// ShowRoute draws or replaces the route polyline, fitting the viewport to
// the bound when asked.
func (s *stream) ShowRoute(route *entity.Route, fit bool, bound orb.Bound) {
	if route == nil {
		return
	}
	clone := *route
	s.emit(service.Instruction{
		Kind:   service.InstructionRouteShow,
		ShopID: route.TargetID,
		Route:  &clone,
	})
	if fit {
		b := bound
		s.emit(service.Instruction{
			Kind:  service.InstructionViewportFit,
			Bound: &b,
		})
	}
}

// ClearRoute removes the polyline.
func (s *stream) ClearRoute() {
	s.emit(service.Instruction{Kind: service.InstructionRouteClear})
}

// Drain removes and returns up to max pending instructions in emission
// order. A max of zero or less drains everything.
func (s *stream) Drain(max int) []service.Instruction {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.queue)
	if max > 0 && max < n {
		n = max
	}
	if n == 0 {
		return nil
	}

	out := make([]service.Instruction, n)
	copy(out, s.queue)
	s.queue = append(s.queue[:0], s.queue[n:]...)

	return out
}

// Close discards pending instructions and rejects further emission.
func (s *stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.queue = nil
}

func (s *stream) emit(instr service.Instruction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.seq++
	instr.Seq = s.seq
	if len(s.queue) >= s.limit {
		// The queue is bounded; an absent client loses the oldest
		// instructions first.
		drop := len(s.queue) - s.limit + 1
		s.queue = append(s.queue[:0], s.queue[drop:]...)
		metrics.InstructionsDropped.Add(float64(drop))
		s.logger.Debug("instruction queue overflow", slog.Int("dropped", drop))
	}
	s.queue = append(s.queue, instr)
}
