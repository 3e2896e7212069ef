package impl

import (
	"log/slog"
	"sync"

	"shopradar/config"
	"shopradar/internal/domain/entity"
	"shopradar/internal/domain/service"
	"shopradar/internal/metrics"
	"shopradar/internal/usecase"
)

// markerRecord tracks one live marker handle.
type markerRecord struct {
	handle   service.MarkerHandle
	coord    entity.Coordinate
	selected bool
}

// markerService implements the MarkerUsecase interface
type markerService struct {
	renderer service.MarkerRenderer
	cfg      *config.MarkersConfig
	logger   *slog.Logger

	mu       sync.Mutex
	registry map[string]*markerRecord
	style    entity.MarkerStyle
	selected string
	closed   bool
}

// NewMarkerService creates a new marker reconciler instance
func NewMarkerService(cfg *config.MarkersConfig, logger *slog.Logger, renderer service.MarkerRenderer) usecase.MarkerUsecase {
	return &markerService{
		renderer: renderer,
		cfg:      cfg,
		logger:   logger,
		registry: make(map[string]*markerRecord),
		style:    entity.MarkerStyleRich,
	}
}

// Reconcile diffs the desired set against live markers
func (s *markerService) Reconcile(shops []entity.Shop) {
	desired := make(map[string]entity.Shop, len(shops))
	for i := range shops {
		if shops[i].HasLocation() {
			desired[shops[i].ID] = shops[i]
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	style := entity.MarkerStyleRich
	if len(desired) > s.cfg.LiteThreshold {
		style = entity.MarkerStyleLite
	}

	// Crossing the size threshold swaps every marker for the other style.
	// Handles are never restyled in place.
	if style != s.style && len(s.registry) > 0 {
		s.logger.Debug("marker style threshold crossed",
			slog.String("from", s.style.String()),
			slog.String("to", style.String()),
			slog.Int("desired", len(desired)))
		s.destroyAllLocked()
		metrics.MarkerOps.WithLabelValues("rebuild").Inc()
	}
	s.style = style

	// Destroy before create so a shop never has two handles at once.
	for id, rec := range s.registry {
		if _, ok := desired[id]; !ok {
			s.renderer.DestroyMarker(rec.handle)
			delete(s.registry, id)
			metrics.MarkerOps.WithLabelValues("destroy").Inc()
		}
	}

	for id, shop := range desired {
		if rec, ok := s.registry[id]; ok {
			if rec.coord != *shop.Location {
				s.renderer.MoveMarker(rec.handle, *shop.Location)
				rec.coord = *shop.Location
				metrics.MarkerOps.WithLabelValues("move").Inc()
			}
			continue
		}

		handle := s.renderer.CreateMarker(shop, s.style)
		rec := &markerRecord{handle: handle, coord: *shop.Location}
		if id == s.selected {
			s.renderer.SetSelected(handle, true)
			rec.selected = true
		}
		s.registry[id] = rec
		metrics.MarkerOps.WithLabelValues("create").Inc()
	}

	// A vanished shop cannot stay selected.
	if s.selected != "" {
		if _, ok := s.registry[s.selected]; !ok {
			s.selected = ""
		}
	}

	metrics.ActiveMarkers.Set(float64(len(s.registry)))
}

// Highlight marks exactly one shop's marker as selected
func (s *markerService) Highlight(shopID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || shopID == s.selected {
		return
	}

	if prev, ok := s.registry[s.selected]; ok {
		s.renderer.SetSelected(prev.handle, false)
		prev.selected = false
	}

	rec, ok := s.registry[shopID]
	if !ok {
		// Unknown or empty id just clears the highlight.
		s.selected = ""
		return
	}

	s.renderer.SetSelected(rec.handle, true)
	rec.selected = true
	s.selected = shopID
	metrics.MarkerOps.WithLabelValues("select").Inc()
}

// Style reports the style markers are currently rendered in
func (s *markerService) Style() entity.MarkerStyle {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.style
}

// Count reports how many marker handles are alive
func (s *markerService) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.registry)
}

// Close destroys every marker
func (s *markerService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.destroyAllLocked()
	s.selected = ""
	s.closed = true
	metrics.ActiveMarkers.Set(0)
}

func (s *markerService) destroyAllLocked() {
	for id, rec := range s.registry {
		s.renderer.DestroyMarker(rec.handle)
		delete(s.registry, id)
		metrics.MarkerOps.WithLabelValues("destroy").Inc()
	}
}
