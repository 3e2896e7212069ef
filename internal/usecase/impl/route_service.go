package impl

import (
	"context"
	"log/slog"
	"sync"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"

	"shopradar/config"
	"shopradar/internal/domain/entity"
	domainerrors "shopradar/internal/domain/errors"
	"shopradar/internal/domain/service"
	"shopradar/internal/geo"
	"shopradar/internal/metrics"
	"shopradar/internal/timeutil"
	"shopradar/internal/usecase"
)

// positionSource yields the latest known user position.
type positionSource interface {
	Current() (*entity.UserPosition, bool)
}

// routeService implements the RouteUsecase interface
type routeService struct {
	provider  service.RouteProvider
	presenter service.RoutePresenter
	positions positionSource
	cfg       *config.TrackingConfig
	clock     timeutil.Clock
	logger    *slog.Logger

	mu             sync.Mutex
	route          *entity.Route
	generation     uint64
	inflightCancel context.CancelFunc
	// Debounce anchors: where the held route was computed from and for whom.
	lastRoutedFrom     *entity.Coordinate
	lastRoutedTargetID string
	lastErr            error
	staleDrops         uint64
	paused             bool

	tracking    bool
	targetID    string
	target      *entity.Shop
	refreshStop chan struct{}
	refreshDone chan struct{}
}

// NewRouteService creates a new route coordination service instance
func NewRouteService(
	cfg *config.TrackingConfig,
	logger *slog.Logger,
	provider service.RouteProvider,
	presenter service.RoutePresenter,
	positions positionSource,
	clock timeutil.Clock,
) usecase.RouteUsecase {
	if clock == nil {
		clock = timeutil.System()
	}

	return &routeService{
		provider:  provider,
		presenter: presenter,
		positions: positions,
		cfg:       cfg,
		clock:     clock,
		logger:    logger,
	}
}

// RequestRoute computes a route from the current position to the target.
// Movement under the configured threshold with an unchanged target returns
// the held route without touching the provider. A newer request always
// supersedes an older in-flight one.
func (s *routeService) RequestRoute(ctx context.Context, target *entity.Shop, opts usecase.RouteOptions) (*entity.Route, error) {
	return s.requestRoute(ctx, target, opts, false)
}

// requestRoute is the single computation path. force skips the movement
// gate; the periodic refresh uses it so a stationary user still picks up
// duration changes.
func (s *routeService) requestRoute(ctx context.Context, target *entity.Shop, opts usecase.RouteOptions, force bool) (*entity.Route, error) {
	if target == nil || !target.HasLocation() {
		return nil, domainerrors.ErrShopNotRoutable
	}

	pos, ok := s.positions.Current()
	if !ok {
		metrics.RouteRequests.WithLabelValues("no_position").Inc()
		return nil, domainerrors.ErrNoPosition
	}
	from := pos.Coord

	s.mu.Lock()
	if !force && s.debouncedLocked(target.ID, from) {
		held := copyRoute(s.route)
		s.mu.Unlock()
		metrics.RouteRequests.WithLabelValues("debounced").Inc()
		return held, nil
	}

	s.generation++
	gen := s.generation
	if s.inflightCancel != nil {
		s.inflightCancel()
	}
	callCtx, cancel := context.WithCancel(ctx)
	s.inflightCancel = cancel
	s.mu.Unlock()

	route, err := s.provider.Route(callCtx, from, *target.Location)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		// A newer request took over while this one was on the wire. The
		// response must not clobber the newer state; the caller gets
		// whatever is currently held.
		s.staleDrops++
		metrics.RouteRequests.WithLabelValues("stale_discarded").Inc()
		return copyRoute(s.route), nil
	}
	s.inflightCancel = nil

	if err != nil {
		mapped := mapRouteError(err)
		s.lastErr = mapped
		metrics.RouteRequests.WithLabelValues(routeOutcome(mapped)).Inc()
		if opts.Silent {
			s.logger.Warn("silent route refresh failed",
				slog.String("target_id", target.ID),
				slog.Any("error", err))
		}
		return nil, mapped
	}

	route.TargetID = target.ID
	route.Generation = gen
	route.ComputedAt = s.clock.Now()
	s.route = route
	s.lastRoutedFrom = &from
	s.lastRoutedTargetID = target.ID
	s.lastErr = nil

	metrics.RouteRequests.WithLabelValues("ok").Inc()
	s.presenter.ShowRoute(route, !opts.KeepViewport, route.Bound())

	return copyRoute(route), nil
}

// StartTracking begins following the target: one immediate loud
// computation with a viewport fit, then a silent refresh every interval.
func (s *routeService) StartTracking(ctx context.Context, target *entity.Shop) (*entity.Route, error) {
	if target == nil || !target.HasLocation() {
		return nil, domainerrors.ErrShopNotRoutable
	}
	if _, ok := s.positions.Current(); !ok {
		metrics.RouteRequests.WithLabelValues("no_position").Inc()
		return nil, domainerrors.ErrNoPosition
	}
	shop := *target

	s.mu.Lock()
	if s.tracking && s.targetID == shop.ID {
		held := copyRoute(s.route)
		s.mu.Unlock()
		return held, nil
	}
	s.mu.Unlock()

	// Following a different shop restarts the session from scratch.
	s.StopTracking()

	stop := make(chan struct{})
	done := make(chan struct{})
	s.mu.Lock()
	if s.tracking {
		// A concurrent StartTracking won the restart; let it stand.
		held := copyRoute(s.route)
		s.mu.Unlock()
		return held, nil
	}
	s.tracking = true
	s.targetID = shop.ID
	s.target = &shop
	s.refreshStop = stop
	s.refreshDone = done
	s.mu.Unlock()

	go s.refreshLoop(shop, stop, done)

	return s.requestRoute(ctx, &shop, usecase.RouteOptions{}, false)
}

// StopTracking tears the session down: ticker stopped, in-flight work
// superseded, route and anchors discarded, polyline cleared. A second call
// does nothing.
func (s *routeService) StopTracking() {
	s.mu.Lock()
	if !s.tracking {
		s.mu.Unlock()
		return
	}
	stop := s.refreshStop
	done := s.refreshDone
	s.tracking = false
	s.targetID = ""
	s.target = nil
	s.refreshStop = nil
	s.refreshDone = nil

	// Superseding the generation makes any in-flight response stale.
	s.generation++
	if s.inflightCancel != nil {
		s.inflightCancel()
		s.inflightCancel = nil
	}
	s.route = nil
	s.lastRoutedFrom = nil
	s.lastRoutedTargetID = ""
	s.lastErr = nil
	s.presenter.ClearRoute()
	s.mu.Unlock()

	close(stop)
	<-done
}

// HandlePosition triggers a silent refresh for the tracked target. The
// movement gate inside RequestRoute decides whether the provider is hit.
func (s *routeService) HandlePosition(_ entity.UserPosition) {
	s.mu.Lock()
	if !s.tracking || s.paused || s.target == nil {
		s.mu.Unlock()
		return
	}
	shop := *s.target
	s.mu.Unlock()

	if _, err := s.requestRoute(context.Background(), &shop, usecase.RouteOptions{Silent: true, KeepViewport: true}, false); err != nil {
		s.logger.Debug("position-driven route refresh failed",
			slog.String("target_id", shop.ID),
			slog.Any("error", err))
	}
}

// Pause suppresses periodic and position-driven refreshes. The held route
// stays presented.
func (s *routeService) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

// Resume lifts the refresh suppression.
func (s *routeService) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
}

// Snapshot reports the externally visible coordinator state.
func (s *routeService) Snapshot() usecase.TrackingSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := usecase.TrackingSnapshot{
		Tracking:   s.tracking,
		TargetID:   s.targetID,
		Paused:     s.paused,
		Route:      copyRoute(s.route),
		Generation: s.generation,
		StaleDrops: s.staleDrops,
	}
	if s.lastErr != nil {
		snap.LastError = s.lastErr.Error()
	}

	return snap
}

func (s *routeService) refreshLoop(target entity.Shop, stop, done chan struct{}) {
	defer close(done)

	ticker := s.clock.NewTicker(s.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			s.mu.Lock()
			active := s.tracking && s.targetID == target.ID
			paused := s.paused
			s.mu.Unlock()
			if !active {
				return
			}
			if paused {
				continue
			}

			start := s.clock.Now()
			if _, err := s.requestRoute(context.Background(), &target, usecase.RouteOptions{Silent: true, KeepViewport: true}, true); err != nil {
				s.logger.Warn("tracking refresh failed",
					slog.String("target_id", target.ID),
					slog.Any("error", err))
			}
			metrics.RouteRefreshLag.Observe(s.clock.Since(start).Seconds())
		}
	}
}

// debouncedLocked reports whether the request can be answered from the
// held route. Strictly-under-threshold movement with the same target
// suppresses the recomputation.
func (s *routeService) debouncedLocked(targetID string, from entity.Coordinate) bool {
	if s.route == nil || s.lastRoutedFrom == nil || s.lastRoutedTargetID != targetID {
		return false
	}

	return geo.Distance(*s.lastRoutedFrom, from) < s.cfg.MinMoveMeters
}

func copyRoute(route *entity.Route) *entity.Route {
	if route == nil {
		return nil
	}
	clone := *route
	clone.Geometry = append(orb.LineString(nil), route.Geometry...)

	return &clone
}

// mapRouteError normalizes provider failures to the routing error
// taxonomy. The provider already speaks it; anything else, including a
// cancelled context, counts as a transport failure.
func mapRouteError(err error) error {
	if errors.Is(err, domainerrors.ErrRouteNotFound) || errors.Is(err, domainerrors.ErrRouteTransport) {
		return err
	}

	return domainerrors.ErrRouteTransport
}

func routeOutcome(err error) string {
	if errors.Is(err, domainerrors.ErrRouteNotFound) {
		return "not_found"
	}

	return "transport_error"
}
