// Package impl contains the application-specific business rules implementations.
package impl

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"shopradar/config"
	"shopradar/internal/domain/entity"
	domainerrors "shopradar/internal/domain/errors"
	"shopradar/internal/domain/service"
	"shopradar/internal/metrics"
	"shopradar/internal/timeutil"
	"shopradar/internal/usecase"
)

// mapSession is one client's component set. Everything in it dies with the
// session.
type mapSession struct {
	id        string
	createdAt time.Time
	feed      service.PositionFeed
	sink      service.RenderSink
	locator   usecase.LocatorUsecase
	index     usecase.ShopIndexUsecase
	routes    usecase.RouteUsecase
	markers   usecase.MarkerUsecase
	selection usecase.SelectionUsecase
}

// sessionService implements the SessionUsecase interface
type sessionService struct {
	cfg      *config.Config
	logger   *slog.Logger
	source   service.ShopSource
	provider service.RouteProvider
	feeds    service.PositionFeedFactory
	sinks    service.RenderSinkFactory
	clock    timeutil.Clock

	mu       sync.RWMutex
	sessions map[string]*mapSession
}

// NewSessionService creates a new session facade instance
func NewSessionService(
	cfg *config.Config,
	logger *slog.Logger,
	source service.ShopSource,
	provider service.RouteProvider,
	feeds service.PositionFeedFactory,
	sinks service.RenderSinkFactory,
	clock timeutil.Clock,
) usecase.SessionUsecase {
	if clock == nil {
		clock = timeutil.System()
	}

	return &sessionService{
		cfg:      cfg,
		logger:   logger,
		source:   source,
		provider: provider,
		feeds:    feeds,
		sinks:    sinks,
		clock:    clock,
		sessions: make(map[string]*mapSession),
	}
}

// Open builds a fresh component set, primes its index, and registers the
// session. A directory that cannot be reached leaves the index empty
// rather than failing the open.
func (s *sessionService) Open(ctx context.Context) (*usecase.SessionInfo, error) {
	id := uuid.New().String()
	logger := s.logger.With(slog.String("session_id", id))

	feed := s.feeds()
	sink := s.sinks()

	index := NewIndexService(s.cfg.ShopAPI, logger, s.source)
	locator := NewLocatorService(s.cfg.Location, logger, feed)
	routes := NewRouteService(s.cfg.Tracking, logger, s.provider, sink, locator, s.clock)
	markers := NewMarkerService(s.cfg.Markers, logger, sink)
	selection := NewSelectionService(logger, index, markers, routes)

	// Every fix and failure the watcher produces flows through the
	// selection spine.
	locator.OnPosition(selection.HandlePosition)
	locator.OnFailure(selection.HandleFailure)

	sess := &mapSession{
		id:        id,
		createdAt: s.clock.Now(),
		feed:      feed,
		sink:      sink,
		locator:   locator,
		index:     index,
		routes:    routes,
		markers:   markers,
		selection: selection,
	}

	if _, err := index.Reload(ctx); err != nil {
		logger.Warn("initial shop load failed", slog.Any("error", err))
	} else {
		selection.RefreshView()
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	metrics.ActiveSessions.Inc()
	logger.Info("session opened", slog.Int("shops", index.Len()))

	return &usecase.SessionInfo{ID: id, CreatedAt: sess.createdAt, ShopCount: index.Len()}, nil
}

// Close tears the whole component set down. Unknown ids are a no-op.
func (s *sessionService) Close(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}

	sess.locator.StopWatch()
	sess.routes.StopTracking()
	sess.markers.Close()
	sess.feed.Close()
	sess.sink.Close()
	metrics.ActiveSessions.Dec()
	s.logger.Info("session closed", slog.String("session_id", id))

	return nil
}

// Locate runs the one-shot acquisition flow for the session.
func (s *sessionService) Locate(ctx context.Context, id string) (*entity.UserPosition, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}

	return sess.locator.LocateOnce(ctx)
}

// StartWatch begins the session's continuous acquisition.
func (s *sessionService) StartWatch(ctx context.Context, id string) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}

	return sess.locator.StartWatch(ctx)
}

// StopWatch ends the session's continuous acquisition.
func (s *sessionService) StopWatch(id string) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}
	sess.locator.StopWatch()

	return nil
}

// PushReading ingests a device position report into the session feed.
func (s *sessionService) PushReading(id string, reading entity.UserPosition) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}
	if err := sess.feed.Publish(reading); err != nil {
		return errors.WithMessage(err, "publish reading")
	}

	return nil
}

// PushFailure ingests a categorized device geolocation failure.
func (s *sessionService) PushFailure(id string, category service.PositionErrorCategory, reason string) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}
	if !category.IsValid() {
		return domainerrors.ErrValidationFailed
	}
	if err := sess.feed.Fail(category, reason); err != nil {
		return errors.WithMessage(err, "publish failure")
	}

	return nil
}

// Shops applies the query as the session's view filter and returns the
// filtered, sorted set.
func (s *sessionService) Shops(id string, query string) ([]entity.Shop, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}

	return sess.selection.SetQuery(query), nil
}

// Reload refreshes the session's entity set from the directory and
// re-reconciles the marker view.
func (s *sessionService) Reload(ctx context.Context, id string) ([]entity.Shop, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if _, err := sess.index.Reload(ctx); err != nil {
		return nil, err
	}

	return sess.selection.RefreshView(), nil
}

// Select resolves and highlights the shop for the session.
func (s *sessionService) Select(ctx context.Context, id, shopID string) (*entity.Shop, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}

	return sess.selection.Select(ctx, shopID)
}

// ClearSelection removes the session's highlight.
func (s *sessionService) ClearSelection(id string) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}
	sess.selection.ClearSelection()

	return nil
}

// ToggleTracking flips tracking for the shop and reports the resulting
// coordinator state.
func (s *sessionService) ToggleTracking(ctx context.Context, id, shopID string) (*usecase.TrackingSnapshot, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if _, err := sess.selection.ToggleTracking(ctx, shopID); err != nil {
		return nil, err
	}
	snap := sess.routes.Snapshot()

	return &snap, nil
}

// RequestRoute computes a one-shot route to the shop.
func (s *sessionService) RequestRoute(ctx context.Context, id, shopID string, opts usecase.RouteOptions) (*entity.Route, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	shop, ok := sess.index.Get(shopID)
	if !ok {
		return nil, domainerrors.ErrShopNotFound
	}

	return sess.routes.RequestRoute(ctx, shop, opts)
}

// Tracking reports the session's route coordinator state.
func (s *sessionService) Tracking(id string) (*usecase.TrackingSnapshot, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	snap := sess.routes.Snapshot()

	return &snap, nil
}

// Instructions drains pending rendering commands for the client.
func (s *sessionService) Instructions(id string, max int) ([]service.Instruction, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}

	return sess.sink.Drain(max), nil
}

func (s *sessionService) get(id string) (*mapSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domainerrors.ErrSessionNotFound
	}

	return sess, nil
}
