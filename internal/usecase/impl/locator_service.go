package impl

import (
	"context"
	"log/slog"
	"sync"

	"shopradar/config"
	"shopradar/internal/domain/entity"
	domainerrors "shopradar/internal/domain/errors"
	"shopradar/internal/domain/service"
	"shopradar/internal/metrics"
	"shopradar/internal/usecase"
)

// locatorService implements the LocatorUsecase interface
type locatorService struct {
	provider service.PositionProvider
	cfg      *config.LocationConfig
	logger   *slog.Logger

	mu            sync.Mutex
	state         usecase.WatchState
	current       *entity.UserPosition
	watch         service.PositionWatch
	watchDone     chan struct{}
	positionSinks []usecase.PositionSink
	failureSinks  []usecase.FailureSink
}

// NewLocatorService creates a new position acquisition service instance
func NewLocatorService(cfg *config.LocationConfig, logger *slog.Logger, provider service.PositionProvider) usecase.LocatorUsecase {
	return &locatorService{
		provider: provider,
		cfg:      cfg,
		logger:   logger,
		state:    usecase.WatchStateIdle,
	}
}

// LocateOnce acquires a single fix, falling back to one low-accuracy retry
// when and only when the high-accuracy attempt timed out.
func (s *locatorService) LocateOnce(ctx context.Context) (*entity.UserPosition, error) {
	s.setState(usecase.WatchStateLocating)

	pos, err := s.provider.Locate(ctx, service.LocateOptions{
		HighAccuracy: true,
		Timeout:      s.cfg.HighAccuracyTimeout,
		MaxAge:       s.cfg.MaxReadingAge,
	})
	metrics.LocateAttempts.WithLabelValues("high", locateOutcome(err)).Inc()
	if err != nil {
		if category, ok := service.PositionErrorCategoryOf(err); !ok || category != service.PositionTimeout {
			s.setState(usecase.WatchStateFailed)
			mapped := mapPositionError(err)
			s.notifyFailure(mapped)
			return nil, mapped
		}

		s.logger.Debug("high accuracy fix timed out, retrying with low accuracy")
		pos, err = s.provider.Locate(ctx, service.LocateOptions{
			Timeout: s.cfg.LowAccuracyTimeout,
			MaxAge:  s.cfg.MaxReadingAge,
		})
		metrics.LocateAttempts.WithLabelValues("low", locateOutcome(err)).Inc()
		if err != nil {
			s.setState(usecase.WatchStateFailed)
			mapped := mapPositionError(err)
			s.notifyFailure(mapped)
			return nil, mapped
		}
	}

	s.applyPosition(pos)

	return &pos, nil
}

// StartWatch begins continuous acquisition. A second call while a watch is
// running is a no-op.
func (s *locatorService) StartWatch(_ context.Context) error {
	s.mu.Lock()
	if s.watch != nil {
		s.mu.Unlock()
		return nil
	}
	s.state = usecase.WatchStateLocating
	s.mu.Unlock()

	watch, err := s.provider.Watch(service.WatchOptions{
		Timeout: s.cfg.WatchTimeout,
		MaxAge:  s.cfg.MaxReadingAge,
	})
	if err != nil {
		s.setState(usecase.WatchStateFailed)
		mapped := mapPositionError(err)
		s.notifyFailure(mapped)
		return mapped
	}

	s.mu.Lock()
	if s.watch != nil {
		// Lost a race with a concurrent StartWatch; keep the winner.
		s.mu.Unlock()
		watch.Stop()
		return nil
	}
	done := make(chan struct{})
	s.watch = watch
	s.watchDone = done
	s.mu.Unlock()

	metrics.ActiveWatches.Inc()
	go s.consumeWatch(watch, done)

	return nil
}

// StopWatch tears down the running watch and waits for its consumer to
// drain. Safe to call when none is running.
func (s *locatorService) StopWatch() {
	s.mu.Lock()
	watch := s.watch
	done := s.watchDone
	if watch != nil {
		s.watch = nil
		s.watchDone = nil
		s.state = usecase.WatchStateIdle
		metrics.ActiveWatches.Dec()
	}
	s.mu.Unlock()

	if watch == nil {
		return
	}

	watch.Stop()
	<-done
}

// Current returns a copy of the latest successful fix.
func (s *locatorService) Current() (*entity.UserPosition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, false
	}
	pos := *s.current

	return &pos, true
}

// State reports the acquisition lifecycle state.
func (s *locatorService) State() usecase.WatchState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// OnPosition registers a sink for every successful fix.
func (s *locatorService) OnPosition(sink usecase.PositionSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positionSinks = append(s.positionSinks, sink)
}

// OnFailure registers a sink for every categorized failure.
func (s *locatorService) OnFailure(sink usecase.FailureSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failureSinks = append(s.failureSinks, sink)
}

func (s *locatorService) consumeWatch(watch service.PositionWatch, done chan struct{}) {
	defer close(done)

	updates := watch.Updates()
	errs := watch.Errors()
	for updates != nil || errs != nil {
		select {
		case pos, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			if !s.owns(watch) {
				continue
			}
			s.applyPosition(pos)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if !s.owns(watch) {
				continue
			}
			s.handleWatchFailure(watch, err)
		}
	}
}

func (s *locatorService) handleWatchFailure(watch service.PositionWatch, err error) {
	category, ok := service.PositionErrorCategoryOf(err)
	if !ok {
		category = service.PositionUnavailable
	}
	metrics.PositionFailures.WithLabelValues(category.String()).Inc()
	s.logger.Warn("position watch failure",
		slog.String("category", category.String()),
		slog.Any("error", err))

	if category == service.PositionPermissionDenied {
		// Terminal: the watch cannot recover until permission changes.
		s.mu.Lock()
		if s.watch == watch {
			s.watch = nil
			s.watchDone = nil
			s.state = usecase.WatchStateFailed
			metrics.ActiveWatches.Dec()
		}
		s.mu.Unlock()
		watch.Stop()
	}

	s.notifyFailure(mapPositionError(err))
}

// applyPosition stores the fix as current and fans it out to the sinks.
func (s *locatorService) applyPosition(pos entity.UserPosition) {
	s.mu.Lock()
	s.current = &pos
	s.state = usecase.WatchStateActive
	sinks := append([]usecase.PositionSink(nil), s.positionSinks...)
	s.mu.Unlock()

	metrics.PositionReadings.Inc()
	for _, sink := range sinks {
		sink(pos)
	}
}

func (s *locatorService) notifyFailure(err error) {
	s.mu.Lock()
	sinks := append([]usecase.FailureSink(nil), s.failureSinks...)
	s.mu.Unlock()

	for _, sink := range sinks {
		sink(err)
	}
}

func (s *locatorService) owns(watch service.PositionWatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.watch == watch
}

func (s *locatorService) setState(state usecase.WatchState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// mapPositionError converts a provider failure into the application error
// the rest of the system understands.
func mapPositionError(err error) error {
	category, ok := service.PositionErrorCategoryOf(err)
	if !ok {
		return domainerrors.ErrLocationUnavailable
	}

	switch category {
	case service.PositionPermissionDenied:
		return domainerrors.ErrLocationPermissionDenied
	case service.PositionTimeout:
		return domainerrors.ErrLocationTimeout
	default:
		return domainerrors.ErrLocationUnavailable
	}
}

func locateOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	if category, ok := service.PositionErrorCategoryOf(err); ok {
		return category.String()
	}

	return "error"
}
