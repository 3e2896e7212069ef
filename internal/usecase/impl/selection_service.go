package impl

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pkg/errors"

	"shopradar/internal/domain/entity"
	domainerrors "shopradar/internal/domain/errors"
	"shopradar/internal/usecase"
)

// selectionService implements the SelectionUsecase interface
type selectionService struct {
	index   usecase.ShopIndexUsecase
	markers usecase.MarkerUsecase
	routes  usecase.RouteUsecase
	logger  *slog.Logger

	mu       sync.Mutex
	selected string
	query    string
}

// NewSelectionService creates a new selection orchestration service instance
func NewSelectionService(
	logger *slog.Logger,
	index usecase.ShopIndexUsecase,
	markers usecase.MarkerUsecase,
	routes usecase.RouteUsecase,
) usecase.SelectionUsecase {
	return &selectionService{
		index:   index,
		markers: markers,
		routes:  routes,
		logger:  logger,
	}
}

// Select resolves the shop, highlights its marker, and returns a copy for
// client centering. Selecting while tracking a different shop stops that
// tracking first so no work for the old target survives the switch.
func (s *selectionService) Select(_ context.Context, shopID string) (*entity.Shop, error) {
	shop, ok := s.index.Get(shopID)
	if !ok {
		return nil, domainerrors.ErrShopNotFound
	}

	snap := s.routes.Snapshot()
	if snap.Tracking && snap.TargetID != shopID {
		s.routes.StopTracking()
	}

	s.mu.Lock()
	s.selected = shopID
	s.mu.Unlock()
	s.markers.Highlight(shopID)

	return shop, nil
}

// ClearSelection removes the highlight and stops tracking if the cleared
// shop was the tracked target.
func (s *selectionService) ClearSelection() {
	s.mu.Lock()
	cleared := s.selected
	s.selected = ""
	s.mu.Unlock()
	if cleared == "" {
		return
	}

	if snap := s.routes.Snapshot(); snap.Tracking && snap.TargetID == cleared {
		s.routes.StopTracking()
	}
	s.markers.Highlight("")
}

// Selected reports the currently selected shop id.
func (s *selectionService) Selected() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.selected, s.selected != ""
}

// ToggleTracking flips tracking for the shop. Tracking it already stops;
// tracking another shop switches; tracking nothing selects it and starts.
func (s *selectionService) ToggleTracking(ctx context.Context, shopID string) (bool, error) {
	snap := s.routes.Snapshot()
	if snap.Tracking && snap.TargetID == shopID {
		s.routes.StopTracking()
		return false, nil
	}

	shop, err := s.Select(ctx, shopID)
	if err != nil {
		return snap.Tracking, err
	}

	if _, err := s.routes.StartTracking(ctx, shop); err != nil {
		return false, errors.WithMessage(err, "start tracking")
	}

	return true, nil
}

// SetQuery updates the view filter and re-reconciles markers against the
// filtered set.
func (s *selectionService) SetQuery(query string) []entity.Shop {
	s.mu.Lock()
	s.query = query
	s.mu.Unlock()

	return s.RefreshView()
}

// RefreshView reconciles markers against the current filtered view and
// returns it.
func (s *selectionService) RefreshView() []entity.Shop {
	s.mu.Lock()
	query := s.query
	selected := s.selected
	s.mu.Unlock()

	view := s.index.Shops(query)
	s.markers.Reconcile(view)
	if selected != "" {
		s.markers.Highlight(selected)
	}

	return view
}

// HandlePosition is the per-fix data flow: recompute distances, refresh
// the marker view, then let the route coordinator apply its movement gate.
func (s *selectionService) HandlePosition(pos entity.UserPosition) {
	s.index.SetPosition(pos)
	s.RefreshView()
	s.routes.HandlePosition(pos)
}

// HandleFailure pauses route refreshing on a permission denial and leaves
// transient failures to the counters.
func (s *selectionService) HandleFailure(err error) {
	if errors.Is(err, domainerrors.ErrLocationPermissionDenied) {
		s.logger.Warn("location permission denied, pausing route refresh")
		s.routes.Pause()
		return
	}

	s.logger.Debug("transient location failure", slog.Any("error", err))
}
