package impl

import (
	"context"
	"log/slog"
	"sync"

	"shopradar/config"
	"shopradar/internal/dedup"
	"shopradar/internal/domain/entity"
	domainerrors "shopradar/internal/domain/errors"
	"shopradar/internal/domain/service"
	"shopradar/internal/geo"
	"shopradar/internal/usecase"
)

// Reload flight keys. Concurrent reloads of the same kind share one fetch.
const (
	reloadKeyAll    = "all"
	reloadKeyNearby = "nearby"
)

// indexService implements the ShopIndexUsecase interface
type indexService struct {
	source service.ShopSource
	cfg    *config.ShopAPIConfig
	logger *slog.Logger

	flights *dedup.Dedup[string, []entity.Shop]

	mu    sync.RWMutex
	shops []entity.Shop
	pos   *entity.UserPosition
}

// NewIndexService creates a new shop index instance
func NewIndexService(cfg *config.ShopAPIConfig, logger *slog.Logger, source service.ShopSource) usecase.ShopIndexUsecase {
	return &indexService{
		source:  source,
		cfg:     cfg,
		logger:  logger,
		flights: dedup.New[string, []entity.Shop](),
	}
}

// Replace swaps the whole entity set
func (s *indexService) Replace(shops []entity.Shop) {
	next := make([]entity.Shop, len(shops))
	copy(next, shops)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.shops = next
	s.recomputeDistancesLocked()
}

// Reload pulls a fresh set from the directory and replaces the index
func (s *indexService) Reload(ctx context.Context) ([]entity.Shop, error) {
	s.mu.RLock()
	pos := s.pos
	s.mu.RUnlock()

	key := reloadKeyAll
	if pos != nil {
		key = reloadKeyNearby
	}

	shops, err := s.flights.Do(ctx, key, func(ctx context.Context) ([]entity.Shop, error) {
		if pos != nil {
			return s.source.FetchNearby(ctx, pos.Coord, s.cfg.NearbyRadiusMeters, s.cfg.NearbyLimit)
		}
		return s.source.FetchAllWithLocation(ctx)
	})
	if err != nil {
		s.logger.Error("shop reload failed",
			slog.String("key", key),
			slog.Any("error", err))

		return nil, domainerrors.ErrShopSourceUnavailable
	}

	s.Replace(shops)
	s.logger.Debug("shop index reloaded",
		slog.String("key", key),
		slog.Int("count", len(shops)))

	return s.Shops(""), nil
}

// SetPosition recomputes every shop's distance from the new position
func (s *indexService) SetPosition(pos entity.UserPosition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = &pos
	s.recomputeDistancesLocked()
}

// Shops returns a filtered, sorted copy of the set
func (s *indexService) Shops(query string) []entity.Shop {
	s.mu.RLock()
	view := make([]entity.Shop, 0, len(s.shops))
	for i := range s.shops {
		if s.shops[i].Matches(query) {
			view = append(view, s.shops[i])
		}
	}
	s.mu.RUnlock()

	geo.SortShops(view)

	return view
}

// Get looks up one shop by id
func (s *indexService) Get(id string) (*entity.Shop, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.shops {
		if s.shops[i].ID == id {
			shop := s.shops[i]
			return &shop, true
		}
	}

	return nil, false
}

// Len reports the number of shops currently indexed
func (s *indexService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.shops)
}

// recomputeDistancesLocked refreshes every distance in one pass. Shops
// without a location always carry a nil distance.
func (s *indexService) recomputeDistancesLocked() {
	for i := range s.shops {
		shop := &s.shops[i]
		if s.pos == nil || !shop.HasLocation() {
			shop.DistanceMeters = nil
			continue
		}
		d := geo.Distance(s.pos.Coord, *shop.Location)
		shop.DistanceMeters = &d
	}
}
