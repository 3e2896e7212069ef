// Package service defines interfaces for external collaborators of the
// tracking coordinator. Implementations live under internal/infra; tests
// drive the usecases with in-file fakes.
package service

import (
	"context"

	"shopradar/internal/domain/entity"
)

// ShopSource defines the interface for the marketplace shop directory
type ShopSource interface {
	// FetchAllWithLocation returns every shop that has published a location.
	FetchAllWithLocation(ctx context.Context) ([]entity.Shop, error)

	// FetchNearby returns up to limit shops within radiusMeters of center,
	// nearest first as ranked by the directory.
	FetchNearby(ctx context.Context, center entity.Coordinate, radiusMeters float64, limit int) ([]entity.Shop, error)
}
