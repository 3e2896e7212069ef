package usecase

import (
	"context"

	"shopradar/internal/domain/entity"
)

// ShopIndexUsecase defines the interface for the in-memory shop index
type ShopIndexUsecase interface {
	// Replace swaps the whole entity set; nothing is merged. Distances are
	// recomputed when a position is known.
	Replace(shops []entity.Shop)

	// Reload pulls a fresh set from the directory and replaces the index.
	// Concurrent reloads collapse into one fetch. Returns the view after
	// the swap, sorted with no filter.
	Reload(ctx context.Context) ([]entity.Shop, error)

	// SetPosition recomputes every shop's distance from the new position.
	SetPosition(pos entity.UserPosition)

	// Shops returns a filtered, sorted copy of the set. The query is a
	// case-insensitive substring match on name and locality; empty matches
	// all.
	Shops(query string) []entity.Shop

	// Get looks up one shop by id. The returned value is a copy.
	Get(id string) (*entity.Shop, bool)

	// Len reports the number of shops currently indexed.
	Len() int
}
