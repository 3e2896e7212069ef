// Package geo implements the distance engine: great-circle distance and
// the display ordering used by every shop list in the product.
package geo

import (
	"math"
	"sort"

	"shopradar/internal/domain/entity"
)

// earthRadiusM is the mean Earth radius. The storefront client uses the
// same constant, so server- and client-computed distances agree.
const earthRadiusM = 6371000.0

// Distance returns the haversine great-circle distance between two
// coordinates in meters.
func Distance(a, b entity.Coordinate) float64 {
	lat1Rad := a.Lat * math.Pi / 180
	lng1Rad := a.Lng * math.Pi / 180
	lat2Rad := b.Lat * math.Pi / 180
	lng2Rad := b.Lng * math.Pi / 180

	deltaLat := lat2Rad - lat1Rad
	deltaLng := lng2Rad - lng1Rad

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusM * c
}

// SortShops orders shops in place for display: featured shops before
// non-featured, then ascending distance, with unknown distances after all
// known ones. The sort is stable, so entries that compare equal keep their
// incoming order.
func SortShops(shops []entity.Shop) {
	sort.SliceStable(shops, func(i, j int) bool {
		a, b := &shops[i], &shops[j]
		if a.Featured != b.Featured {
			return a.Featured
		}
		switch {
		case a.DistanceMeters == nil && b.DistanceMeters == nil:
			return false
		case a.DistanceMeters == nil:
			return false
		case b.DistanceMeters == nil:
			return true
		default:
			return *a.DistanceMeters < *b.DistanceMeters
		}
	})
}
