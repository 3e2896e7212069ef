package entity

import (
	"time"

	"github.com/paulmach/orb"
)

// Route is one computed driving route from the user's position to a shop.
type Route struct {
	TargetID       string         `json:"target_id"`
	From           Coordinate     `json:"from"`
	To             Coordinate     `json:"to"`
	Geometry       orb.LineString `json:"geometry"`
	DistanceMeters float64        `json:"distance_meters"`
	Duration       time.Duration  `json:"duration"`

	// Generation is the request generation that produced this route. Responses
	// from an older generation are discarded instead of applied.
	Generation uint64 `json:"generation"`

	ComputedAt time.Time `json:"computed_at"`
}

// Bound returns the viewport bound covering the route geometry plus both
// endpoints. Used when fitting the map view after a non-silent computation.
func (r *Route) Bound() orb.Bound {
	b := orb.MultiPoint{r.From.Point(), r.To.Point()}.Bound()
	if len(r.Geometry) > 0 {
		b = b.Union(r.Geometry.Bound())
	}
	return b
}
