package entity

import "strings"

// Shop is one marketplace storefront as served by the shop directory.
// Location is nil for shops that never provided one; such shops still show
// up in list views but carry no distance and get no map marker.
type Shop struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Locality string      `json:"locality"`
	Featured bool        `json:"featured"`
	Location *Coordinate `json:"location,omitempty"`

	// DistanceMeters is the straight-line distance from the user's current
	// position. Nil when either side has no location.
	DistanceMeters *float64 `json:"distance_meters,omitempty"`
}

// HasLocation reports whether the shop has a usable coordinate.
func (s *Shop) HasLocation() bool {
	return s.Location != nil && s.Location.Valid()
}

// Matches reports whether the shop matches a free-text filter. The match is
// a case-insensitive substring check against name and locality; an empty
// query matches everything.
func (s *Shop) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s.Name), q) ||
		strings.Contains(strings.ToLower(s.Locality), q)
}
