package entity

// MarkerStyle selects how a shop marker is rendered. Small result sets get
// rich markers (label, pricing badge); large sets fall back to lightweight
// dots so the map stays responsive.
type MarkerStyle string

const (
	// MarkerStyleRich is the full marker with label and badge.
	MarkerStyleRich MarkerStyle = "rich"
	// MarkerStyleLite is the lightweight dot marker used for large sets.
	MarkerStyleLite MarkerStyle = "lite"
)

// String returns the string representation of the MarkerStyle.
func (m MarkerStyle) String() string {
	return string(m)
}

// IsValid checks if the MarkerStyle is a valid value.
func (m MarkerStyle) IsValid() bool {
	switch m {
	case MarkerStyleRich, MarkerStyleLite:
		return true
	default:
		return false
	}
}
