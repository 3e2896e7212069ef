package entity

// TrackingSession is the state of one active follow-a-shop session. It
// exists only while the user is actively tracking and is destroyed when
// tracking stops, the target changes, or the view session closes.
type TrackingSession struct {
	// TargetID is the shop currently being tracked.
	TargetID string `json:"target_id"`

	// LastRoutedFrom is the origin of the last successful route computation.
	// Refreshes closer than the movement threshold to this point are skipped.
	LastRoutedFrom *Coordinate `json:"last_routed_from,omitempty"`

	// LastRoutedTargetID is the target of the last successful computation.
	// A changed target always bypasses the movement gate.
	LastRoutedTargetID string `json:"last_routed_target_id"`

	// Generation is the current request generation. Each dispatched route
	// request captures it; completions with a stale generation are dropped.
	Generation uint64 `json:"generation"`
}
