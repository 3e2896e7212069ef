package entity

import "time"

// UserPosition is one geolocation fix reported by the device.
type UserPosition struct {
	Coord          Coordinate `json:"coord"`
	AccuracyMeters float64    `json:"accuracy_meters"`
	CapturedAt     time.Time  `json:"captured_at"`
}

// Age returns how old the fix is relative to now.
func (p UserPosition) Age(now time.Time) time.Duration {
	return now.Sub(p.CapturedAt)
}
