// Package lifecycle holds process start/stop conventions shared by the
// delivery surfaces.
package lifecycle

import "time"

// DefaultTimeout bounds graceful shutdown of a serving surface.
const DefaultTimeout = 10 * time.Second
