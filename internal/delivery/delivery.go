// Package delivery defines the contract every transport surface fulfills.
package delivery

import "context"

// Delivery is one serving surface of the application. Implementations
// block in Serve until the surface shuts down.
type Delivery interface {
	Serve(ctx context.Context) error
}
