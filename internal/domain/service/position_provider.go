package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"shopradar/internal/domain/entity"
)

// PositionErrorCategory classifies geolocation failures the way devices
// report them.
type PositionErrorCategory string

const (
	// PositionPermissionDenied means the user refused location access.
	// Terminal: no retry will succeed until permission changes.
	PositionPermissionDenied PositionErrorCategory = "permission_denied"
	// PositionUnavailable means the device could not produce a fix.
	PositionUnavailable PositionErrorCategory = "position_unavailable"
	// PositionTimeout means no fix arrived within the allowed window.
	PositionTimeout PositionErrorCategory = "timeout"
)

// String returns the string representation of the category.
func (c PositionErrorCategory) String() string {
	return string(c)
}

// IsValid checks if the category is a valid value.
func (c PositionErrorCategory) IsValid() bool {
	switch c {
	case PositionPermissionDenied, PositionUnavailable, PositionTimeout:
		return true
	default:
		return false
	}
}

// PositionError is a categorized geolocation failure reported by a
// PositionProvider.
type PositionError struct {
	Category PositionErrorCategory
	Reason   string
}

// NewPositionError creates a categorized geolocation failure.
func NewPositionError(category PositionErrorCategory, reason string) *PositionError {
	return &PositionError{Category: category, Reason: reason}
}

// Error implements the error interface.
func (e *PositionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("geolocation failed: %s", e.Category)
	}
	return fmt.Sprintf("geolocation failed: %s: %s", e.Category, e.Reason)
}

// Terminal reports whether retrying can never help.
func (e *PositionError) Terminal() bool {
	return e.Category == PositionPermissionDenied
}

// PositionErrorCategoryOf extracts the category from an error chain. The
// second result is false when the error is not a geolocation failure.
func PositionErrorCategoryOf(err error) (PositionErrorCategory, bool) {
	var perr *PositionError
	if errors.As(err, &perr) {
		return perr.Category, true
	}
	return "", false
}

// LocateOptions controls a one-shot position acquisition.
type LocateOptions struct {
	// HighAccuracy restricts acceptable readings to those at or under the
	// provider's high-accuracy bound.
	HighAccuracy bool
	// Timeout is how long to wait for an acceptable reading.
	Timeout time.Duration
	// MaxAge allows a cached reading no older than this to satisfy the
	// request immediately. Zero demands a fresh reading.
	MaxAge time.Duration
}

// WatchOptions controls a continuous position acquisition.
type WatchOptions struct {
	HighAccuracy bool
	// Timeout is the longest tolerated silence between readings before the
	// watch emits a transient timeout error. The watch itself keeps running.
	Timeout time.Duration
	MaxAge  time.Duration
}

// PositionWatch is one running continuous acquisition.
type PositionWatch interface {
	// Updates delivers position fixes as the device reports them.
	Updates() <-chan entity.UserPosition

	// Errors delivers categorized failures. A terminal failure is the last
	// event; both channels close afterwards.
	Errors() <-chan error

	// Stop ends the watch and closes both channels. Safe to call twice.
	Stop()
}

// PositionProvider defines the interface for device geolocation sources
type PositionProvider interface {
	// Locate acquires a single position fix honoring the options.
	Locate(ctx context.Context, opts LocateOptions) (entity.UserPosition, error)

	// Watch begins a continuous acquisition.
	Watch(opts WatchOptions) (PositionWatch, error)
}

// PositionFeed is a PositionProvider fed by pushed device reports.
type PositionFeed interface {
	PositionProvider

	// Publish ingests one device reading.
	Publish(reading entity.UserPosition) error

	// Fail ingests one categorized device failure.
	Fail(category PositionErrorCategory, reason string) error

	// Close stops the feed; watches end and publishes are rejected.
	Close()
}

// PositionFeedFactory builds one position feed per session.
type PositionFeedFactory func() PositionFeed
