package usecase

import (
	"context"

	"shopradar/internal/domain/entity"
)

// WatchState identifies where position acquisition is in its lifecycle.
type WatchState string

const (
	// WatchStateIdle means no acquisition has been attempted.
	WatchStateIdle WatchState = "idle"
	// WatchStateLocating means a fix or watch start is in progress.
	WatchStateLocating WatchState = "locating"
	// WatchStateActive means a watch is running and delivering fixes.
	WatchStateActive WatchState = "active"
	// WatchStateFailed means the last acquisition ended in an error.
	WatchStateFailed WatchState = "failed"
)

// PositionSink receives each successful fix.
type PositionSink func(pos entity.UserPosition)

// FailureSink receives each categorized acquisition failure.
type FailureSink func(err error)

// LocatorUsecase defines the interface for position acquisition use cases
type LocatorUsecase interface {
	// LocateOnce acquires a single fix: high accuracy first, then exactly
	// one low-accuracy retry if and only if the first attempt timed out.
	// The fix becomes the current position.
	LocateOnce(ctx context.Context) (*entity.UserPosition, error)

	// StartWatch begins continuous acquisition. At most one watch runs;
	// calling StartWatch while one is active is a no-op.
	StartWatch(ctx context.Context) error

	// StopWatch ends the running watch. Safe to call when none is running.
	StopWatch()

	// Current returns the latest successful fix.
	Current() (*entity.UserPosition, bool)

	// State reports the acquisition lifecycle state.
	State() WatchState

	// OnPosition registers a sink invoked for every fix, one-shot or
	// watched. Register before starting the watch.
	OnPosition(sink PositionSink)

	// OnFailure registers a sink invoked for every categorized failure.
	OnFailure(sink FailureSink)
}
