// Package geofeed brokers pushed device geolocation reports to the
// session's position consumers.
package geofeed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"

	"shopradar/config"
	"shopradar/internal/domain/entity"
	"shopradar/internal/domain/service"
	"shopradar/internal/timeutil"
)

// ErrFeedClosed is returned when a reading or failure is pushed into a
// closed feed.
var ErrFeedClosed = errors.New("position feed is closed")

const (
	defaultLocateTimeout    = 20 * time.Second
	defaultWatchTimeout     = 20 * time.Second
	defaultHighAccuracyMaxM = 50.0

	watchUpdateBuffer = 16
	watchErrorBuffer  = 4
)

type locateResult struct {
	pos entity.UserPosition
	err error
}

// locateWaiter is one blocked Locate call waiting for an acceptable
// reading.
type locateWaiter struct {
	highAccuracy bool
	ch           chan locateResult
}

// feed implements the PositionFeed interface
type feed struct {
	cfg    *config.LocationConfig
	clock  timeutil.Clock
	logger *slog.Logger

	mu      sync.Mutex
	last    *entity.UserPosition
	lastAt  time.Time
	waiters []*locateWaiter
	watches []*watch
	closed  bool
}

// New creates a new in-memory position feed
func New(cfg *config.LocationConfig, logger *slog.Logger, clock timeutil.Clock) service.PositionFeed {
	if clock == nil {
		clock = timeutil.System()
	}

	return &feed{cfg: cfg, clock: clock, logger: logger}
}

// Publish ingests one device reading: it becomes the cached last fix,
// resolves waiters whose accuracy demand it meets, and flows to every
// watch.
func (f *feed) Publish(reading entity.UserPosition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrFeedClosed
	}

	if reading.CapturedAt.IsZero() {
		reading.CapturedAt = f.clock.Now()
	}
	f.last = &reading
	f.lastAt = f.clock.Now()

	var keep []*locateWaiter
	for _, w := range f.waiters {
		if w.highAccuracy && !f.meetsHighAccuracy(reading) {
			keep = append(keep, w)
			continue
		}
		w.ch <- locateResult{pos: reading}
	}
	f.waiters = keep

	for _, w := range f.watches {
		w.deliver(reading)
	}

	return nil
}

// Fail ingests one categorized device failure. Every blocked Locate call
// resolves with it; watches receive it on their error channel. A terminal
// category additionally ends every watch.
func (f *feed) Fail(category service.PositionErrorCategory, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrFeedClosed
	}

	perr := service.NewPositionError(category, reason)
	f.logger.Debug("position failure pushed", slog.String("category", category.String()))

	for _, w := range f.waiters {
		w.ch <- locateResult{err: perr}
	}
	f.waiters = nil

	watches := f.watches
	if perr.Terminal() {
		f.watches = nil
	}
	for _, w := range watches {
		w.fail(perr)
	}
	if perr.Terminal() {
		for _, w := range watches {
			w.shutdown()
		}
	}

	return nil
}

// Locate returns the cached reading when it is fresh and accurate enough,
// otherwise blocks until an acceptable reading, a pushed failure, the
// context, or the timeout resolves it.
func (f *feed) Locate(ctx context.Context, opts service.LocateOptions) (entity.UserPosition, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return entity.UserPosition{}, ErrFeedClosed
	}
	if f.last != nil && opts.MaxAge > 0 && f.clock.Since(f.lastAt) <= opts.MaxAge {
		if !opts.HighAccuracy || f.meetsHighAccuracy(*f.last) {
			pos := *f.last
			f.mu.Unlock()
			return pos, nil
		}
	}

	w := &locateWaiter{highAccuracy: opts.HighAccuracy, ch: make(chan locateResult, 1)}
	f.waiters = append(f.waiters, w)
	f.mu.Unlock()

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultLocateTimeout
	}
	timer := f.clock.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-w.ch:
		if res.err != nil {
			return entity.UserPosition{}, res.err
		}
		return res.pos, nil
	case <-ctx.Done():
		f.removeWaiter(w)
		return entity.UserPosition{}, errors.WithStack(ctx.Err())
	case <-timer.C():
		f.removeWaiter(w)
		// A reading may have slipped in between the deadline firing and
		// the waiter's removal.
		select {
		case res := <-w.ch:
			if res.err != nil {
				return entity.UserPosition{}, res.err
			}
			return res.pos, nil
		default:
		}
		return entity.UserPosition{}, service.NewPositionError(service.PositionTimeout, "no acceptable reading before the deadline")
	}
}

// Watch begins a continuous acquisition backed by the feed. A cached
// reading fresh enough for opts.MaxAge is delivered as the first update.
func (f *feed) Watch(opts service.WatchOptions) (service.PositionWatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrFeedClosed
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultWatchTimeout
	}
	w := &watch{
		feed:    f,
		clock:   f.clock,
		timeout: timeout,
		updates: make(chan entity.UserPosition, watchUpdateBuffer),
		errs:    make(chan error, watchErrorBuffer),
		reset:   make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
	f.watches = append(f.watches, w)

	if f.last != nil && opts.MaxAge > 0 && f.clock.Since(f.lastAt) <= opts.MaxAge {
		w.deliver(*f.last)
	}

	go w.run()

	return w, nil
}

// Close stops the feed: blocked Locate calls resolve unavailable, watches
// end, and further pushes are rejected.
func (f *feed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	waiters := f.waiters
	watches := f.watches
	f.waiters = nil
	f.watches = nil
	f.mu.Unlock()

	for _, w := range waiters {
		w.ch <- locateResult{err: service.NewPositionError(service.PositionUnavailable, "position feed closed")}
	}
	for _, w := range watches {
		w.shutdown()
	}
}

func (f *feed) meetsHighAccuracy(reading entity.UserPosition) bool {
	bound := f.cfg.HighAccuracyMaxMeters
	if bound <= 0 {
		bound = defaultHighAccuracyMaxM
	}

	return reading.AccuracyMeters <= bound
}

func (f *feed) removeWaiter(target *locateWaiter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, w := range f.waiters {
		if w == target {
			f.waiters = append(f.waiters[:i], f.waiters[i+1:]...)
			return
		}
	}
}

func (f *feed) removeWatch(target *watch) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, w := range f.watches {
		if w == target {
			f.watches = append(f.watches[:i], f.watches[i+1:]...)
			return
		}
	}
}

// watch is one running continuous acquisition. Its run goroutine owns the
// silence timer and is the only closer of the outbound channels.
type watch struct {
	feed    *feed
	clock   timeutil.Clock
	timeout time.Duration
	updates chan entity.UserPosition
	errs    chan error
	reset   chan struct{}
	stop    chan struct{}
	once    sync.Once
}

// Updates delivers position fixes as devices report them.
func (w *watch) Updates() <-chan entity.UserPosition {
	return w.updates
}

// Errors delivers categorized failures.
func (w *watch) Errors() <-chan error {
	return w.errs
}

// Stop ends the watch. Safe to call twice.
func (w *watch) Stop() {
	w.feed.removeWatch(w)
	w.shutdown()
}

func (w *watch) shutdown() {
	w.once.Do(func() { close(w.stop) })
}

// deliver hands a reading to the consumer, dropping the oldest buffered
// one when the consumer lags so the freshest fix is never lost.
func (w *watch) deliver(pos entity.UserPosition) {
	select {
	case w.updates <- pos:
	default:
		select {
		case <-w.updates:
		default:
		}
		select {
		case w.updates <- pos:
		default:
		}
	}
	w.poke()
}

func (w *watch) fail(err error) {
	select {
	case w.errs <- err:
	default:
	}
	w.poke()
}

// poke resets the silence timer; any event from the device counts as
// activity.
func (w *watch) poke() {
	select {
	case w.reset <- struct{}{}:
	default:
	}
}

func (w *watch) run() {
	timer := w.clock.NewTimer(w.timeout)
	defer timer.Stop()

	for {
		select {
		case <-w.stop:
			close(w.updates)
			close(w.errs)
			return
		case <-w.reset:
			timer.Reset(w.timeout)
		case <-timer.C():
			// Silence past the per-reading window is a transient timeout;
			// the watch keeps running.
			select {
			case w.errs <- service.NewPositionError(service.PositionTimeout, "no reading within the watch window"):
			default:
			}
			timer.Reset(w.timeout)
		}
	}
}
