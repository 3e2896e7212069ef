// Package timeutil abstracts the wall clock so timer-driven behavior can
// be driven deterministically in tests.
package timeutil

import (
	"sync"
	"time"
)

// Clock is the subset of the time package the coordinator relies on.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the duration elapsed since t.
	Since(t time.Time) time.Duration

	// After waits for d and then delivers the current time once.
	After(d time.Duration) <-chan time.Time

	// NewTimer returns a timer that fires once after d.
	NewTimer(d time.Duration) Timer

	// NewTicker returns a ticker that fires every d.
	NewTicker(d time.Duration) Ticker
}

// Timer is a single-shot timer.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
	Reset(d time.Duration) bool
}

// Ticker delivers ticks at a fixed period.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// System returns the process wall clock.
func System() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Since(t time.Time) time.Duration { return time.Since(t) }

func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (systemClock) NewTimer(d time.Duration) Timer {
	return systemTimer{time.NewTimer(d)}
}

func (systemClock) NewTicker(d time.Duration) Ticker {
	return systemTicker{time.NewTicker(d)}
}

type systemTimer struct{ t *time.Timer }

func (t systemTimer) C() <-chan time.Time { return t.t.C }

func (t systemTimer) Stop() bool { return t.t.Stop() }

func (t systemTimer) Reset(d time.Duration) bool { return t.t.Reset(d) }

type systemTicker struct{ t *time.Ticker }

func (t systemTicker) C() <-chan time.Time { return t.t.C }

func (t systemTicker) Stop() { t.t.Stop() }

// expirable is anything the fake clock must visit when time moves.
type expirable interface {
	expire(now time.Time)
}

// Fake is a manually driven Clock. Time only moves when Advance or Set is
// called; expired timers and tickers fire during that call.
type Fake struct {
	mu         sync.Mutex
	registered *sync.Cond
	now        time.Time
	waiters    []expirable
}

// NewFake creates a fake clock frozen at start.
func NewFake(start time.Time) *Fake {
	f := &Fake{now: start}
	f.registered = sync.NewCond(&f.mu)

	return f
}

// BlockUntil returns once at least n timers and tickers have been created
// on the clock. Tests use it to know a goroutine under test has armed its
// timer before advancing time past it.
func (f *Fake) BlockUntil(n int) {
	f.mu.Lock()
	for len(f.waiters) < n {
		f.registered.Wait()
	}
	f.mu.Unlock()
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Since returns the fake duration elapsed since t.
func (f *Fake) Since(t time.Time) time.Duration {
	return f.Now().Sub(t)
}

// After waits for d of fake time.
func (f *Fake) After(d time.Duration) <-chan time.Time {
	return f.NewTimer(d).C()
}

// NewTimer returns a fake single-shot timer.
func (f *Fake) NewTimer(d time.Duration) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := &fakeTimer{
		clock:  f,
		ch:     make(chan time.Time, 1),
		at:     f.now.Add(d),
		active: true,
	}
	f.waiters = append(f.waiters, t)
	f.registered.Broadcast()
	return t
}

// NewTicker returns a fake periodic ticker.
func (f *Fake) NewTicker(d time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := &fakeTicker{
		ch:     make(chan time.Time, 1),
		every:  d,
		next:   f.now.Add(d),
		active: true,
	}
	f.waiters = append(f.waiters, t)
	f.registered.Broadcast()
	return t
}

// Set jumps the clock to t, firing anything that expired on the way.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	now := f.now
	waiters := make([]expirable, len(f.waiters))
	copy(waiters, f.waiters)
	f.mu.Unlock()

	for _, w := range waiters {
		w.expire(now)
	}
}

// Advance moves the clock forward by d, firing anything that expired.
func (f *Fake) Advance(d time.Duration) {
	f.Set(f.Now().Add(d))
}

type fakeTimer struct {
	clock  *Fake
	mu     sync.Mutex
	ch     chan time.Time
	at     time.Time
	active bool
}

func (t *fakeTimer) C() <-chan time.Time { return t.ch }

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := t.active
	t.active = false
	return was
}

func (t *fakeTimer) Reset(d time.Duration) bool {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()
	was := t.active
	t.at = now.Add(d)
	t.active = true
	return was
}

func (t *fakeTimer) expire(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active || now.Before(t.at) {
		return
	}
	t.active = false
	select {
	case t.ch <- now:
	default:
	}
}

type fakeTicker struct {
	mu     sync.Mutex
	ch     chan time.Time
	every  time.Duration
	next   time.Time
	active bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = false
}

func (t *fakeTicker) expire(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active || now.Before(t.next) {
		return
	}
	select {
	case t.ch <- now:
	default:
	}
	// Missed periods collapse into the one delivered tick, like time.Ticker.
	t.next = now.Add(t.every)
}
