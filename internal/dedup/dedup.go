// Package dedup collapses concurrent identical operations into a single
// execution whose result every caller shares.
package dedup

import (
	"context"
	"sync"
)

type flight[V any] struct {
	done chan struct{}
	val  V
	err  error
}

// Dedup deduplicates in-flight operations by key. The first caller for a
// key executes the function; callers arriving while it runs wait for and
// share that result instead of issuing a duplicate. Once a flight
// completes its key is forgotten, so the next call starts fresh.
type Dedup[K comparable, V any] struct {
	mu      sync.Mutex
	flights map[K]*flight[V]
}

// New creates an empty Dedup.
func New[K comparable, V any]() *Dedup[K, V] {
	return &Dedup[K, V]{flights: make(map[K]*flight[V])}
}

// Do returns the result of fn for key, joining an in-flight execution when
// one exists. The function runs with the context of the caller that
// started it; a joining caller whose own context ends first stops waiting
// and returns its context error while the flight continues for the rest.
func (d *Dedup[K, V]) Do(ctx context.Context, key K, fn func(ctx context.Context) (V, error)) (V, error) {
	d.mu.Lock()
	if f, ok := d.flights[key]; ok {
		d.mu.Unlock()
		select {
		case <-f.done:
			return f.val, f.err
		case <-ctx.Done():
			var zero V
			return zero, ctx.Err()
		}
	}

	f := &flight[V]{done: make(chan struct{})}
	d.flights[key] = f
	d.mu.Unlock()

	f.val, f.err = fn(ctx)

	d.mu.Lock()
	// Only clear our own flight; Forget may have replaced it already.
	if d.flights[key] == f {
		delete(d.flights, key)
	}
	d.mu.Unlock()

	close(f.done)
	return f.val, f.err
}

// Forget detaches any in-flight execution for key. Callers already waiting
// still receive its result, but the next Do starts a new execution.
func (d *Dedup[K, V]) Forget(key K) {
	d.mu.Lock()
	delete(d.flights, key)
	d.mu.Unlock()
}

// Inflight reports whether an execution for key is currently running.
func (d *Dedup[K, V]) Inflight(key K) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.flights[key]
	return ok
}
