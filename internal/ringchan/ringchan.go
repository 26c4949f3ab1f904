// Package ringchan provides a bounded channel that overwrites its oldest element.
//
// Producers never block: when the buffer is full the oldest element is
// discarded. It decouples simulated event emitters from slow consumers such as
// a terminal writer.
//
//	rc := ringchan.New[string](3)
//	for i := 0; i < 10; i++ {
//	    rc.Send(fmt.Sprint(i))
//	}
//	for v := range rc.C() { // prints 7, 8, 9
//	    fmt.Println(v)
//	}
package ringchan

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var ErrClosed = errors.New("ring channel closed")

// RingChannel is a bounded channel-like buffer with overwrite-oldest semantics.
// Send and Close may be called concurrently.
type RingChannel[T any] struct {
	mu      sync.Mutex // serialises writers with Close
	ch      chan T
	closed  bool
	metrics Metrics
}

// New creates a RingChannel with the given capacity; capacities below 1 are raised to 1.
func New[T any](capacity int) *RingChannel[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &RingChannel[T]{ch: make(chan T, capacity)}
}

// C returns the underlying receive-only channel.
// Reads through C bypass the Received metric.
func (rc *RingChannel[T]) C() <-chan T {
	return rc.ch
}

// Send inserts v, discarding the oldest element when full.
// It reports whether an element was dropped; sending on a closed RingChannel is a no-op.
func (rc *RingChannel[T]) Send(v T) (dropped bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.closed {
		return false
	}

	for {
		select {
		case rc.ch <- v:
			rc.metrics.Written.Add(1)
			return dropped
		default:
		}
		select {
		case <-rc.ch: // drop oldest
			rc.metrics.Overwritten.Add(1)
			dropped = true
		default:
			// a reader emptied a slot between the two selects
		}
	}
}

// Receive blocks until a value is available, ctx is done or the channel is closed and drained.
func (rc *RingChannel[T]) Receive(ctx context.Context) (T, error) {
	select {
	case v, ok := <-rc.ch:
		if !ok {
			var zero T
			return zero, ErrClosed
		}
		rc.metrics.Received.Add(1)
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Len returns the number of buffered elements
func (rc *RingChannel[T]) Len() int {
	return len(rc.ch)
}

// Cap returns the capacity
func (rc *RingChannel[T]) Cap() int {
	return cap(rc.ch)
}

// Close closes the underlying channel; buffered values stay readable.
// Closing twice is a no-op.
func (rc *RingChannel[T]) Close() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if !rc.closed {
		rc.closed = true
		close(rc.ch)
	}
}

// Stats returns a snapshot of the counters
func (rc *RingChannel[T]) Stats() Stats {
	return Stats{
		Written:     rc.metrics.Written.Load(),
		Overwritten: rc.metrics.Overwritten.Load(),
		Received:    rc.metrics.Received.Load(),
	}
}

// Metrics are the lock-free counters of a RingChannel
type Metrics struct {
	Written     atomic.Int64
	Overwritten atomic.Int64
	Received    atomic.Int64
}

// Stats is a point-in-time copy of Metrics
type Stats struct {
	Written     int64
	Overwritten int64
	Received    int64
}
