package invoke

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrAlreadySettled is returned when a promise is resolved or rejected twice.
	// A second settlement is a delivery mismatch and never changes the outcome.
	ErrAlreadySettled = errors.New("promise already settled")

	// ErrNilRejection replaces a nil reason passed to Reject
	ErrNilRejection = errors.New("promise rejected without reason")
)

// Promise is a single-assignment result that callers can await.
//
// It settles exactly once; continuations registered with Then run after
// settlement, in registration order.
type Promise struct {
	mu      sync.Mutex
	done    chan struct{}
	settled bool
	value   any
	err     error
	thens   []Callback
}

// NewPromise creates a pending promise
func NewPromise() *Promise {
	return &Promise{done: make(chan struct{})}
}

// Resolved returns a promise already resolved with value
func Resolved(value any) *Promise {
	p := NewPromise()
	_ = p.Resolve(value)
	return p
}

// Rejected returns a promise already rejected with err
func Rejected(err error) *Promise {
	p := NewPromise()
	_ = p.Reject(err)
	return p
}

// Resolve settles the promise with a success value
func (p *Promise) Resolve(value any) error {
	return p.settle(value, nil)
}

// Reject settles the promise with a failure descriptor
func (p *Promise) Reject(err error) error {
	if err == nil {
		err = ErrNilRejection
	}
	return p.settle(nil, err)
}

func (p *Promise) settle(value any, err error) error {
	p.mu.Lock()
	if p.settled {
		p.mu.Unlock()
		return ErrAlreadySettled
	}
	p.settled = true
	p.value = value
	p.err = err
	thens := p.thens
	p.thens = nil
	close(p.done)
	p.mu.Unlock()

	for _, fn := range thens {
		fn(err, value)
	}
	return nil
}

// Then registers a continuation. If the promise is already settled,
// fn runs immediately on the calling goroutine.
func (p *Promise) Then(fn Callback) {
	if fn == nil {
		return
	}
	p.mu.Lock()
	if !p.settled {
		p.thens = append(p.thens, fn)
		p.mu.Unlock()
		return
	}
	value, err := p.value, p.err
	p.mu.Unlock()
	fn(err, value)
}

// Await blocks until the promise settles or ctx is done
func (p *Promise) Await(ctx context.Context) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done returns a channel closed once the promise settles
func (p *Promise) Done() <-chan struct{} {
	return p.done
}

// Settled reports whether the promise has been resolved or rejected
func (p *Promise) Settled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settled
}

// Result returns the settled outcome; ok is false while still pending
func (p *Promise) Result() (r Result, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.settled {
		return Result{}, false
	}
	return Result{Value: p.value, Err: p.err}, true
}
