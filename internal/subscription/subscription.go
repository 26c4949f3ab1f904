package subscription

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/srg/previewsim/internal/groutine"
)

// DefaultInterval is the emission period used when Start gets a non-positive interval
const DefaultInterval = 3 * time.Second

var (
	ErrInvalidSubscription = errors.New("invalid subscription")
	ErrRegistryClosed      = errors.New("subscription registry closed")
	ErrProducerPanicked    = errors.New("producer panicked")
)

// Key identifies one simulated event stream
type Key struct {
	Namespace string
	Event     string
}

func (k Key) String() string {
	return k.Namespace + "/" + k.Event
}

// Producer builds the next emission for a stream.
// An error (or panic) is a simulation bug: the stream is stopped.
type Producer func() (any, error)

// Listener receives emissions for a stream
type Listener func(value any)

// handle owns the ticker of one active stream; it never leaves the registry
type handle struct {
	key      Key
	id       uuid.UUID
	interval time.Duration
	ticker   clockwork.Ticker
	ctx      context.Context
	cancel   context.CancelFunc
	active   bool
}

// ----------------------------
// Registry
// ----------------------------

// Registry keeps at most one live simulated stream per Key.
//
// Starting a key that is already active replaces it: the old ticker is stopped
// before the new one is created, so repeated start/stop/start cycles never
// leave orphaned tickers. Listener calls are serialised across all keys.
type Registry struct {
	mu      sync.Mutex
	handles map[Key]*handle
	live    int
	closed  bool

	deliverMu sync.Mutex
	wg        sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	clock           clockwork.Clock
	defaultInterval time.Duration
	logger          *logrus.Logger
}

// Option configures a Registry
type Option func(*Registry)

// WithClock sets the clock the registry creates tickers from
func WithClock(clock clockwork.Clock) Option {
	return func(r *Registry) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithDefaultInterval sets the period used for non-positive Start intervals
func WithDefaultInterval(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.defaultInterval = d
		}
	}
}

// NewRegistry creates an empty registry
func NewRegistry(logger *logrus.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = logrus.New()
	}

	r := &Registry{
		handles:         make(map[Key]*handle),
		clock:           clockwork.NewRealClock(),
		defaultInterval: DefaultInterval,
		logger:          logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())
	return r
}

// Start begins emitting producer() to listener every interval for key.
// An active stream for the same key is cancelled first.
func (r *Registry) Start(key Key, interval time.Duration, producer Producer, listener Listener) error {
	if producer == nil || listener == nil {
		r.logger.WithField("key", key.String()).Warn("Subscription ignored: producer and listener are required")
		return fmt.Errorf("%w: %s: producer and listener are required", ErrInvalidSubscription, key)
	}
	if interval <= 0 {
		interval = r.defaultInterval
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegistryClosed
	}

	replaced := false
	if old, ok := r.handles[key]; ok {
		r.cancelLocked(old)
		replaced = true
	}

	h := &handle{
		key:      key,
		id:       uuid.New(),
		interval: interval,
		active:   true,
	}
	h.ctx, h.cancel = context.WithCancel(r.ctx)
	h.ticker = r.clock.NewTicker(interval)
	r.handles[key] = h
	r.live++
	r.wg.Add(1)
	r.mu.Unlock()

	r.logger.WithFields(logrus.Fields{
		"key":      key.String(),
		"id":       h.id.String(),
		"interval": interval,
		"replaced": replaced,
	}).Debug("Subscription started")

	groutine.Go(h.ctx, "subscription:"+key.String(), r.logger, func(ctx context.Context) {
		r.run(ctx, h, producer, listener)
	})
	return nil
}

// Stop cancels the stream for key. It reports whether a stream was active;
// stopping an unknown key is a no-op. Safe to call from inside a listener.
func (r *Registry) Stop(key Key) bool {
	r.mu.Lock()
	h, ok := r.handles[key]
	if ok {
		r.cancelLocked(h)
	}
	r.mu.Unlock()

	if ok {
		r.logger.WithFields(logrus.Fields{
			"key": key.String(),
			"id":  h.id.String(),
		}).Debug("Subscription stopped")
	}
	return ok
}

// StopAll cancels every active stream
func (r *Registry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, h := range r.handles {
		r.cancelLocked(h)
	}
}

// Wait blocks until every emitter goroutine has exited.
// Must not be called from a listener.
func (r *Registry) Wait() {
	r.logger.Debug("Waiting for subscription goroutines to complete...")
	r.wg.Wait()
	r.logger.Debug("All subscription goroutines completed")
}

// Close stops all streams, rejects further Start calls and waits for the
// emitters to exit. Must not be called from a listener.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	for _, h := range r.handles {
		r.cancelLocked(h)
	}
	r.mu.Unlock()

	r.cancel()
	r.Wait()
}

// Active reports whether key has a live stream
func (r *Registry) Active(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[key]
	return ok && h.active
}

// Keys returns the active keys, sorted
func (r *Registry) Keys() []Key {
	r.mu.Lock()
	keys := make([]Key, 0, len(r.handles))
	for k := range r.handles {
		keys = append(keys, k)
	}
	r.mu.Unlock()

	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

// Live returns the number of tickers currently running
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live
}

// cancelLocked stops h's ticker and forgets it. Callers hold r.mu.
func (r *Registry) cancelLocked(h *handle) {
	if !h.active {
		return
	}
	h.active = false
	h.ticker.Stop()
	h.cancel()
	r.live--
	if cur, ok := r.handles[h.key]; ok && cur == h {
		delete(r.handles, h.key)
	}
}

// stopHandle stops h only if it is still the registered handle for its key,
// so a failing emitter can never cancel its replacement.
func (r *Registry) stopHandle(h *handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.handles[h.key]; ok && cur == h {
		r.cancelLocked(h)
	}
}

func (r *Registry) run(ctx context.Context, h *handle, producer Producer, listener Listener) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.ticker.Chan():
			if !r.emit(ctx, h, producer, listener) {
				return
			}
		}
	}
}

// emit produces and delivers one emission. It returns false when the stream must end.
func (r *Registry) emit(ctx context.Context, h *handle, producer Producer, listener Listener) bool {
	r.deliverMu.Lock()
	defer r.deliverMu.Unlock()

	// Stopped while waiting for the delivery lock
	if ctx.Err() != nil {
		return false
	}

	value, err := produce(producer)
	if err != nil {
		r.logger.WithFields(logrus.Fields{
			"key":   h.key.String(),
			"id":    h.id.String(),
			"error": err,
		}).Error("Producer failed, stopping subscription")
		r.stopHandle(h)
		return false
	}

	r.deliver(h, listener, value)
	return true
}

func produce(producer Producer) (value any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrProducerPanicked, rec)
		}
	}()
	return producer()
}

// deliver calls the listener; a listener panic is logged and the stream continues
func (r *Registry) deliver(h *handle, listener Listener, value any) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.WithFields(logrus.Fields{
				"key":   h.key.String(),
				"id":    h.id.String(),
				"panic": fmt.Sprintf("%v", rec),
			}).Error("Subscription listener panicked")
		}
	}()
	listener(value)
}
