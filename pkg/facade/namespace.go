package facade

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/previewsim/internal/guard"
	"github.com/srg/previewsim/internal/invoke"
	"github.com/srg/previewsim/internal/subscription"
)

// EventSpec describes one simulated event of a namespace.
// A nil Producer falls back to the facade provider, asked for "<namespace>.<event>".
type EventSpec struct {
	Interval time.Duration
	Producer subscription.Producer
}

// Namespace groups the APIs and events of one mocked module, e.g. "bluetooth"
type Namespace struct {
	facade *Facade
	name   string

	mu          sync.RWMutex
	events      map[string]EventSpec
	order       []string
	withOptions bool
}

func newNamespace(f *Facade, name string) *Namespace {
	return &Namespace{
		facade: f,
		name:   name,
		events: make(map[string]EventSpec),
	}
}

// Name returns the namespace name
func (n *Namespace) Name() string {
	return n.name
}

// Event declares a subscribable event; redeclaring replaces the previous declaration
func (n *Namespace) Event(name string, spec EventSpec) *Namespace {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.events[name]; !ok {
		n.order = append(n.order, name)
	}
	n.events[name] = spec
	return n
}

// WithOptions switches on() to the on(event, options, listener) form
func (n *Namespace) WithOptions() *Namespace {
	n.mu.Lock()
	n.withOptions = true
	n.mu.Unlock()
	return n
}

// Events returns the declared event names in declaration order
func (n *Namespace) Events() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]string(nil), n.order...)
}

// Call invokes "<namespace>.<api>" through the facade
func (n *Namespace) Call(api string, args ...any) *invoke.Promise {
	return n.facade.Call(n.name+"."+api, args...)
}

// On registers the trailing listener for an event. Invalid arguments are
// reported as a warning and leave every subscription untouched.
//
// An "interval" entry in the options object (milliseconds) overrides the
// event's emission period.
func (n *Namespace) On(args ...any) bool {
	n.mu.RLock()
	schema := guard.OnSchema(n.name+".on", n.order...)
	if n.withOptions {
		schema = guard.OnWithOptionsSchema(n.name+".on", n.order...)
	}
	n.mu.RUnlock()

	if !guard.Report(n.facade.logger, guard.Validate(args, schema)) {
		return false
	}

	event := args[0].(string)
	listener, _ := invoke.AsListener(args[len(args)-1])

	var interval time.Duration
	if len(args) == 3 {
		var err error
		if interval, err = intervalOption(args[1]); err != nil {
			n.facade.logger.WithFields(logrus.Fields{
				"namespace": n.name,
				"event":     event,
				"error":     err,
			}).Warn("Invalid options for simulated event")
			return false
		}
	}
	return n.start(event, interval, listener)
}

// Off cancels the stream of an event. A trailing listener is accepted and ignored;
// turning off an event that is not running is a no-op.
func (n *Namespace) Off(args ...any) bool {
	n.mu.RLock()
	schema := guard.OffSchema(n.name+".off", n.order...)
	n.mu.RUnlock()

	if !guard.Report(n.facade.logger, guard.Validate(args, schema)) {
		return false
	}

	n.stop(args[0].(string))
	return true
}

// Subscribe is the legacy subscribe(event, listener) form of On
func (n *Namespace) Subscribe(event string, listener any) bool {
	return n.SubscribeEvery(event, 0, listener)
}

// SubscribeEvery is Subscribe with an explicit emission period; zero keeps the event's own
func (n *Namespace) SubscribeEvery(event string, interval time.Duration, listener any) bool {
	schema := guard.OnSchema(n.name+".subscribe", n.Events()...)
	if !guard.Report(n.facade.logger, guard.Validate([]any{event, listener}, schema)) {
		return false
	}
	l, _ := invoke.AsListener(listener)
	return n.start(event, interval, l)
}

// Unsubscribe is the legacy unsubscribe(event) form of Off
func (n *Namespace) Unsubscribe(event string) bool {
	return n.Off(event)
}

// Active reports whether event currently has a running stream
func (n *Namespace) Active(event string) bool {
	return n.facade.registry.Active(n.key(event))
}

func (n *Namespace) key(event string) subscription.Key {
	return subscription.Key{Namespace: n.name, Event: event}
}

func (n *Namespace) start(event string, interval time.Duration, listener invoke.Listener) bool {
	n.mu.RLock()
	spec, ok := n.events[event]
	n.mu.RUnlock()
	if !ok {
		n.facade.logger.WithFields(logrus.Fields{
			"namespace": n.name,
			"event":     event,
		}).Warn("Event is not simulated by this namespace")
		return false
	}

	if interval <= 0 {
		interval = spec.Interval
	}
	producer := spec.Producer
	if producer == nil {
		producer = n.providerProducer(event)
	}

	err := n.facade.registry.Start(n.key(event), interval, producer, subscription.Listener(listener))
	if err != nil {
		n.facade.logger.WithFields(logrus.Fields{
			"namespace": n.name,
			"event":     event,
			"error":     err,
		}).Warn("Failed to start simulated event")
		return false
	}
	return true
}

func (n *Namespace) stop(event string) {
	if !n.facade.registry.Stop(n.key(event)) {
		n.facade.logger.WithFields(logrus.Fields{
			"namespace": n.name,
			"event":     event,
		}).Debug("Event was not subscribed")
	}
}

// providerProducer emits whatever the facade provider returns for "<namespace>.<event>"
func (n *Namespace) providerProducer(event string) subscription.Producer {
	api := n.name + "." + event
	return func() (any, error) {
		r := n.facade.produce(api, nil)
		return r.Value, r.Err
	}
}

// ErrInvalidOption is returned for an options map on() cannot honor
var ErrInvalidOption = errors.New("invalid event option")

// maxIntervalMillis is the largest millisecond count a time.Duration can hold
const maxIntervalMillis = math.MaxInt64 / int64(time.Millisecond)

// intervalOption reads an "interval" entry (milliseconds or time.Duration) from
// an options map. A missing or non-positive interval keeps the event's own period.
func intervalOption(opts any) (time.Duration, error) {
	rv := reflect.ValueOf(opts)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return 0, fmt.Errorf("%w: options must be a map, got %T", ErrInvalidOption, opts)
	}
	entry := rv.MapIndex(reflect.ValueOf("interval").Convert(rv.Type().Key()))
	if !entry.IsValid() {
		return 0, nil
	}

	switch v := entry.Interface().(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return max(v, 0), nil
	case int:
		return millis(int64(v))
	case int64:
		return millis(v)
	case float64:
		if math.IsNaN(v) || v > float64(maxIntervalMillis) {
			return 0, fmt.Errorf("%w: interval %v out of range", ErrInvalidOption, v)
		}
		if v <= 0 {
			return 0, nil
		}
		return time.Duration(v * float64(time.Millisecond)), nil
	default:
		return 0, fmt.Errorf("%w: interval must be a number, got %T", ErrInvalidOption, v)
	}
}

func millis(v int64) (time.Duration, error) {
	if v > maxIntervalMillis {
		return 0, fmt.Errorf("%w: interval %d out of range", ErrInvalidOption, v)
	}
	if v <= 0 {
		return 0, nil
	}
	return time.Duration(v) * time.Millisecond, nil
}
