// Package facade is the surface mock API modules are written against.
//
// A Facade turns a raw invocation into a delivered result: it works out how the
// caller wants the result (trailing callback or promise), asks the Provider for
// the payload and hands it back exactly once. Namespaces add validated on/off
// event registration on top of a shared subscription.Registry.
package facade

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/srg/previewsim/internal/invoke"
	"github.com/srg/previewsim/internal/provider"
	"github.com/srg/previewsim/internal/subscription"
)

// Facade composes call-style resolution, payload production, argument
// validation and the subscription registry.
type Facade struct {
	provider provider.Provider
	registry *subscription.Registry
	journal  *Journal
	logger   *logrus.Logger

	mu         sync.Mutex
	namespaces map[string]*Namespace
}

// Option configures a Facade
type Option func(*Facade)

// WithJournal records every invocation into j
func WithJournal(j *Journal) Option {
	return func(f *Facade) {
		if j != nil {
			f.journal = j
		}
	}
}

// New creates a facade. A nil registry gets a private one with default settings.
func New(logger *logrus.Logger, p provider.Provider, registry *subscription.Registry, opts ...Option) *Facade {
	if logger == nil {
		logger = logrus.New()
	}
	if p == nil {
		p = provider.NewCatalog()
	}
	if registry == nil {
		registry = subscription.NewRegistry(logger)
	}

	f := &Facade{
		provider:   p,
		registry:   registry,
		logger:     logger,
		namespaces: make(map[string]*Namespace),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.journal == nil {
		f.journal, _ = NewJournal(DefaultJournalSize)
	}
	return f
}

// Call invokes api with args. When the last argument is a callback the result
// is passed to it and Call returns nil; otherwise the returned promise is
// already settled with the result.
func (f *Facade) Call(api string, args ...any) *invoke.Promise {
	mode, params := invoke.Resolve(args)

	f.logger.WithFields(logrus.Fields{
		"api":  api,
		"mode": mode.Kind.String(),
	}).Debugf("%s is mocked in the previewer", api)

	r := f.produce(api, params)

	f.journal.Record(Entry{API: api, Mode: mode.Kind, Err: r.Err})
	return invoke.DeliverSafe(f.logger, api, mode, r)
}

// produce asks the provider for a result; a panicking provider becomes a failed result
func (f *Facade) produce(api string, params []any) (r invoke.Result) {
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("%w: %s: %v", provider.ErrProducerFailed, api, rec)
			f.logger.WithFields(logrus.Fields{
				"api":   api,
				"error": err,
			}).Error("Mock provider panicked")
			r = invoke.Failure(err)
		}
	}()

	r = f.provider.Produce(api, params)
	if r.Err != nil {
		f.logger.WithFields(logrus.Fields{
			"api":   api,
			"error": r.Err,
		}).Debug("Mock API delivered a failure")
	}
	return r
}

// Namespace returns the namespace called name, creating it on first use
func (f *Facade) Namespace(name string) *Namespace {
	f.mu.Lock()
	defer f.mu.Unlock()

	if ns, ok := f.namespaces[name]; ok {
		return ns
	}
	ns := newNamespace(f, name)
	f.namespaces[name] = ns
	return ns
}

// Namespaces returns the names of every namespace created so far, sorted
func (f *Facade) Namespaces() []string {
	f.mu.Lock()
	names := make([]string, 0, len(f.namespaces))
	for name := range f.namespaces {
		names = append(names, name)
	}
	f.mu.Unlock()

	sort.Strings(names)
	return names
}

// Journal returns the invocation journal
func (f *Facade) Journal() *Journal {
	return f.journal
}

// Registry returns the subscription registry shared by every namespace
func (f *Facade) Registry() *subscription.Registry {
	return f.registry
}

// Logger returns the facade logger
func (f *Facade) Logger() *logrus.Logger {
	return f.logger
}

// Close stops every simulated stream and waits for the emitters to exit
func (f *Facade) Close() {
	f.registry.Close()
}
