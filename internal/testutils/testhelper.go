package testutils

import (
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
)

type TestHelper struct {
	T       *testing.T
	Logger  *logrus.Logger
	Capture *LogCapture
}

// NewTestHelper creates a test helper with a captured debug logger.
func NewTestHelper(t *testing.T) *TestHelper {
	logger, capture := NewCapturedLogger()
	return &TestHelper{
		T:       t,
		Logger:  logger,
		Capture: capture,
	}
}

// Recorder collects emissions delivered to a listener; safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	values []any
}

// Listen is a subscription listener that records every value
func (r *Recorder) Listen(value any) {
	r.mu.Lock()
	r.values = append(r.values, value)
	r.mu.Unlock()
}

// Count returns the number of recorded values
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.values)
}

// Values returns a copy of the recorded values
func (r *Recorder) Values() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]any, len(r.values))
	copy(out, r.values)
	return out
}
