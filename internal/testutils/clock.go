package testutils

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// FakeClock is the subset of clockwork's fake clock the suites drive
type FakeClock interface {
	clockwork.Clock
	Advance(d time.Duration)
}

// CountingClock is a fake clock that tracks how many tickers are live,
// i.e. created and not yet stopped.
type CountingClock struct {
	FakeClock

	live    atomic.Int64
	created atomic.Int64
}

// NewCountingClock wraps a fresh clockwork fake clock
func NewCountingClock() *CountingClock {
	return &CountingClock{FakeClock: clockwork.NewFakeClock()}
}

// NewTicker creates a fake ticker and counts it as live until stopped
func (c *CountingClock) NewTicker(d time.Duration) clockwork.Ticker {
	c.live.Add(1)
	c.created.Add(1)
	return &countingTicker{Ticker: c.FakeClock.NewTicker(d), live: &c.live}
}

// LiveTickers returns the number of tickers not yet stopped
func (c *CountingClock) LiveTickers() int {
	return int(c.live.Load())
}

// CreatedTickers returns the number of tickers ever created
func (c *CountingClock) CreatedTickers() int {
	return int(c.created.Load())
}

type countingTicker struct {
	clockwork.Ticker
	once sync.Once
	live *atomic.Int64
}

func (t *countingTicker) Stop() {
	t.once.Do(func() { t.live.Add(-1) })
	t.Ticker.Stop()
}
