package subscription_test

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/srg/previewsim/internal/subscription"
	"github.com/srg/previewsim/internal/testutils"
	"github.com/stretchr/testify/suite"
)

const tick = 3 * time.Second

var typeChange = subscription.Key{Namespace: "network", Event: "typeChange"}

type RegistryTestSuite struct {
	suite.Suite

	helper   *testutils.TestHelper
	clock    *testutils.CountingClock
	registry *subscription.Registry
}

func (s *RegistryTestSuite) SetupTest() {
	s.helper = testutils.NewTestHelper(s.T())
	s.clock = testutils.NewCountingClock()
	s.registry = subscription.NewRegistry(s.helper.Logger, subscription.WithClock(s.clock))
}

func (s *RegistryTestSuite) TearDownTest() {
	s.registry.Close()
	s.Equal(0, s.clock.LiveTickers(), "closing the registry MUST stop every ticker")
}

func counterProducer() subscription.Producer {
	var n atomic.Int64
	return func() (any, error) {
		return n.Add(1), nil
	}
}

// advance moves the fake clock by one period and waits until rec has seen want emissions
func (s *RegistryTestSuite) advance(rec *testutils.Recorder, want int) {
	s.clock.Advance(tick)
	s.Eventually(func() bool { return rec.Count() >= want }, time.Second, 2*time.Millisecond,
		"listener MUST receive %d emissions", want)
}

func (s *RegistryTestSuite) TestStart_ReplacesPreviousListener() {
	// GOAL: Verify re-subscribing the same key cancels the old ticker before the new one starts
	//
	// TEST SCENARIO: start(k, L1) → start(k, L2) → one tick → only L2 receives, exactly one live ticker

	l1, l2 := &testutils.Recorder{}, &testutils.Recorder{}
	producer := counterProducer()

	s.Require().NoError(s.registry.Start(typeChange, tick, producer, l1.Listen))
	s.Require().NoError(s.registry.Start(typeChange, tick, producer, l2.Listen))

	s.Equal(1, s.clock.LiveTickers(), "exactly one ticker MUST be live after re-subscribing")
	s.Equal(2, s.clock.CreatedTickers())
	s.Equal(1, s.registry.Live())
	s.Equal([]subscription.Key{typeChange}, s.registry.Keys())

	s.advance(l2, 1)
	s.advance(l2, 2)
	s.Equal(0, l1.Count(), "replaced listener MUST NOT receive emissions")
}

func (s *RegistryTestSuite) TestStartStartStop_LeavesNoTicker() {
	producer := counterProducer()
	rec := &testutils.Recorder{}

	s.Require().NoError(s.registry.Start(typeChange, tick, producer, rec.Listen))
	s.Require().NoError(s.registry.Start(typeChange, tick, producer, rec.Listen))
	s.LessOrEqual(s.clock.LiveTickers(), 1)

	s.True(s.registry.Stop(typeChange))
	s.Equal(0, s.clock.LiveTickers(), "stop MUST cancel the ticker")
	s.Equal(0, s.registry.Live())
	s.False(s.registry.Active(typeChange))
	s.Empty(s.registry.Keys())
}

func (s *RegistryTestSuite) TestStop_UnknownKeyIsNoop() {
	other := subscription.Key{Namespace: "bluetooth", Event: "BLEDeviceFind"}
	rec := &testutils.Recorder{}
	s.Require().NoError(s.registry.Start(other, tick, counterProducer(), rec.Listen))

	s.NotPanics(func() {
		s.False(s.registry.Stop(typeChange), "stopping an unknown key MUST report false")
		s.False(s.registry.Stop(typeChange), "repeated stop MUST stay a no-op")
	})

	s.Equal([]subscription.Key{other}, s.registry.Keys(), "unrelated state MUST be unchanged")
	s.Equal(1, s.clock.LiveTickers())
}

func (s *RegistryTestSuite) TestRoundTrip_FreshTimerAfterRestart() {
	first := &testutils.Recorder{}
	s.Require().NoError(s.registry.Start(typeChange, tick, counterProducer(), first.Listen))
	s.advance(first, 1)
	s.True(s.registry.Stop(typeChange))

	second := &testutils.Recorder{}
	s.Require().NoError(s.registry.Start(typeChange, tick, counterProducer(), second.Listen))
	s.Equal(1, s.clock.LiveTickers())

	s.advance(second, 1)
	s.Equal(int64(1), second.Values()[0], "restarted stream MUST start from a fresh producer")
	s.Equal(1, first.Count(), "stopped listener MUST NOT receive more emissions")
}

func (s *RegistryTestSuite) TestRepeatedCycles_NeverLeakTickers() {
	keys := []subscription.Key{
		typeChange,
		{Namespace: "bluetooth", Event: "BLEDeviceFind"},
		{Namespace: "bluetooth", Event: "stateChange"},
	}
	rec := &testutils.Recorder{}

	for i := 0; i < 50; i++ {
		k := keys[i%len(keys)]
		s.Require().NoError(s.registry.Start(k, tick, counterProducer(), rec.Listen))
		s.LessOrEqual(s.clock.LiveTickers(), len(s.registry.Keys()), "live tickers MUST never exceed active keys")
		if i%4 == 0 {
			s.registry.Stop(k)
		}
		s.LessOrEqual(s.clock.LiveTickers(), len(s.registry.Keys()), "live tickers MUST never exceed active keys")
	}

	s.registry.StopAll()
	s.Equal(0, s.clock.LiveTickers())
	s.Equal(0, s.registry.Live())
}

func (s *RegistryTestSuite) TestProducerError_StopsOnlyThatKey() {
	failing := subscription.Key{Namespace: "bluetooth", Event: "stateChange"}
	good := &testutils.Recorder{}
	bad := &testutils.Recorder{}

	s.Require().NoError(s.registry.Start(failing, tick, func() (any, error) {
		return nil, errors.New("payload missing")
	}, bad.Listen))
	s.Require().NoError(s.registry.Start(typeChange, tick, counterProducer(), good.Listen))

	s.advance(good, 1)
	s.Eventually(func() bool { return !s.registry.Active(failing) }, time.Second, 2*time.Millisecond,
		"failing stream MUST be stopped")
	s.True(s.registry.Active(typeChange), "healthy stream MUST keep running")
	s.Equal(0, bad.Count())
	s.Equal(1, s.clock.LiveTickers())

	s.advance(good, 2)
	s.Contains(s.helper.Capture.String(), "Producer failed, stopping subscription")
}

func (s *RegistryTestSuite) TestProducerPanic_IsContained() {
	rec := &testutils.Recorder{}
	s.Require().NoError(s.registry.Start(typeChange, tick, func() (any, error) {
		panic("corrupt mock table")
	}, rec.Listen))

	s.clock.Advance(tick)
	s.Eventually(func() bool { return !s.registry.Active(typeChange) }, time.Second, 2*time.Millisecond)
	s.Equal(0, rec.Count())
	s.Equal(0, s.clock.LiveTickers())
}

func (s *RegistryTestSuite) TestListenerPanic_StreamContinues() {
	var calls atomic.Int64
	s.Require().NoError(s.registry.Start(typeChange, tick, counterProducer(), func(any) {
		calls.Add(1)
		panic("listener bug")
	}))

	for want := int64(1); want <= 2; want++ {
		s.clock.Advance(tick)
		s.Eventually(func() bool { return calls.Load() >= want }, time.Second, 2*time.Millisecond)
	}
	s.True(s.registry.Active(typeChange))
}

func (s *RegistryTestSuite) TestStopFromInsideListener() {
	rec := &testutils.Recorder{}
	s.Require().NoError(s.registry.Start(typeChange, tick, counterProducer(), func(v any) {
		rec.Listen(v)
		s.registry.Stop(typeChange)
		s.registry.Stop(typeChange)
	}))

	s.advance(rec, 1)
	s.Eventually(func() bool { return !s.registry.Active(typeChange) }, time.Second, 2*time.Millisecond)

	s.clock.Advance(tick)
	time.Sleep(10 * time.Millisecond)
	s.Equal(1, rec.Count(), "no emission MUST follow a stop issued by the listener")
	s.Equal(0, s.clock.LiveTickers())
}

func (s *RegistryTestSuite) TestRestartFromInsideListener() {
	second := &testutils.Recorder{}
	first := &testutils.Recorder{}
	s.Require().NoError(s.registry.Start(typeChange, tick, counterProducer(), func(v any) {
		_ = s.registry.Start(typeChange, tick, counterProducer(), second.Listen)
		first.Listen(v)
	}))

	s.advance(first, 1)
	s.Equal(1, s.clock.LiveTickers())
	s.advance(second, 1)
	s.Equal(1, first.Count())
}

func (s *RegistryTestSuite) TestStart_RejectsMissingCallbacks() {
	err := s.registry.Start(typeChange, tick, nil, func(any) {})
	s.ErrorIs(err, subscription.ErrInvalidSubscription)

	err = s.registry.Start(typeChange, tick, counterProducer(), nil)
	s.ErrorIs(err, subscription.ErrInvalidSubscription)

	s.False(s.registry.Active(typeChange), "invalid start MUST NOT create a stream")
	s.Equal(0, s.clock.CreatedTickers())
}

func (s *RegistryTestSuite) TestStart_DefaultInterval() {
	rec := &testutils.Recorder{}
	s.Require().NoError(s.registry.Start(typeChange, 0, counterProducer(), rec.Listen))

	s.clock.Advance(subscription.DefaultInterval - time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	s.Equal(0, rec.Count(), "no emission MUST happen before the default interval")

	s.clock.Advance(time.Millisecond)
	s.Eventually(func() bool { return rec.Count() == 1 }, time.Second, 2*time.Millisecond)
}

func (s *RegistryTestSuite) TestClosedRegistry_RejectsStart() {
	s.registry.Close()
	err := s.registry.Start(typeChange, tick, counterProducer(), func(any) {})
	s.ErrorIs(err, subscription.ErrRegistryClosed)
	s.Equal(0, s.clock.LiveTickers())
}

func TestRegistryTestSuite(t *testing.T) {
	suite.Run(t, new(RegistryTestSuite))
}

func TestRegistry_RealClock(t *testing.T) {
	registry := subscription.NewRegistry(nil, subscription.WithDefaultInterval(5*time.Millisecond))
	defer registry.Close()

	keys := make([]subscription.Key, 3)
	recs := make([]*testutils.Recorder, 3)
	for i := range keys {
		keys[i] = subscription.Key{Namespace: "sensor", Event: fmt.Sprintf("e%d", i)}
		recs[i] = &testutils.Recorder{}
		if err := registry.Start(keys[i], 0, counterProducer(), recs[i].Listen); err != nil {
			t.Fatalf("start MUST succeed: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for _, rec := range recs {
		for rec.Count() < 2 {
			if time.Now().After(deadline) {
				t.Fatal("every stream MUST emit with the real clock")
			}
			time.Sleep(time.Millisecond)
		}
	}
}
