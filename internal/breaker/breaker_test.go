package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errLedgerDown = errors.New("ledger down")

// fakeClock lets tests drive the breaker's timers deterministically.
type fakeClock struct {
	current time.Time
}

func (c *fakeClock) now() time.Time {
	return c.current
}

func (c *fakeClock) advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func newTestBreaker(cfg Config) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{current: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}

	cb := New(cfg)
	cb.now = clock.now

	return cb, clock
}

func succeed() error { return nil }

func fail() error { return errLedgerDown }

func TestBreakerStartsClosed(t *testing.T) {
	cb, _ := newTestBreaker(DefaultConfig())

	require.Equal(t, StateClosed, cb.State())
	require.NoError(t, cb.Call(succeed))
}

func TestBreakerStaysClosedBelowMinimumCalls(t *testing.T) {
	cb, _ := newTestBreaker(DefaultConfig())

	// Four straight failures are under the five-call minimum.
	for i := 0; i < 4; i++ {
		require.ErrorIs(t, cb.Call(fail), errLedgerDown)
	}

	require.Equal(t, StateClosed, cb.State())
}

func TestBreakerOpensOnFailureRate(t *testing.T) {
	cb, _ := newTestBreaker(DefaultConfig())

	// 3 failures out of 5 calls is exactly the 60% threshold.
	require.NoError(t, cb.Call(succeed))
	require.NoError(t, cb.Call(succeed))
	require.ErrorIs(t, cb.Call(fail), errLedgerDown)
	require.ErrorIs(t, cb.Call(fail), errLedgerDown)
	require.ErrorIs(t, cb.Call(fail), errLedgerDown)

	require.Equal(t, StateOpen, cb.State())
	require.ErrorIs(t, cb.Call(succeed), ErrOpenState)
}

func TestBreakerStaysClosedBelowFailureRate(t *testing.T) {
	cb, _ := newTestBreaker(DefaultConfig())

	// 2 failures out of 5 calls is 40%, under the threshold.
	require.NoError(t, cb.Call(succeed))
	require.NoError(t, cb.Call(succeed))
	require.NoError(t, cb.Call(succeed))
	require.ErrorIs(t, cb.Call(fail), errLedgerDown)
	require.ErrorIs(t, cb.Call(fail), errLedgerDown)

	require.Equal(t, StateClosed, cb.State())
}

func TestBreakerOpensOnSlowCallRate(t *testing.T) {
	cb, clock := newTestBreaker(DefaultConfig())

	slow := func() error {
		clock.advance(6 * time.Second)
		return nil
	}

	// 3 slow calls out of 5 is 60%, over the 50% slow-call threshold.
	require.NoError(t, cb.Call(succeed))
	require.NoError(t, cb.Call(succeed))
	require.NoError(t, cb.Call(slow))
	require.NoError(t, cb.Call(slow))
	require.NoError(t, cb.Call(slow))

	require.Equal(t, StateOpen, cb.State())
}

func TestBreakerIgnoresBusinessErrors(t *testing.T) {
	errBusiness := errors.New("insufficient funds")

	cfg := DefaultConfig()
	cfg.IsBusiness = func(err error) bool { return errors.Is(err, errBusiness) }

	cb, _ := newTestBreaker(cfg)

	for i := 0; i < 20; i++ {
		require.ErrorIs(t, cb.Call(func() error { return errBusiness }), errBusiness)
	}

	require.Equal(t, StateClosed, cb.State())
	require.Zero(t, cb.Metrics().RecordedCalls)
}

func openBreaker(t *testing.T, cb *CircuitBreaker) {
	t.Helper()

	for i := 0; i < 5; i++ {
		require.ErrorIs(t, cb.Call(fail), errLedgerDown)
	}

	require.Equal(t, StateOpen, cb.State())
}

func TestBreakerRejectsWhileOpen(t *testing.T) {
	cb, clock := newTestBreaker(DefaultConfig())
	openBreaker(t, cb)

	clock.advance(29 * time.Second)

	called := false
	err := cb.Call(func() error {
		called = true
		return nil
	})

	require.ErrorIs(t, err, ErrOpenState)
	require.False(t, called)
	require.Equal(t, int64(1), cb.Metrics().NotPermitted)
}

func TestBreakerPermitsTrialCallExactlyAtTimeout(t *testing.T) {
	cb, clock := newTestBreaker(DefaultConfig())
	openBreaker(t, cb)

	clock.advance(30 * time.Second)

	require.NoError(t, cb.Call(succeed))
	require.Equal(t, StateHalfOpen, cb.State())
}

func TestBreakerClosesAfterHalfOpenSuccesses(t *testing.T) {
	cb, clock := newTestBreaker(DefaultConfig())
	openBreaker(t, cb)

	clock.advance(30 * time.Second)

	for i := 0; i < 3; i++ {
		require.NoError(t, cb.Call(succeed))
	}

	require.Equal(t, StateClosed, cb.State())
	require.NoError(t, cb.Call(succeed))
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	cb, clock := newTestBreaker(DefaultConfig())
	openBreaker(t, cb)

	clock.advance(30 * time.Second)

	require.NoError(t, cb.Call(succeed))
	require.ErrorIs(t, cb.Call(fail), errLedgerDown)

	require.Equal(t, StateOpen, cb.State())
	require.ErrorIs(t, cb.Call(succeed), ErrOpenState)
}

func TestBreakerLimitsHalfOpenPermits(t *testing.T) {
	cfg := DefaultConfig()
	cb, clock := newTestBreaker(cfg)
	openBreaker(t, cb)

	clock.advance(30 * time.Second)

	// Acquire all permits without completing the calls.
	cb.mu.Lock()
	cb.toHalfOpen()
	cb.halfOpenPermits = cfg.HalfOpenMaxCalls
	cb.mu.Unlock()

	require.ErrorIs(t, cb.Call(succeed), ErrOpenState)
}

func TestBreakerWindowResetsOnTransition(t *testing.T) {
	cb, clock := newTestBreaker(DefaultConfig())
	openBreaker(t, cb)

	clock.advance(30 * time.Second)

	for i := 0; i < 3; i++ {
		require.NoError(t, cb.Call(succeed))
	}

	require.Equal(t, StateClosed, cb.State())

	// One failure after closing must not reopen; the old window is gone.
	require.ErrorIs(t, cb.Call(fail), errLedgerDown)
	require.Equal(t, StateClosed, cb.State())
	require.Equal(t, 1, cb.Metrics().RecordedCalls)
}

func TestBreakerSlidingWindowEvictsOldOutcomes(t *testing.T) {
	cb, _ := newTestBreaker(DefaultConfig())

	// Fill the ten-slot window with failures interleaved under the
	// threshold, then push successes until the failures age out.
	require.ErrorIs(t, cb.Call(fail), errLedgerDown)
	require.ErrorIs(t, cb.Call(fail), errLedgerDown)

	for i := 0; i < 10; i++ {
		require.NoError(t, cb.Call(succeed))
	}

	m := cb.Metrics()
	require.Equal(t, 10, m.RecordedCalls)
	require.Zero(t, m.FailureRate)
}

func TestBreakerMetricsSnapshot(t *testing.T) {
	cb, _ := newTestBreaker(DefaultConfig())

	require.NoError(t, cb.Call(succeed))
	require.ErrorIs(t, cb.Call(fail), errLedgerDown)

	m := cb.Metrics()
	require.Equal(t, "CLOSED", m.State)
	require.Equal(t, 10, m.WindowSize)
	require.Equal(t, 2, m.RecordedCalls)
	require.InDelta(t, 0.5, m.FailureRate, 1e-9)
}
