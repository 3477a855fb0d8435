// Package breaker provides a count-based sliding-window circuit breaker
// guarding the orchestrator's outbound ledger calls.
package breaker

import (
	"errors"
	"sync"
	"time"
)

// State is the breaker's position in its CLOSED/OPEN/HALF_OPEN cycle.
type State int

// Breaker states.
const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// ErrOpenState is returned when a call is rejected without reaching the
// downstream because the breaker is OPEN (or out of half-open permits).
var ErrOpenState = errors.New("circuit breaker is open")

// Config holds the breaker's thresholds.
type Config struct {
	// WindowSize is the number of most recent outcomes considered.
	WindowSize int
	// MinimumCalls gates rate evaluation until enough outcomes exist.
	MinimumCalls int
	// FailureRateThreshold opens the breaker when reached (0..1].
	FailureRateThreshold float64
	// SlowCallRateThreshold opens the breaker when reached (0..1].
	SlowCallRateThreshold float64
	// SlowCallDuration marks a call slow at or beyond this duration.
	SlowCallDuration time.Duration
	// OpenTimeout is the wait before OPEN transitions to HALF_OPEN.
	OpenTimeout time.Duration
	// HalfOpenMaxCalls bounds the trial calls permitted in HALF_OPEN.
	HalfOpenMaxCalls int
	// IsBusiness classifies errors that must not count toward the
	// failure rate; they indicate a bad caller, not a bad dependency.
	IsBusiness func(error) bool
}

// DefaultConfig mirrors the ledger-service breaker settings.
func DefaultConfig() Config {
	return Config{
		WindowSize:            10,
		MinimumCalls:          5,
		FailureRateThreshold:  0.6,
		SlowCallRateThreshold: 0.5,
		SlowCallDuration:      5 * time.Second,
		OpenTimeout:           30 * time.Second,
		HalfOpenMaxCalls:      3,
	}
}

type outcome struct {
	failure bool
	slow    bool
}

// CircuitBreaker is an explicit state machine around a guarded call.
// All state lives behind one mutex; callers invoke Call directly rather
// than going through any proxying layer.
type CircuitBreaker struct {
	mu  sync.Mutex
	cfg Config

	state  State
	window []outcome
	size   int
	next   int

	halfOpenPermits   int
	halfOpenSuccesses int

	openedAt time.Time

	notPermitted int64

	now func() time.Time
}

// New returns a CLOSED breaker with the given config.
func New(cfg Config) *CircuitBreaker {
	if cfg.IsBusiness == nil {
		cfg.IsBusiness = func(error) bool { return false }
	}

	return &CircuitBreaker{
		cfg:    cfg,
		window: make([]outcome, cfg.WindowSize),
		now:    time.Now,
	}
}

// Call runs fn under the breaker. When the breaker rejects the call,
// ErrOpenState is returned and fn is never invoked; otherwise fn's error
// is returned as is after its outcome is recorded.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if err := cb.acquire(); err != nil {
		return err
	}

	start := cb.now()
	err := fn()
	elapsed := cb.now().Sub(start)

	cb.record(err, elapsed)

	return err
}

func (cb *CircuitBreaker) acquire() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cfg.OpenTimeout {
			cb.notPermitted++
			return ErrOpenState
		}

		cb.toHalfOpen()

		fallthrough
	case StateHalfOpen:
		if cb.halfOpenPermits >= cb.cfg.HalfOpenMaxCalls {
			cb.notPermitted++
			return ErrOpenState
		}

		cb.halfOpenPermits++

		return nil
	}

	return nil
}

func (cb *CircuitBreaker) record(err error, elapsed time.Duration) {
	// Business failures say nothing about the dependency's health.
	if err != nil && cb.cfg.IsBusiness(err) {
		cb.mu.Lock()
		if cb.state == StateHalfOpen && cb.halfOpenPermits > 0 {
			cb.halfOpenPermits--
		}
		cb.mu.Unlock()

		return
	}

	failure := err != nil
	slow := elapsed >= cb.cfg.SlowCallDuration

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.push(outcome{failure: failure, slow: slow})
		cb.evaluate()
	case StateHalfOpen:
		if failure {
			cb.toOpen()
			return
		}

		cb.halfOpenSuccesses++
		if cb.halfOpenSuccesses >= cb.cfg.HalfOpenMaxCalls {
			cb.toClosed()
		}
	case StateOpen:
		// A call admitted before the transition finished; its outcome is
		// irrelevant while the breaker waits out the open timeout.
	}
}

func (cb *CircuitBreaker) push(o outcome) {
	cb.window[cb.next] = o
	cb.next = (cb.next + 1) % cb.cfg.WindowSize

	if cb.size < cb.cfg.WindowSize {
		cb.size++
	}
}

func (cb *CircuitBreaker) evaluate() {
	if cb.size < cb.cfg.MinimumCalls {
		return
	}

	var failures, slows int

	for i := 0; i < cb.size; i++ {
		if cb.window[i].failure {
			failures++
		}

		if cb.window[i].slow {
			slows++
		}
	}

	failureRate := float64(failures) / float64(cb.size)
	slowRate := float64(slows) / float64(cb.size)

	if failureRate >= cb.cfg.FailureRateThreshold || slowRate >= cb.cfg.SlowCallRateThreshold {
		cb.toOpen()
	}
}

func (cb *CircuitBreaker) toOpen() {
	cb.state = StateOpen
	cb.openedAt = cb.now()
	cb.resetWindow()
}

func (cb *CircuitBreaker) toHalfOpen() {
	cb.state = StateHalfOpen
	cb.halfOpenPermits = 0
	cb.halfOpenSuccesses = 0
}

func (cb *CircuitBreaker) toClosed() {
	cb.state = StateClosed
	cb.resetWindow()
}

func (cb *CircuitBreaker) resetWindow() {
	for i := range cb.window {
		cb.window[i] = outcome{}
	}

	cb.size = 0
	cb.next = 0
}

// State returns the current state, promoting OPEN to HALF_OPEN once the
// open timeout has elapsed so observers see what the next call would.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.cfg.OpenTimeout {
		cb.toHalfOpen()
	}

	return cb.state
}

// Metrics is a point-in-time snapshot of the breaker's accounting.
type Metrics struct {
	State           string  `json:"state"`
	WindowSize      int     `json:"window_size"`
	RecordedCalls   int     `json:"recorded_calls"`
	FailureRate     float64 `json:"failure_rate"`
	SlowCallRate    float64 `json:"slow_call_rate"`
	NotPermitted    int64   `json:"not_permitted_calls"`
	HalfOpenPermits int     `json:"half_open_permits"`
}

// Metrics returns a snapshot for monitoring endpoints and tests.
func (cb *CircuitBreaker) Metrics() Metrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	var failures, slows int

	for i := 0; i < cb.size; i++ {
		if cb.window[i].failure {
			failures++
		}

		if cb.window[i].slow {
			slows++
		}
	}

	m := Metrics{
		State:           cb.state.String(),
		WindowSize:      cb.cfg.WindowSize,
		RecordedCalls:   cb.size,
		NotPermitted:    cb.notPermitted,
		HalfOpenPermits: cb.halfOpenPermits,
	}

	if cb.size > 0 {
		m.FailureRate = float64(failures) / float64(cb.size)
		m.SlowCallRate = float64(slows) / float64(cb.size)
	}

	return m
}
