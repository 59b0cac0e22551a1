// Package resilience provides the circuit breaker that guards calls to
// external market data providers.
package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// State represents the state of a circuit breaker.
type State int

const (
	// StateClosed is the normal operating state, calls flow through.
	StateClosed State = iota
	// StateOpen means too many failures, calls are rejected immediately.
	StateOpen
	// StateHalfOpen allows a single probe call to test recovery.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned when a call is rejected because the circuit is open.
var ErrOpen = eris.New("circuit breaker is open")

// BreakerConfig controls breaker behavior.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before the
	// circuit opens. Default: 5.
	FailureThreshold int

	// ResetTimeout is how long the circuit stays open before allowing a
	// half-open probe. Default: 30s.
	ResetTimeout time.Duration

	// ShouldTrip decides whether an error counts toward the failure
	// threshold. Nil counts every non-nil error.
	ShouldTrip func(err error) bool
}

// Breaker implements the circuit breaker pattern for a single provider.
type Breaker struct {
	cfg BreakerConfig

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	lastFailureTime     time.Time

	nowFunc func() time.Time
}

// NewBreaker creates a breaker with the given config.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &Breaker{
		cfg:     cfg,
		state:   StateClosed,
		nowFunc: time.Now,
	}
}

// Allow reports whether a call may proceed. In the open state it permits a
// single probe once the reset timeout has elapsed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.nowFunc().Sub(b.lastFailureTime) >= b.cfg.ResetTimeout {
			b.state = StateHalfOpen
			return true
		}
		return false
	}
	return true
}

// Record feeds a call outcome into the breaker.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	trip := b.cfg.ShouldTrip
	if trip == nil {
		trip = func(e error) bool { return e != nil }
	}

	if err == nil || !trip(err) {
		b.state = StateClosed
		b.consecutiveFailures = 0
		return
	}

	b.consecutiveFailures++
	b.lastFailureTime = b.nowFunc()
	if b.state == StateHalfOpen || b.consecutiveFailures >= b.cfg.FailureThreshold {
		b.state = StateOpen
	}
}

// State returns the current circuit state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.nowFunc().Sub(b.lastFailureTime) >= b.cfg.ResetTimeout {
		return StateHalfOpen
	}
	return b.state
}

// Reset forces the circuit back to closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.consecutiveFailures = 0
}
