package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned while the breaker is rejecting calls.
var ErrOpen = errors.New("circuit breaker open")

// State of the breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
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

// Config tunes when the breaker opens and how it probes recovery.
type Config struct {
	FailureThreshold int           // consecutive failures before opening
	SuccessThreshold int           // successes in half-open required to close
	Cooldown         time.Duration // open duration before the first probe
}

// DefaultConfig suits background polling against a meeting backend:
// open quickly, probe again within seconds so names recover fast once
// the backend does.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		Cooldown:         15 * time.Second,
	}
}

// Breaker guards a best-effort dependency. When the dependency keeps
// failing, calls short-circuit with ErrOpen instead of piling more
// requests onto it.
type Breaker struct {
	cfg Config

	mu           sync.Mutex
	state        State
	failures     int
	successes    int
	openedAt     time.Time
	onTransition func(from, to State)
}

// New creates a closed breaker.
func New(cfg Config) *Breaker {
	return &Breaker{cfg: cfg, state: StateClosed}
}

// OnTransition registers a hook called on every state change.
func (b *Breaker) OnTransition(fn func(from, to State)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onTransition = fn
}

// Do runs fn unless the breaker is open. The breaker's verdict wraps
// ErrOpen; fn's own error passes through unchanged.
func (b *Breaker) Do(fn func() error) error {
	if !b.allow() {
		return ErrOpen
	}

	err := fn()
	if err != nil {
		b.recordFailure()
		return err
	}
	b.recordSuccess()
	return nil
}

// State returns the current state, accounting for cooldown expiry.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && time.Since(b.openedAt) >= b.cfg.Cooldown {
		return StateHalfOpen
	}
	return b.state
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if time.Since(b.openedAt) >= b.cfg.Cooldown {
			b.transition(StateHalfOpen)
			return true
		}
		return false
	}
	return false
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		// The probe failed; back to a full cooldown.
		b.transition(StateOpen)
	case StateClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.transition(StateOpen)
		}
	}
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.transition(StateClosed)
		}
	case StateClosed:
		b.failures = 0
	}
}

// transition assumes b.mu is held.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.failures = 0
	b.successes = 0
	if to == StateOpen {
		b.openedAt = time.Now()
	}
	if b.onTransition != nil {
		b.onTransition(from, to)
	}
}
