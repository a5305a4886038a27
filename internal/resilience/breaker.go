package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned while the breaker is rejecting calls.
var ErrOpen = errors.New("circuit breaker is open")

// State represents the breaker state
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String returns the string representation of the state
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

// Settings configures breaker behavior.
type Settings struct {
	// FailureThreshold is the consecutive-failure count that trips the breaker.
	FailureThreshold int
	// Cooldown is how long the breaker stays open before probing again.
	Cooldown time.Duration
}

// Breaker rejects calls to a failing collaborator until it recovers.
// After FailureThreshold consecutive failures the breaker opens; once
// Cooldown elapses a single probe call is let through, and its outcome
// decides between closing and re-opening.
type Breaker struct {
	name     string
	settings Settings

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
}

// New creates a breaker with the given settings.
func New(name string, settings Settings) *Breaker {
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = 5
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = 30 * time.Second
	}
	return &Breaker{name: name, settings: settings}
}

// Name returns the breaker name.
func (b *Breaker) Name() string { return b.name }

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.observe()
}

// Do runs fn if the breaker admits the call, recording its outcome.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	state := b.observe()
	if state == StateOpen {
		b.mu.Unlock()
		return ErrOpen
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.settings.FailureThreshold {
			b.state = StateOpen
			b.openedAt = time.Now()
		}
		return err
	}
	b.state = StateClosed
	b.failures = 0
	return nil
}

// observe advances open→half-open after the cooldown. Caller holds mu.
func (b *Breaker) observe() State {
	if b.state == StateOpen && time.Since(b.openedAt) >= b.settings.Cooldown {
		b.state = StateHalfOpen
	}
	return b.state
}
