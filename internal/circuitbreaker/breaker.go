package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the externally visible breaker state of one route.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

type routeState struct {
	state               State
	consecutiveFailures int
	openedAt            time.Time
}

// CircuitBreaker tracks consecutive failures per collector route. A route
// opens after threshold failures, lets one probe through after cooldown and
// closes again on the first success.
type CircuitBreaker struct {
	mu        sync.Mutex
	states    map[string]*routeState
	threshold int
	cooldown  time.Duration
	clock     clock.Clock
}

func New(threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		states:    make(map[string]*routeState),
		threshold: threshold,
		cooldown:  cooldown,
		clock:     clock.New(),
	}
}

// WithClock replaces the wall clock, for tests.
func (cb *CircuitBreaker) WithClock(c clock.Clock) *CircuitBreaker {
	cb.clock = c
	return cb
}

func (cb *CircuitBreaker) Allow(route string) error {
	if cb == nil {
		return nil
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.states[route]
	if !ok {
		return nil
	}

	switch s.state {
	case StateOpen:
		if cb.clock.Since(s.openedAt) >= cb.cooldown {
			s.state = StateHalfOpen
			return nil
		}
		return ErrCircuitOpen
	case StateHalfOpen:
		return ErrCircuitOpen
	default:
		return nil
	}
}

func (cb *CircuitBreaker) RecordSuccess(route string) {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.states[route]
	if !ok {
		return
	}
	s.state = StateClosed
	s.consecutiveFailures = 0
}

func (cb *CircuitBreaker) RecordFailure(route string) {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.states[route]
	if !ok {
		s = &routeState{state: StateClosed}
		cb.states[route] = s
	}

	s.consecutiveFailures++
	if s.state == StateHalfOpen || s.consecutiveFailures >= cb.threshold {
		s.state = StateOpen
		s.openedAt = cb.clock.Now()
	}
}

// States returns the current state of every route that has seen a failure.
func (cb *CircuitBreaker) States() map[string]State {
	out := make(map[string]State)
	if cb == nil {
		return out
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	for route, s := range cb.states {
		out[route] = s.state
	}
	return out
}
