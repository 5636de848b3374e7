// Package circuitbreaker tracks the health of gateway endpoints and refuses
// calls to an endpoint that is failing. It never retries anything; it only
// makes an already-failing checkout fail fast instead of waiting on a
// transport timeout for every attempt.
package circuitbreaker

import (
	"sync"
	"time"
)

// State represents the state of the circuit for a single endpoint.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

// Config tunes the breaker. Zero values fall back to the defaults.
type Config struct {
	FailureThreshold    int           // consecutive failures before the circuit opens
	OpenTimeout         time.Duration // how long the circuit stays open before probing
	HalfOpenSuccesses   int           // successes in half-open needed to close again
}

const (
	defaultFailureThreshold  = 5
	defaultOpenTimeout       = 30 * time.Second
	defaultHalfOpenSuccesses = 2
)

type endpointState struct {
	state                State
	consecutiveFailures  int
	consecutiveSuccesses int
	openUntil            time.Time
}

// CircuitBreaker is a basic in-memory breaker keyed by endpoint host.
type CircuitBreaker struct {
	mu        sync.RWMutex
	endpoints map[string]*endpointState
	cfg       Config
}

// New creates a CircuitBreaker, filling in defaults for zero config values.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = defaultOpenTimeout
	}
	if cfg.HalfOpenSuccesses <= 0 {
		cfg.HalfOpenSuccesses = defaultHalfOpenSuccesses
	}
	return &CircuitBreaker{
		endpoints: make(map[string]*endpointState),
		cfg:       cfg,
	}
}

// caller must hold the write lock
func (cb *CircuitBreaker) getEndpointState(endpoint string) *endpointState {
	es, ok := cb.endpoints[endpoint]
	if !ok {
		es = &endpointState{state: Closed}
		cb.endpoints[endpoint] = es
	}
	return es
}

// Allow reports whether a call to the endpoint may proceed. While open it
// refuses until the open timeout elapses, then lets probe calls through in
// half-open state.
func (cb *CircuitBreaker) Allow(endpoint string) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	es := cb.getEndpointState(endpoint)
	switch es.state {
	case Closed:
		return true
	case Open:
		if time.Now().After(es.openUntil) {
			es.state = HalfOpen
			es.consecutiveSuccesses = 0
			return true
		}
		return false
	case HalfOpen:
		return true
	default:
		es.state = Closed
		return true
	}
}

// RecordFailure counts a failed call against the endpoint.
func (cb *CircuitBreaker) RecordFailure(endpoint string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	es := cb.getEndpointState(endpoint)
	switch es.state {
	case Closed:
		es.consecutiveFailures++
		if es.consecutiveFailures >= cb.cfg.FailureThreshold {
			es.state = Open
			es.openUntil = time.Now().Add(cb.cfg.OpenTimeout)
		}
	case HalfOpen:
		// probe failed, re-open immediately
		es.state = Open
		es.openUntil = time.Now().Add(cb.cfg.OpenTimeout)
		es.consecutiveFailures = 0
		es.consecutiveSuccesses = 0
	case Open:
	}
}

// RecordSuccess counts a successful call for the endpoint.
func (cb *CircuitBreaker) RecordSuccess(endpoint string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	es := cb.getEndpointState(endpoint)
	switch es.state {
	case Closed:
		es.consecutiveFailures = 0
	case HalfOpen:
		es.consecutiveSuccesses++
		if es.consecutiveSuccesses >= cb.cfg.HalfOpenSuccesses {
			es.state = Closed
			es.consecutiveFailures = 0
			es.consecutiveSuccesses = 0
		}
	case Open:
	}
}

// GetState returns the current circuit state for an endpoint without
// triggering any transition. Endpoints never seen report Closed.
func (cb *CircuitBreaker) GetState(endpoint string) State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	es, ok := cb.endpoints[endpoint]
	if !ok {
		return Closed
	}
	return es.state
}
