package errors

import (
	"errors"
	"sync"
	"time"
)

type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

var (
	ErrCircuitOpen             = errors.New("circuit breaker is open")
	ErrHalfOpenTooManyRequests = errors.New("too many requests in half-open")
)

// BreakerSettings tunes when the breaker trips and how it recovers.
type BreakerSettings struct {
	ErrorThreshold      float64
	MinRequests         int
	OpenTimeout         time.Duration
	HalfOpenMaxRequests int
	// IsFailure decides which errors count against the breaker; nil counts every error.
	IsFailure func(error) bool
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		ErrorThreshold:      0.5,
		MinRequests:         10,
		OpenTimeout:         30 * time.Second,
		HalfOpenMaxRequests: 3,
	}
}

type CircuitBreaker struct {
	mu              sync.Mutex
	settings        BreakerSettings
	state           BreakerState
	failures        int
	successes       int
	requests        int
	inFlight        int
	lastFailureTime time.Time
	now             func() time.Time
}

func NewCircuitBreaker(settings BreakerSettings) *CircuitBreaker {
	defaults := DefaultBreakerSettings()
	if settings.ErrorThreshold <= 0 {
		settings.ErrorThreshold = defaults.ErrorThreshold
	}
	if settings.MinRequests <= 0 {
		settings.MinRequests = defaults.MinRequests
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = defaults.OpenTimeout
	}
	if settings.HalfOpenMaxRequests <= 0 {
		settings.HalfOpenMaxRequests = defaults.HalfOpenMaxRequests
	}

	return &CircuitBreaker{
		settings: settings,
		state:    BreakerClosed,
		now:      time.Now,
	}
}

// Call runs fn unless the breaker is open. Errors that do not count as failures are
// returned as-is and recorded as successes.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if fn == nil {
		return nil
	}

	cb.mu.Lock()
	if cb.state == BreakerOpen {
		if cb.now().Sub(cb.lastFailureTime) < cb.settings.OpenTimeout {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.state = BreakerHalfOpen
		cb.resetCountersLocked()
	}

	if cb.state == BreakerHalfOpen && cb.requests+cb.inFlight >= cb.settings.HalfOpenMaxRequests {
		cb.mu.Unlock()
		return ErrHalfOpenTooManyRequests
	}
	cb.inFlight++
	cb.mu.Unlock()

	callErr := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.inFlight--
	cb.requests++

	if callErr != nil && cb.countsAsFailure(callErr) {
		cb.failures++
		if cb.state == BreakerHalfOpen {
			cb.tripLocked()
		} else {
			cb.evaluateLocked()
		}
		return callErr
	}

	cb.successes++
	if cb.state == BreakerHalfOpen && cb.successes >= cb.settings.HalfOpenMaxRequests {
		cb.state = BreakerClosed
		cb.resetCountersLocked()
	}

	return callErr
}

func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) countsAsFailure(err error) bool {
	if cb.settings.IsFailure == nil {
		return true
	}
	return cb.settings.IsFailure(err)
}

func (cb *CircuitBreaker) evaluateLocked() {
	if cb.requests < cb.settings.MinRequests {
		return
	}

	if float64(cb.failures)/float64(cb.requests) >= cb.settings.ErrorThreshold {
		cb.tripLocked()
	}
}

func (cb *CircuitBreaker) resetCountersLocked() {
	cb.failures = 0
	cb.successes = 0
	cb.requests = 0
}

func (cb *CircuitBreaker) tripLocked() {
	cb.state = BreakerOpen
	cb.lastFailureTime = cb.now()
	cb.resetCountersLocked()
}
