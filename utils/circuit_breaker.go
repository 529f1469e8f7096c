package utils

import (
	"errors"
	"sync"
	"time"
)

// CircuitBreaker guards calls to an external collaborator (the delivery
// publisher). It never guards the storage-level invariants; those rely
// on conditional updates, not on anything in this file.
type CircuitBreaker struct {
	name         string
	maxRequests  uint32
	interval     time.Duration
	timeout      time.Duration
	failureRatio float64

	mutex  sync.Mutex
	state  State
	counts Counts
	expiry time.Time
}

type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

var ErrBreakerOpen = errors.New("circuit breaker is open")

func NewCircuitBreaker(name string) *CircuitBreaker {
	return &CircuitBreaker{
		name:         name,
		maxRequests:  100,
		interval:     60 * time.Second,
		timeout:      60 * time.Second,
		failureRatio: 0.6,
		state:        StateClosed,
	}
}

// Execute runs req unless the breaker is open.
func (cb *CircuitBreaker) Execute(req func() error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := req()
	cb.afterRequest(err == nil)
	return err
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	state := cb.currentState(time.Now())

	if state == StateOpen {
		return ErrBreakerOpen
	} else if state == StateHalfOpen && cb.counts.Requests >= cb.maxRequests {
		return errors.New("too many requests when circuit breaker is half open")
	}

	cb.counts.Requests++
	return nil
}

func (cb *CircuitBreaker) afterRequest(success bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	state := cb.currentState(time.Now())

	if success {
		cb.onSuccess(state)
	} else {
		cb.onFailure()
	}
}

func (cb *CircuitBreaker) onSuccess(state State) {
	cb.counts.TotalSuccesses++
	cb.counts.ConsecutiveSuccesses++
	cb.counts.ConsecutiveFailures = 0

	if state == StateHalfOpen {
		cb.state = StateClosed
		cb.counts = Counts{}
	}
}

func (cb *CircuitBreaker) onFailure() {
	cb.counts.TotalFailures++
	cb.counts.ConsecutiveFailures++
	cb.counts.ConsecutiveSuccesses = 0

	if cb.readyToTrip() {
		cb.state = StateOpen
		cb.expiry = time.Now().Add(cb.timeout)
	}
}

func (cb *CircuitBreaker) readyToTrip() bool {
	return cb.counts.Requests >= cb.maxRequests &&
		float64(cb.counts.TotalFailures)/float64(cb.counts.Requests) >= cb.failureRatio
}

func (cb *CircuitBreaker) currentState(now time.Time) State {
	switch cb.state {
	case StateClosed:
		if !cb.expiry.IsZero() && cb.expiry.Before(now) {
			cb.counts = Counts{}
			cb.expiry = now.Add(cb.interval)
		}
	case StateOpen:
		if cb.expiry.Before(now) {
			cb.state = StateHalfOpen
			cb.counts = Counts{}
		}
	}
	return cb.state
}
