package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Status is a consistent snapshot of a breaker.
type Status struct {
	Name                string    `json:"name"`
	State               State     `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastOpenedAt        time.Time `json:"last_opened_at,omitzero"`
}

// StateChange is emitted on every transition.
type StateChange struct {
	Name string
	From State
	To   State
	At   time.Time
}

// CircuitBreaker guards calls to a single dependency. It is safe for
// concurrent use.
type CircuitBreaker struct {
	mutex       sync.Mutex
	name        string
	options     Options
	current     phase
	subscribers []chan StateChange
}

// New returns a CLOSED breaker after validating options.
func New(name string, options Options) (*CircuitBreaker, error) {
	if err := options.Validate(); err != nil {
		return nil, fmt.Errorf("circuit breaker %q: %w", name, err)
	}

	if options.Clock == nil {
		options.Clock = time.Now
	}

	return &CircuitBreaker{
		name:    name,
		options: options,
		current: closed{},
	}, nil
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// State returns the current state without advancing it.
func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.current.state()
}

// Status returns state, failures and last open time read under one lock.
func (cb *CircuitBreaker) Status() Status {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	return Status{
		Name:                cb.name,
		State:               cb.current.state(),
		ConsecutiveFailures: cb.current.failures(),
		LastOpenedAt:        openedAt(cb.current),
	}
}

// Subscribe returns a channel receiving state changes. Delivery never blocks
// the calling path: when the channel is full the change is dropped for that
// subscriber.
func (cb *CircuitBreaker) Subscribe(buffer int) <-chan StateChange {
	ch := make(chan StateChange, buffer)

	cb.mutex.Lock()
	cb.subscribers = append(cb.subscribers, ch)
	cb.mutex.Unlock()

	return ch
}

// admit decides whether a call may run. trial is true for the single call
// that moved the breaker to HALF-OPEN.
func (cb *CircuitBreaker) admit() (allowed bool, trial bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	now := cb.options.Clock()

	switch p := cb.current.(type) {
	case closed:
		return true, false
	case open:
		if !p.elapsed(now, cb.options.ResetTimeout) {
			return false, false
		}
		cb.transition(p.probe(), now)
		return true, true
	case halfOpen:
		if p.trialInFlight {
			return false, false
		}
		cb.current = p.claim()
		return true, true
	default:
		return false, false
	}
}

// abandon releases a trial whose caller went away before the dependency
// answered. Nothing is counted.
func (cb *CircuitBreaker) abandon(trial bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if p, ok := cb.current.(halfOpen); ok && trial {
		cb.current = p.release()
	}
}

func (cb *CircuitBreaker) record(trial bool, err error) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	now := cb.options.Clock()

	switch p := cb.current.(type) {
	case closed:
		if err == nil {
			cb.current = p.succeed()
			return
		}
		cb.transition(p.fail(now, cb.options.MaxFailures), now)
	case halfOpen:
		// Calls admitted before the breaker opened do not decide the trial.
		if !trial {
			return
		}
		if err == nil {
			cb.transition(p.succeed(), now)
			return
		}
		cb.transition(p.fail(now), now)
	case open:
		// Late result from a call admitted while CLOSED; the breaker already tripped.
	}
}

// transition must be called with the mutex held.
func (cb *CircuitBreaker) transition(next phase, now time.Time) {
	from := cb.current.state()
	cb.current = next

	if from == next.state() {
		return
	}

	change := StateChange{Name: cb.name, From: from, To: next.state(), At: now}
	for _, ch := range cb.subscribers {
		select {
		case ch <- change:
		default:
		}
	}
}

func (cb *CircuitBreaker) shortCircuitError() error {
	return fmt.Errorf("%s: %w", cb.name, ErrShortCircuit)
}

// Execute runs op through the breaker. When the breaker is open op is not
// invoked. op runs with the breaker's call timeout; exceeding it is a failure.
// A call whose ctx is cancelled by the caller is not counted and returns
// ctx.Err() without fallback.
// If the breaker has FallbackOnFailure set and fallback is non-nil, any
// failure (short-circuit included) is replaced by fallback(err) and a nil error.
func Execute[T any](ctx context.Context, cb *CircuitBreaker, op func(context.Context) (T, error), fallback func(error) T) (T, error) {
	allowed, trial := cb.admit()
	if !allowed {
		return recoverWith(cb, ErrShortCircuit, cb.shortCircuitError(), fallback)
	}

	value, err := call(ctx, cb.options.CallTimeout, op)
	if err != nil && errors.Is(ctx.Err(), context.Canceled) {
		cb.abandon(trial)
		var zero T
		return zero, ctx.Err()
	}
	cb.record(trial, err)

	if err != nil {
		return recoverWith(cb, err, &CallError{Breaker: cb.name, Err: err}, fallback)
	}

	return value, nil
}

func recoverWith[T any](cb *CircuitBreaker, cause, wrapped error, fallback func(error) T) (T, error) {
	if cb.options.FallbackOnFailure && fallback != nil {
		return fallback(cause), nil
	}

	var zero T
	return zero, wrapped
}

func call[T any](ctx context.Context, timeout time.Duration, op func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}

	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("panic in protected call: %v", r)}
			}
		}()

		value, err := op(ctx)
		done <- result{value: value, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return r.value, ErrTimeout
		}
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, ErrTimeout
		}
		return zero, ctx.Err()
	}
}
