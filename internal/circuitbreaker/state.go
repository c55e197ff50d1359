package circuitbreaker

import "time"

// State is the breaker state reported to callers and health checks.
type State int

const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Short-circuiting calls
	StateHalfOpen              // One trial call in flight
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// phase is the breaker's state together with the data that is only valid in
// that state. Moving between phases goes through the transition methods below.
type phase interface {
	state() State
	failures() int
}

type closed struct {
	consecutiveFailures int
}

type open struct {
	consecutiveFailures int
	openedAt            time.Time
}

// halfOpen admits a single trial call. The trial is released without a
// verdict when its caller goes away.
type halfOpen struct {
	consecutiveFailures int
	openedAt            time.Time
	trialInFlight       bool
}

func (closed) state() State   { return StateClosed }
func (open) state() State     { return StateOpen }
func (halfOpen) state() State { return StateHalfOpen }

func (c closed) failures() int   { return c.consecutiveFailures }
func (o open) failures() int     { return o.consecutiveFailures }
func (h halfOpen) failures() int { return h.consecutiveFailures }

func (c closed) succeed() closed {
	return closed{}
}

func (c closed) fail(now time.Time, maxFailures int) phase {
	failures := c.consecutiveFailures + 1
	if failures >= maxFailures {
		return open{consecutiveFailures: failures, openedAt: now}
	}
	return closed{consecutiveFailures: failures}
}

func (o open) elapsed(now time.Time, resetTimeout time.Duration) bool {
	return now.Sub(o.openedAt) >= resetTimeout
}

func (o open) probe() halfOpen {
	return halfOpen{consecutiveFailures: o.consecutiveFailures, openedAt: o.openedAt, trialInFlight: true}
}

func (h halfOpen) claim() halfOpen {
	h.trialInFlight = true
	return h
}

func (h halfOpen) release() halfOpen {
	h.trialInFlight = false
	return h
}

func (h halfOpen) succeed() closed {
	return closed{}
}

func (h halfOpen) fail(now time.Time) open {
	return open{consecutiveFailures: h.consecutiveFailures + 1, openedAt: now}
}

func openedAt(p phase) time.Time {
	switch p := p.(type) {
	case open:
		return p.openedAt
	case halfOpen:
		return p.openedAt
	default:
		return time.Time{}
	}
}
