package infra

import (
	"errors"
	"sync"
	"time"
)

// ── Mail relay circuit ───────────────────────────────────────────────────────
// Every worker delivers through one breaker. After TripAfter consecutive relay
// faults the circuit opens and deliveries fail fast for CoolDown. Then exactly
// one trial delivery is let through; CloseAfter successful trials close it,
// a failed trial reopens it.

// CBState is the state of the relay circuit.
type CBState int

const (
	CBClosed CBState = iota
	CBOpen
	CBHalfOpen
)

func (s CBState) String() string {
	switch s {
	case CBClosed:
		return "closed"
	case CBOpen:
		return "open"
	case CBHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned without calling the relay while the circuit is
// open, or while another trial delivery is in flight.
var ErrCircuitOpen = errors.New("mail relay circuit is open")

type CircuitBreakerConfig struct {
	TripAfter  int
	CloseAfter int
	CoolDown   time.Duration
	// Counts reports whether err says the relay is unhealthy. Nil counts
	// every error.
	Counts func(err error) bool
	// OnTransition is called with the lock released after each state change.
	OnTransition func(from, to CBState)
	Now          func() time.Time
}

// MailCBConfig is the relay circuit used by the mailer. Replies in which the
// relay refuses a message still prove it is up, so they do not count.
func MailCBConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		TripAfter:  5,
		CloseAfter: 2,
		CoolDown:   time.Minute,
		Counts:     func(err error) bool { return !IsMessageRejected(err) },
	}
}

type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu        sync.Mutex
	state     CBState
	faults    int
	trials    int
	probing   bool
	openUntil time.Time
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.TripAfter <= 0 {
		cfg.TripAfter = 5
	}
	if cfg.CloseAfter <= 0 {
		cfg.CloseAfter = 1
	}
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = time.Minute
	}
	if cfg.Counts == nil {
		cfg.Counts = func(error) bool { return true }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CircuitBreaker{cfg: cfg}
}

// State reports the circuit as a caller would find it now; an elapsed
// cool-down reads as half-open.
func (cb *CircuitBreaker) State() CBState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CBOpen && !cb.cfg.Now().Before(cb.openUntil) {
		return CBHalfOpen
	}
	return cb.state
}

// Execute runs deliver unless the circuit rejects the call.
func (cb *CircuitBreaker) Execute(deliver func() error) error {
	trial, ok, probing := cb.admit()
	if probing {
		cb.notify(CBOpen, CBHalfOpen)
	}
	if !ok {
		return ErrCircuitOpen
	}

	err := deliver()

	cb.mu.Lock()
	before := cb.state
	if trial {
		cb.probing = false
	}
	if err != nil && cb.cfg.Counts(err) {
		cb.recordFault()
	} else {
		cb.recordSuccess(trial)
	}
	after := cb.state
	cb.mu.Unlock()

	if before != after {
		cb.notify(before, after)
	}
	return err
}

// admit decides whether a delivery may run and whether it is the half-open
// trial. probing is set when this call ended the cool-down.
func (cb *CircuitBreaker) admit() (trial, ok, probing bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CBOpen {
		if cb.cfg.Now().Before(cb.openUntil) {
			return false, false, false
		}
		cb.state = CBHalfOpen
		cb.trials = 0
		probing = true
	}
	if cb.state == CBHalfOpen {
		if cb.probing {
			return false, false, probing
		}
		cb.probing = true
		return true, true, probing
	}
	return false, true, false
}

// recordFault and recordSuccess run with mu held.
func (cb *CircuitBreaker) recordFault() {
	cb.faults++
	if cb.state == CBHalfOpen || cb.faults >= cb.cfg.TripAfter {
		cb.state = CBOpen
		cb.openUntil = cb.cfg.Now().Add(cb.cfg.CoolDown)
		cb.faults = 0
		cb.trials = 0
	}
}

func (cb *CircuitBreaker) recordSuccess(trial bool) {
	if cb.state == CBClosed {
		cb.faults = 0
		return
	}
	if trial {
		cb.trials++
		if cb.trials >= cb.cfg.CloseAfter {
			cb.state = CBClosed
			cb.faults = 0
			cb.trials = 0
		}
	}
}

func (cb *CircuitBreaker) notify(from, to CBState) {
	if cb.cfg.OnTransition != nil {
		cb.cfg.OnTransition(from, to)
	}
}
