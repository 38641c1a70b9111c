package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// State represents the state of the circuit breaker.
type State int

const (
	// Closed lets every call through.
	Closed State = iota
	// Open rejects calls until the cool-down elapses.
	Open
	// HalfOpen lets a single probe call through to test recovery.
	HalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case Closed:
		return "Closed"
	case Open:
		return "Open"
	case HalfOpen:
		return "Half-Open"
	default:
		return "Unknown"
	}
}

// ErrCircuitOpen is returned when the breaker rejects a call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Settings configures a Breaker.
type Settings struct {
	// FailureThreshold is the number of consecutive failures that trips the circuit.
	FailureThreshold uint32
	// SuccessThreshold is the number of consecutive half-open successes that closes it again.
	SuccessThreshold uint32
	// Timeout is how long the circuit stays open before allowing a probe.
	Timeout time.Duration
	// OnStateChange, when set, is called after every transition while the lock is not held.
	OnStateChange func(from, to State)
}

// Breaker guards calls to a flaky dependency.
type Breaker struct {
	settings Settings
	now      func() time.Time

	mu        sync.Mutex
	state     State
	failures  uint32
	successes uint32
	openedAt  time.Time
	probing   bool
}

// New creates a Breaker. Zero thresholds are raised to 1.
func New(settings Settings) *Breaker {
	if settings.FailureThreshold == 0 {
		settings.FailureThreshold = 1
	}
	if settings.SuccessThreshold == 0 {
		settings.SuccessThreshold = 1
	}
	return &Breaker{settings: settings, now: time.Now}
}

// State returns the current state, moving Open to HalfOpen if the timeout has passed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshLocked()
	return b.state
}

// Execute runs fn if the circuit allows it and records the outcome.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.before(); err != nil {
		return err
	}
	err := fn()
	b.after(err == nil)
	return err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	b.refreshLocked()
	switch b.state {
	case Open:
		b.mu.Unlock()
		return ErrCircuitOpen
	case HalfOpen:
		if b.probing {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.probing = true
	}
	b.mu.Unlock()
	return nil
}

func (b *Breaker) after(success bool) {
	b.mu.Lock()
	from := b.state
	switch b.state {
	case HalfOpen:
		b.probing = false
		if !success {
			b.tripLocked()
			break
		}
		b.successes++
		if b.successes >= b.settings.SuccessThreshold {
			b.state = Closed
			b.failures = 0
			b.successes = 0
		}
	case Closed:
		if success {
			b.failures = 0
			break
		}
		b.failures++
		if b.failures >= b.settings.FailureThreshold {
			b.tripLocked()
		}
	}
	to := b.state
	b.mu.Unlock()
	b.notify(from, to)
}

func (b *Breaker) refreshLocked() {
	if b.state == Open && b.now().Sub(b.openedAt) >= b.settings.Timeout {
		from := b.state
		b.state = HalfOpen
		b.successes = 0
		b.probing = false
		if b.settings.OnStateChange != nil {
			go b.settings.OnStateChange(from, HalfOpen)
		}
	}
}

func (b *Breaker) tripLocked() {
	b.state = Open
	b.openedAt = b.now()
	b.failures = 0
	b.successes = 0
}

func (b *Breaker) notify(from, to State) {
	if from != to && b.settings.OnStateChange != nil {
		b.settings.OnStateChange(from, to)
	}
}
