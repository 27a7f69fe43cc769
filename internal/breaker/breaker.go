package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned without attempting the call while the circuit is open,
// and to callers that arrive while a half-open trial is already in flight.
var ErrOpen = errors.New("circuit open")

// State enumerates the circuit positions.
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
		return "half_open"
	default:
		return "unknown"
	}
}

// Config carries the transition thresholds for one breaker.
type Config struct {
	// FailMax is the consecutive failure count that trips a closed circuit.
	FailMax int
	// ResetTimeout is how long an open circuit rejects calls before the next
	// call is admitted as a half-open trial.
	ResetTimeout time.Duration
	// SuccessThreshold is the consecutive half-open successes required to
	// close the circuit again.
	SuccessThreshold int
}

func (c Config) withDefaults() Config {
	if c.FailMax <= 0 {
		c.FailMax = 5
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = 60 * time.Second
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 1
	}
	return c
}

// StateChangeFunc observes circuit transitions for logging and metrics.
type StateChangeFunc func(name string, from, to State)

// Option configures a Breaker or every breaker a Registry creates.
type Option func(*Breaker)

// WithClock overrides the time source. Tests use this to step through the
// reset timeout without sleeping.
func WithClock(clock func() time.Time) Option {
	return func(b *Breaker) {
		if clock != nil {
			b.clock = clock
		}
	}
}

// WithStateChange registers a transition observer. The callback runs with the
// breaker's internal lock held and must not call back into the breaker.
func WithStateChange(fn StateChangeFunc) Option {
	return func(b *Breaker) {
		if fn != nil {
			b.onChange = fn
		}
	}
}

// Breaker guards calls to a single provider. The zero value is not usable;
// construct with New.
type Breaker struct {
	name     string
	cfg      Config
	clock    func() time.Time
	onChange StateChangeFunc

	mu                sync.Mutex
	state             State
	consecutiveFails  int
	halfOpenSuccesses int
	probing           bool
	openedAt          time.Time
	totalSuccesses    uint64
	totalFailures     uint64
	rejected          uint64
}

// New constructs a breaker in the closed state.
func New(name string, cfg Config, opts ...Option) *Breaker {
	b := &Breaker{
		name:  name,
		cfg:   cfg.withDefaults(),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the provider this breaker guards.
func (b *Breaker) Name() string { return b.name }

// Do runs fn under the circuit. While open it returns ErrOpen immediately
// without invoking fn; the check is a mutex acquisition and a clock read, so
// rejection cost does not depend on the provider at all. A nil fn error counts
// as success, anything else as failure.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	probe, err := b.admit()
	if err != nil {
		return err
	}
	callErr := fn(ctx)
	b.record(callErr == nil, probe)
	return callErr
}

// State reports the current circuit position without advancing it. An open
// circuit whose reset timeout has elapsed still reads as open until the next
// call is admitted.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot returns the observable counters for status surfaces.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := Snapshot{
		Name:                b.name,
		State:               b.state,
		ConsecutiveFailures: b.consecutiveFails,
		TotalSuccesses:      b.totalSuccesses,
		TotalFailures:       b.totalFailures,
		Rejected:            b.rejected,
	}
	if b.state != StateClosed {
		snap.OpenedAt = b.openedAt
	}
	return snap
}

// Snapshot is a point-in-time view of one breaker.
type Snapshot struct {
	Name                string
	State               State
	ConsecutiveFailures int
	TotalSuccesses      uint64
	TotalFailures       uint64
	Rejected            uint64
	OpenedAt            time.Time
}

// admit decides whether the call may proceed. The returned bool marks the
// call as the half-open probe; only the probe's outcome drives half-open
// transitions.
func (b *Breaker) admit() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return false, nil
	case StateOpen:
		if b.clock().Sub(b.openedAt) < b.cfg.ResetTimeout {
			b.rejected++
			return false, ErrOpen
		}
		b.transition(StateHalfOpen)
		b.halfOpenSuccesses = 0
		b.probing = true
		return true, nil
	case StateHalfOpen:
		if b.probing {
			b.rejected++
			return false, ErrOpen
		}
		b.probing = true
		return true, nil
	}
	return false, nil
}

func (b *Breaker) record(success bool, probe bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		b.totalSuccesses++
	} else {
		b.totalFailures++
	}

	switch b.state {
	case StateClosed:
		if success {
			b.consecutiveFails = 0
			return
		}
		b.consecutiveFails++
		if b.consecutiveFails >= b.cfg.FailMax {
			b.trip()
		}
	case StateHalfOpen:
		if !probe {
			// Straggler admitted before the trip finished; it carries no
			// vote on the trial.
			return
		}
		b.probing = false
		if !success {
			b.trip()
			return
		}
		b.halfOpenSuccesses++
		if b.halfOpenSuccesses >= b.cfg.SuccessThreshold {
			b.transition(StateClosed)
			b.consecutiveFails = 0
			b.halfOpenSuccesses = 0
		}
	case StateOpen:
		// A call admitted while closed can finish after a sibling tripped
		// the circuit. Totals already counted it; state stays put.
	}
}

// trip moves to open and restarts the reset clock. Callers hold b.mu.
func (b *Breaker) trip() {
	b.transition(StateOpen)
	b.openedAt = b.clock()
	b.probing = false
	b.halfOpenSuccesses = 0
}

// transition changes state and notifies the observer. Callers hold b.mu.
func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	if b.onChange != nil {
		b.onChange(b.name, from, to)
	}
}
