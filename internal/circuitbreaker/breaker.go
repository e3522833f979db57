package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/angeloszaimis/resilient-client/internal/apierror"
)

type State int

const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Rejecting calls
	StateHalfOpen              // Admitting trial calls
)

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

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome is how a finished call counts towards the breaker.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
	OutcomeIgnored // frees a trial slot without moving the breaker
)

const (
	DefaultFailureThreshold = 5
	DefaultCooldown         = 30 * time.Second
	DefaultTrialRequests    = 1
)

type Settings struct {
	FailureThreshold int
	Cooldown         time.Duration
	TrialRequests    int

	// Classify maps a call result to an outcome. Defaults to DefaultClassify.
	Classify func(ctx context.Context, err error) Outcome
	// OnStateChange runs after the breaker lock is released.
	OnStateChange func(name string, from, to State)
	Now           func() time.Time
}

func (s Settings) withDefaults() Settings {
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = DefaultFailureThreshold
	}
	if s.Cooldown <= 0 {
		s.Cooldown = DefaultCooldown
	}
	if s.TrialRequests <= 0 {
		s.TrialRequests = DefaultTrialRequests
	}
	if s.Classify == nil {
		s.Classify = DefaultClassify
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	return s
}

// DefaultClassify counts every error as a failure except the caller
// cancelling its own context.
func DefaultClassify(ctx context.Context, err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return OutcomeIgnored
	}
	return OutcomeFailure
}

// Snapshot is a point-in-time copy of a breaker's state.
type Snapshot struct {
	Name             string        `json:"name"`
	State            State         `json:"state"`
	Failures         int           `json:"failures"`
	OpenedAt         time.Time     `json:"opened_at,omitempty"`
	TrialsInFlight   int           `json:"trials_in_flight"`
	FailureThreshold int           `json:"failure_threshold"`
	Cooldown         time.Duration `json:"cooldown"`
	TrialRequests    int           `json:"trial_requests"`
}

type transition struct {
	from, to State
}

// CircuitBreaker guards calls to a single backend target.
//
// Admission and outcome recording are separate critical sections. Every state
// change bumps the generation; an outcome admitted under an older generation
// is dropped, so each call causes at most one transition.
type CircuitBreaker struct {
	mutex          sync.Mutex
	name           string
	state          State
	generation     uint64
	failures       int
	openedAt       time.Time
	trialsInFlight int
	settings       Settings
}

func NewCircuitBreaker(name string, settings Settings) *CircuitBreaker {
	return &CircuitBreaker{
		name:     name,
		state:    StateClosed,
		settings: settings.withDefaults(),
	}
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Call runs fn if the breaker admits it and records the result.
// A rejected call returns an apierror of kind circuit-open without running fn.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	gen, err := cb.admit()
	if err != nil {
		return err
	}

	finished := false
	defer func() {
		if !finished {
			cb.record(gen, OutcomeFailure)
		}
	}()

	err = fn(ctx)
	finished = true
	cb.record(gen, cb.settings.Classify(ctx, err))
	return err
}

// Allows reports whether a call would be admitted right now. It never
// changes state.
func (cb *CircuitBreaker) Allows() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case StateOpen:
		return cb.settings.Now().Sub(cb.openedAt) >= cb.settings.Cooldown
	case StateHalfOpen:
		return cb.trialsInFlight < cb.settings.TrialRequests
	default:
		return true
	}
}

func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	return Snapshot{
		Name:             cb.name,
		State:            cb.state,
		Failures:         cb.failures,
		OpenedAt:         cb.openedAt,
		TrialsInFlight:   cb.trialsInFlight,
		FailureThreshold: cb.settings.FailureThreshold,
		Cooldown:         cb.settings.Cooldown,
		TrialRequests:    cb.settings.TrialRequests,
	}
}

// Reset forces the breaker closed.
func (cb *CircuitBreaker) Reset() {
	cb.mutex.Lock()
	t := cb.transitionLocked(StateClosed)
	cb.failures = 0
	cb.mutex.Unlock()

	cb.notify(t)
}

func (cb *CircuitBreaker) admit() (uint64, error) {
	cb.mutex.Lock()

	var t *transition
	switch cb.state {
	case StateOpen:
		if cb.settings.Now().Sub(cb.openedAt) < cb.settings.Cooldown {
			cb.mutex.Unlock()
			return 0, apierror.CircuitOpen(cb.name)
		}
		t = cb.transitionLocked(StateHalfOpen)
		cb.trialsInFlight = 1
	case StateHalfOpen:
		if cb.trialsInFlight >= cb.settings.TrialRequests {
			cb.mutex.Unlock()
			return 0, apierror.CircuitOpen(cb.name)
		}
		cb.trialsInFlight++
	}

	gen := cb.generation
	cb.mutex.Unlock()

	cb.notify(t)
	return gen, nil
}

func (cb *CircuitBreaker) record(gen uint64, outcome Outcome) {
	cb.mutex.Lock()

	if gen != cb.generation {
		cb.mutex.Unlock()
		return
	}

	var t *transition
	switch cb.state {
	case StateClosed:
		switch outcome {
		case OutcomeSuccess:
			cb.failures = 0
		case OutcomeFailure:
			cb.failures++
			if cb.failures >= cb.settings.FailureThreshold {
				t = cb.transitionLocked(StateOpen)
				cb.openedAt = cb.settings.Now()
			}
		}
	case StateHalfOpen:
		if cb.trialsInFlight > 0 {
			cb.trialsInFlight--
		}
		switch outcome {
		case OutcomeSuccess:
			t = cb.transitionLocked(StateClosed)
			cb.failures = 0
		case OutcomeFailure:
			t = cb.transitionLocked(StateOpen)
			cb.openedAt = cb.settings.Now()
		}
	}

	cb.mutex.Unlock()
	cb.notify(t)
}

func (cb *CircuitBreaker) transitionLocked(to State) *transition {
	if cb.state == to {
		return nil
	}

	from := cb.state
	cb.state = to
	cb.generation++
	cb.trialsInFlight = 0
	return &transition{from: from, to: to}
}

func (cb *CircuitBreaker) notify(t *transition) {
	if t == nil || cb.settings.OnStateChange == nil {
		return
	}
	cb.settings.OnStateChange(cb.name, t.from, t.to)
}
