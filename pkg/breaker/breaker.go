// Package breaker implements a per-endpoint circuit breaker. A breaker
// opens after a run of consecutive failures, rejects calls until a reset
// timeout elapses, then admits a single half-open trial call.
package breaker

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrOpen is returned by Execute when the breaker rejects the call
// without attempting it.
var ErrOpen = errors.New("circuit breaker open")

// State represents the state of a circuit breaker.
type State int32

const (
	// Closed means calls pass through normally.
	Closed State = iota
	// Open means calls are rejected immediately.
	Open
	// HalfOpen means a single trial call is probing for recovery.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker gates calls to one logical endpoint. Safe for concurrent use;
// all state lives in atomics.
type Breaker struct {
	state            atomic.Int32
	consecutiveFails atomic.Int32
	openedAt         atomic.Int64 // unix nanos of last failure while open/closing
	halfOpenProbe    atomic.Int32 // 1 while a half-open trial is in flight

	failureThreshold int
	resetTimeout     time.Duration
	now              func() time.Time
}

// New creates a closed breaker.
func New(failureThreshold int, resetTimeout time.Duration) *Breaker {
	b := &Breaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		now:              time.Now,
	}
	b.state.Store(int32(Closed))
	return b
}

// State returns the current breaker state.
func (b *Breaker) State() State { return State(b.state.Load()) }

// ConsecutiveFailures returns the current failure run length.
func (b *Breaker) ConsecutiveFailures() int { return int(b.consecutiveFails.Load()) }

// Allow reports whether a call may proceed. In the open state it flips to
// half-open once the reset timeout has elapsed; exactly one caller wins
// the trial slot.
func (b *Breaker) Allow() bool {
	switch State(b.state.Load()) {
	case Closed:
		return true
	case Open:
		if b.now().UnixNano()-b.openedAt.Load() < int64(b.resetTimeout) {
			return false
		}
		// CAS so a single goroutine wins the Open -> HalfOpen transition
		// and becomes the probe.
		if b.state.CompareAndSwap(int32(Open), int32(HalfOpen)) {
			b.halfOpenProbe.Store(1)
			return true
		}
		return false
	case HalfOpen:
		return b.halfOpenProbe.CompareAndSwap(0, 1)
	default:
		return true
	}
}

// RecordSuccess resets the failure run and closes a half-open breaker.
func (b *Breaker) RecordSuccess() {
	b.consecutiveFails.Store(0)
	if State(b.state.Load()) == HalfOpen {
		b.halfOpenProbe.Store(0)
		b.state.Store(int32(Closed))
	}
}

// RecordFailure counts a failure, opening the breaker at the threshold or
// reopening it after a failed half-open trial.
func (b *Breaker) RecordFailure() {
	fails := b.consecutiveFails.Add(1)
	b.openedAt.Store(b.now().UnixNano())

	switch State(b.state.Load()) {
	case HalfOpen:
		b.halfOpenProbe.Store(0)
		b.state.Store(int32(Open))
	case Closed:
		if int(fails) >= b.failureThreshold {
			b.state.Store(int32(Open))
		}
	}
}

// Execute runs op through the breaker, recording the outcome. When the
// breaker rejects the call it returns ErrOpen without invoking op.
func (b *Breaker) Execute(op func() error) error {
	if !b.Allow() {
		return ErrOpen
	}
	if err := op(); err != nil {
		b.RecordFailure()
		return err
	}
	b.RecordSuccess()
	return nil
}

// Registry creates and looks up breakers by endpoint name so failures in
// one channel do not block another.
type Registry struct {
	mu               sync.Mutex
	breakers         map[string]*Breaker
	failureThreshold int
	resetTimeout     time.Duration
}

// NewRegistry creates a registry whose breakers share one configuration.
func NewRegistry(failureThreshold int, resetTimeout time.Duration) *Registry {
	return &Registry{
		breakers:         make(map[string]*Breaker),
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
	}
}

// Get returns the breaker for name, creating it on first use.
func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[name]
	if !ok {
		b = New(r.failureThreshold, r.resetTimeout)
		r.breakers[name] = b
	}
	return b
}
