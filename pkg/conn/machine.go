// Package conn tracks connection health: exponential backoff with jitter,
// heartbeat-driven reconnection probing, and status broadcast to
// registered listeners.
package conn

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the connection status.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Offline
	Failed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Offline:
		return "offline"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Consecutive failures at which the machine reports Failed instead of
// Connecting. Retries continue to be scheduled either way.
const failedThreshold = 10

// Exponent cap for the backoff doubling.
const maxBackoffShift = 10

// Snapshot is the externally visible connection state.
type Snapshot struct {
	State               State
	Offline             bool
	LastError           string
	LastSuccess         time.Time
	ConsecutiveFailures int
	NextRetry           time.Time
}

// Listener receives the snapshot synchronously on registration and on
// every transition.
type Listener func(Snapshot)

// Config carries backoff tuning.
type Config struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Machine is the connection resilience state machine. RecordSuccess and
// RecordFailure are the only transition paths besides SetOfflineMode.
type Machine struct {
	mu          sync.Mutex
	state       State
	offline     bool
	failures    int
	lastSuccess time.Time
	nextRetry   time.Time
	lastError   string
	listeners   map[string]Listener

	cfg    Config
	now    func() time.Time
	jitter func() float64
	logger *log.Logger

	hbStop chan struct{}
	hbWG   sync.WaitGroup
}

// NewMachine creates a machine in the Disconnected state.
func NewMachine(cfg Config, logger *log.Logger) *Machine {
	return &Machine{
		state:     Disconnected,
		listeners: make(map[string]Listener),
		cfg:       cfg,
		now:       time.Now,
		jitter:    func() float64 { return 0.8 + rand.Float64()*0.4 },
		logger:    logger,
	}
}

// RecordSuccess transitions to Connected and resets the failure count.
func (m *Machine) RecordSuccess() {
	m.mu.Lock()
	if m.offline {
		m.mu.Unlock()
		return
	}
	m.state = Connected
	m.failures = 0
	m.lastSuccess = m.now()
	m.nextRetry = time.Time{}
	m.lastError = ""
	snap := m.snapshotLocked()
	listeners := m.copyListenersLocked()
	m.mu.Unlock()

	notify(listeners, snap)
}

// RecordFailure counts a failure and schedules the next retry with
// exponential backoff and jitter.
func (m *Machine) RecordFailure(err error) {
	m.mu.Lock()
	if m.offline {
		m.mu.Unlock()
		return
	}
	m.failures++
	if err != nil {
		m.lastError = err.Error()
	}
	if m.failures >= failedThreshold {
		m.state = Failed
	} else {
		m.state = Connecting
	}
	delay := time.Duration(float64(m.rawBackoffLocked(m.failures)) * m.jitter())
	m.nextRetry = m.now().Add(delay)
	snap := m.snapshotLocked()
	listeners := m.copyListenersLocked()
	m.mu.Unlock()

	m.logger.Printf("connection failure %d: %v (next retry in %s)", snap.ConsecutiveFailures, err, delay.Round(time.Millisecond))
	notify(listeners, snap)
}

// SetOfflineMode enters or leaves the Offline state. No other transition
// touches it.
func (m *Machine) SetOfflineMode(offline bool) {
	m.mu.Lock()
	if m.offline == offline {
		m.mu.Unlock()
		return
	}
	m.offline = offline
	if offline {
		m.state = Offline
	} else {
		m.state = Disconnected
		m.failures = 0
		m.nextRetry = time.Time{}
	}
	snap := m.snapshotLocked()
	listeners := m.copyListenersLocked()
	m.mu.Unlock()

	notify(listeners, snap)
}

// Backoff returns the pre-jitter reconnect delay for a failure count:
// min(base * 2^min(failures, 10), max).
func (m *Machine) Backoff(failures int) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rawBackoffLocked(failures)
}

func (m *Machine) rawBackoffLocked(failures int) time.Duration {
	shift := failures
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	d := m.cfg.InitialBackoff << uint(shift)
	if d > m.cfg.MaxBackoff || d <= 0 {
		d = m.cfg.MaxBackoff
	}
	return d
}

// RetryDue reports whether a reconnect attempt is allowed now.
func (m *Machine) RetryDue() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return false
	}
	return m.nextRetry.IsZero() || !m.now().Before(m.nextRetry)
}

// Subscribe registers a listener and synchronously replays the current
// snapshot. The returned token removes it via Unsubscribe.
func (m *Machine) Subscribe(l Listener) string {
	m.mu.Lock()
	token := uuid.New().String()
	m.listeners[token] = l
	snap := m.snapshotLocked()
	m.mu.Unlock()

	l(snap)
	return token
}

// Unsubscribe removes the listener registered under token.
func (m *Machine) Unsubscribe(token string) {
	m.mu.Lock()
	delete(m.listeners, token)
	m.mu.Unlock()
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() Snapshot {
	return Snapshot{
		State:               m.state,
		Offline:             m.offline,
		LastError:           m.lastError,
		LastSuccess:         m.lastSuccess,
		ConsecutiveFailures: m.failures,
		NextRetry:           m.nextRetry,
	}
}

func (m *Machine) copyListenersLocked() []Listener {
	out := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		out = append(out, l)
	}
	return out
}

func notify(listeners []Listener, snap Snapshot) {
	for _, l := range listeners {
		l(snap)
	}
}

// StartHeartbeat launches a timer that probes when no success has been
// recorded within staleAfter. The probe outcome feeds back through
// RecordSuccess/RecordFailure.
func (m *Machine) StartHeartbeat(ctx context.Context, staleAfter time.Duration, probe func(context.Context) error) {
	m.hbStop = make(chan struct{})
	interval := staleAfter / 2
	if interval < time.Second {
		interval = time.Second
	}
	m.hbWG.Add(1)
	go func() {
		defer m.hbWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.hbStop:
				return
			case <-ticker.C:
				m.mu.Lock()
				stale := !m.offline && m.now().Sub(m.lastSuccess) >= staleAfter
				m.mu.Unlock()
				if !stale {
					continue
				}
				if err := probe(ctx); err != nil {
					m.RecordFailure(err)
				} else {
					m.RecordSuccess()
				}
			}
		}
	}()
}

// StopHeartbeat stops the heartbeat timer and waits for it to exit.
func (m *Machine) StopHeartbeat() {
	if m.hbStop == nil {
		return
	}
	close(m.hbStop)
	m.hbWG.Wait()
	m.hbStop = nil
}
