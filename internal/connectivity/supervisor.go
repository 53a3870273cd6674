// Package connectivity tracks the health of outbound network I/O and gates
// retries behind an exponential backoff, mirroring the reconnect bookkeeping
// used throughout the platform clients this engine talks to.
package connectivity

import (
	"sync"
	"time"

	"github.com/kpeterman/alpacatrader/internal/config"
)

// Status is the coarse connectivity state exposed to callers.
type Status string

const (
	Connected    Status = "CONNECTED"
	Degraded     Status = "DEGRADED"
	Disconnected Status = "DISCONNECTED"
)

// State is a point-in-time snapshot of the supervisor's bookkeeping, useful
// for logging and diagnostics.
type State struct {
	Status              Status
	LastSuccess         time.Time
	LastFailure         time.Time
	NextRetryTime       time.Time
	ConsecutiveFailures int
	RetryDelaySeconds   float64
	LastErrorMessage    string
}

// Supervisor is the single owner of ConnectivityState (C1). All reads and
// mutations are serialized under an internal mutex; there is no global
// singleton — callers are handed a *Supervisor explicitly at construction.
type Supervisor struct {
	mu sync.Mutex

	cfg config.ConnectivityConfig

	status              Status
	lastSuccess         time.Time
	lastFailure         time.Time
	nextRetryTime       time.Time
	consecutiveFailures int
	retryDelaySeconds   float64
	lastErrorMessage    string

	now func() time.Time
}

// New constructs a Supervisor starting in the CONNECTED state with a 1s
// retry delay, per spec.
func New(cfg config.ConnectivityConfig) *Supervisor {
	return &Supervisor{
		cfg:               cfg,
		status:            Connected,
		retryDelaySeconds: 1,
		now:               time.Now,
	}
}

// ShouldAttemptConnection reports whether the caller may attempt an outbound
// call right now: true when CONNECTED, otherwise true only once the backoff
// window has elapsed.
func (s *Supervisor) ShouldAttemptConnection() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == Connected {
		return true
	}
	return !s.now().Before(s.nextRetryTime)
}

// ReportSuccess resets the supervisor to a healthy state.
func (s *Supervisor) ReportSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status = Connected
	s.consecutiveFailures = 0
	s.retryDelaySeconds = 1
	s.lastSuccess = s.now()
}

// ReportFailure records a failed attempt, advances the backoff, and
// re-evaluates status against the configured thresholds.
func (s *Supervisor) ReportFailure(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.consecutiveFailures++
	s.lastFailure = now
	s.lastErrorMessage = msg

	s.retryDelaySeconds *= s.cfg.BackoffMultiplier
	if max := float64(s.cfg.MaxRetryDelaySeconds); s.retryDelaySeconds > max {
		s.retryDelaySeconds = max
	}
	s.nextRetryTime = now.Add(time.Duration(s.retryDelaySeconds * float64(time.Second)))

	switch {
	case s.consecutiveFailures >= s.cfg.DisconnectedThreshold:
		s.status = Disconnected
	case s.consecutiveFailures >= s.cfg.DegradedThreshold:
		s.status = Degraded
	}
}

// SecondsUntilRetry returns how many whole seconds remain before the next
// attempt is permitted, 0 if an attempt may be made now.
func (s *Supervisor) SecondsUntilRetry() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == Connected {
		return 0
	}
	remaining := s.nextRetryTime.Sub(s.now())
	if remaining <= 0 {
		return 0
	}
	return int(remaining.Seconds()) + 1
}

// StatusNow returns the current coarse status.
func (s *Supervisor) StatusNow() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Snapshot returns a copy of the full internal state for logging/tests.
func (s *Supervisor) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Status:              s.status,
		LastSuccess:         s.lastSuccess,
		LastFailure:         s.lastFailure,
		NextRetryTime:       s.nextRetryTime,
		ConsecutiveFailures: s.consecutiveFailures,
		RetryDelaySeconds:   s.retryDelaySeconds,
		LastErrorMessage:    s.lastErrorMessage,
	}
}
