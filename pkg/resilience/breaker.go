// Package resilience provides the circuit breaker that isolates the search
// core from an unhealthy optional backend such as the Redis query cache.
// The core itself never retries; the breaker only decides whether an
// optional dependency is worth calling at all.
package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the breaker rejects a call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the current phase of a circuit breaker.
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
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig controls failure thresholds and recovery timing.
type BreakerConfig struct {
	FailureThreshold int
	ResetTimeout     time.Duration
	// OnStateChange, if set, is called with the new state while the
	// breaker's lock is held. It must not call back into the breaker.
	OnStateChange func(name string, state State)
}

// Breaker trips open after FailureThreshold consecutive failures and lets a
// single trial call through once ResetTimeout has elapsed.
type Breaker struct {
	name     string
	cfg      BreakerConfig
	now      func() time.Time
	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
	logger   *slog.Logger
}

// NewBreaker creates a Breaker, filling in defaults for zero values.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &Breaker{
		name:   name,
		cfg:    cfg,
		now:    time.Now,
		state:  StateClosed,
		logger: slog.Default().With("component", "circuit-breaker", "name", name),
	}
}

// Execute runs fn if the breaker allows it and records the outcome.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := fn()
	b.record(err)
	return err
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.ResetTimeout {
			return fmt.Errorf("%w: %s", ErrCircuitOpen, b.name)
		}
		b.setState(StateHalfOpen)
		b.probing = true
		return nil
	case StateHalfOpen:
		if b.probing {
			return fmt.Errorf("%w: %s (trial call in flight)", ErrCircuitOpen, b.name)
		}
		b.probing = true
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
	if err == nil {
		b.failures = 0
		if b.state != StateClosed {
			b.setState(StateClosed)
			b.logger.Info("circuit closed (recovered)")
		}
		return
	}
	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.cfg.FailureThreshold {
		if b.state != StateOpen {
			b.logger.Warn("circuit opened", "consecutive_failures", b.failures, "error", err)
		}
		b.openedAt = b.now()
		b.setState(StateOpen)
	}
}

func (b *Breaker) setState(s State) {
	b.state = s
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, s)
	}
}
