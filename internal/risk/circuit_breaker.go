package risk

import (
	"errors"
	"sync"
	"time"

	"github.com/rovshanmuradov/pump-sniper/internal/clock"
	"go.uber.org/zap"
)

// ErrCircuitOpen means the breaker is open and no new buys may be admitted.
var ErrCircuitOpen = errors.New("circuit breaker open")

// BreakerConfig configures the breaker.
type BreakerConfig struct {
	// Threshold is the number of consecutive failures that opens the breaker.
	Threshold int
	// ResetAfter is the delay after which an open breaker closes by itself.
	ResetAfter time.Duration
}

// DefaultBreakerConfig trips on the first failure and resets after 30s.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{Threshold: 1, ResetAfter: 30 * time.Second}
}

// BreakerState is a point-in-time view of the breaker.
type BreakerState struct {
	Open              bool
	ConsecutiveErrors int
	LastFailure       time.Time
	LastReason        string
	Trips             int
}

// CircuitBreaker suspends new risk-taking after consecutive failures.
// It is safe for concurrent use.
type CircuitBreaker struct {
	cfg    BreakerConfig
	clk    clock.Clock
	logger *zap.Logger

	mu         sync.Mutex
	state      BreakerState
	resetTimer clock.Timer
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(cfg BreakerConfig, clk clock.Clock, logger *zap.Logger) *CircuitBreaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 1
	}
	return &CircuitBreaker{cfg: cfg, clk: clk, logger: logger.Named("circuit-breaker")}
}

// Allow returns ErrCircuitOpen while the breaker is open.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state.Open {
		return ErrCircuitOpen
	}
	return nil
}

// RecordFailure counts a failure and opens the breaker at the threshold. The
// first trip schedules the auto-reset; further failures while open do not
// extend it.
func (cb *CircuitBreaker) RecordFailure(reason string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state.ConsecutiveErrors++
	cb.state.LastFailure = cb.clk.Now()
	cb.state.LastReason = reason

	if cb.state.Open || cb.state.ConsecutiveErrors < cb.cfg.Threshold {
		return
	}

	cb.state.Open = true
	cb.state.Trips++
	cb.logger.Warn("Circuit breaker opened",
		zap.String("reason", reason),
		zap.Int("consecutive_errors", cb.state.ConsecutiveErrors),
		zap.Duration("reset_after", cb.cfg.ResetAfter))

	trip := cb.state.Trips
	cb.resetTimer = cb.clk.AfterFunc(cb.cfg.ResetAfter, func() { cb.autoReset(trip) })
}

// RecordSuccess zeroes the failure counter and closes an open breaker.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state.ConsecutiveErrors = 0
	if !cb.state.Open {
		return
	}
	cb.state.Open = false
	if cb.resetTimer != nil {
		cb.resetTimer.Stop()
		cb.resetTimer = nil
	}
	cb.logger.Info("Circuit breaker closed by success")
}

// autoReset closes the breaker opened by the given trip. A timer that lost
// the race with Stop must not close a later trip.
func (cb *CircuitBreaker) autoReset(trip int) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.state.Open || cb.state.Trips != trip {
		return
	}
	cb.resetTimer = nil
	cb.state.Open = false
	cb.state.ConsecutiveErrors = 0
	cb.logger.Info("Circuit breaker auto-reset")
}

// State returns a snapshot of the breaker.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
