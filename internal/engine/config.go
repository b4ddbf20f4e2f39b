// internal/engine/config.go
package engine

import (
	"errors"
	"fmt"
	"time"
)

// Config holds every numeric knob of the position lifecycle. A zero
// StopLossTimeout or NoActivityTimeout disables that timer.
type Config struct {
	// BuyLamports is the SOL spent per buy.
	BuyLamports uint64

	SellTimeout       time.Duration
	StopLossTimeout   time.Duration
	NoActivityTimeout time.Duration
	// StopLossFraction sells when the estimated proceeds drop below this
	// share of the buy value.
	StopLossFraction float64

	Cooldown       time.Duration
	MaxUnconfirmed int
	MaxUnsold      int

	// SellMultipliers are the slippage multipliers per sell attempt; their
	// count is the attempt cap.
	SellMultipliers []float64
	// SendBackoff and RejectBackoff are multiplied by the attempt number.
	SendBackoff   time.Duration
	RejectBackoff time.Duration
	// SellPollInterval and SellConfirmTimeout bound the wait for a sell
	// confirmation.
	SellPollInterval   time.Duration
	SellConfirmTimeout time.Duration

	PollDelay      time.Duration
	SweepInterval  time.Duration
	PendingTTL     time.Duration
	HealthInterval time.Duration

	// OpTimeout bounds every network call made by a worker.
	OpTimeout time.Duration
	// InboxSize is the capacity of the loop inbox.
	InboxSize int
	// CurveCacheSize bounds the number of streamed curve snapshots kept.
	CurveCacheSize int
}

// DefaultConfig returns the standard lifecycle timings.
func DefaultConfig() Config {
	return Config{
		BuyLamports:        10_000_000,
		SellTimeout:        60 * time.Second,
		StopLossTimeout:    20 * time.Second,
		NoActivityTimeout:  10 * time.Second,
		StopLossFraction:   0.40,
		Cooldown:           60 * time.Second,
		MaxUnconfirmed:     1,
		MaxUnsold:          0,
		SellMultipliers:    []float64{0.98, 0.95, 0.90},
		SendBackoff:        2 * time.Second,
		RejectBackoff:      3 * time.Second,
		SellPollInterval:   2 * time.Second,
		SellConfirmTimeout: 30 * time.Second,
		PollDelay:          10 * time.Second,
		SweepInterval:      30 * time.Second,
		PendingTTL:         60 * time.Second,
		HealthInterval:     30 * time.Second,
		OpTimeout:          15 * time.Second,
		InboxSize:          1024,
		CurveCacheSize:     2048,
	}
}

// Validate checks the configuration for values the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.BuyLamports == 0 {
		errs = append(errs, errors.New("buy size must be positive"))
	}
	if c.SellTimeout <= 0 {
		errs = append(errs, errors.New("sell timeout must be positive"))
	}
	if c.StopLossTimeout < 0 || c.NoActivityTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if c.StopLossFraction < 0 || c.StopLossFraction >= 1 {
		errs = append(errs, fmt.Errorf("stop-loss fraction %.2f out of [0,1)", c.StopLossFraction))
	}
	if c.MaxUnconfirmed < 1 {
		errs = append(errs, errors.New("max unconfirmed must be at least 1"))
	}
	if c.MaxUnsold < 0 {
		errs = append(errs, errors.New("max unsold must not be negative"))
	}
	if len(c.SellMultipliers) == 0 {
		errs = append(errs, errors.New("at least one sell multiplier is required"))
	}
	for i, m := range c.SellMultipliers {
		if m <= 0 || m > 1 {
			errs = append(errs, fmt.Errorf("sell multiplier %d (%.2f) out of (0,1]", i, m))
		}
		if i > 0 && m > c.SellMultipliers[i-1] {
			errs = append(errs, fmt.Errorf("sell multiplier %d (%.2f) increases", i, m))
		}
	}
	if c.PollDelay <= 0 || c.SweepInterval <= 0 || c.PendingTTL <= 0 {
		errs = append(errs, errors.New("poll delay, sweep interval and pending ttl must be positive"))
	}
	return errors.Join(errs...)
}
